package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/stonefell/toolforge-web-ui/internal/models"
)

// AgentService is the HTTP client for the tool-creator agent service. All
// endpoints are synchronous request/response exchanges except ChatStream,
// which consumes the service's incrementally delivered turn stream.
type AgentService struct {
	baseURL string

	client *http.Client

	logger *slog.Logger
}

// NewAgentService creates a client for the agent service reachable at
// baseURL.
func NewAgentService(baseURL string, logger *slog.Logger) AgentService {
	return AgentService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "agentservice")),
	}
}

type conversationsResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

// ListConversations fetches all conversation summaries, newest activity
// first.
func (s AgentService) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var res conversationsResponse
	if err := s.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &res); err != nil {
		return nil, err
	}
	return res.Conversations, nil
}

type createConversationRequest struct {
	Title string `json:"title,omitempty"`
}

type createConversationResponse struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
}

// CreateConversation creates a new conversation. An empty title lets the
// service pick its default.
func (s AgentService) CreateConversation(ctx context.Context, title string) (models.Conversation, error) {
	var res createConversationResponse
	err := s.doJSON(ctx, http.MethodPost, "/api/conversations", createConversationRequest{Title: title}, &res)
	if err != nil {
		return models.Conversation{}, err
	}
	return models.Conversation{ID: res.ThreadID, Title: res.Title}, nil
}

// DeleteConversation removes a conversation and its history.
func (s AgentService) DeleteConversation(ctx context.Context, id string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, nil)
}

type historyResponse struct {
	ThreadID string           `json:"thread_id"`
	Messages []models.Message `json:"messages"`
}

// History fetches the visible message history of a conversation.
func (s AgentService) History(ctx context.Context, id string) ([]models.Message, error) {
	var res historyResponse
	err := s.doJSON(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id)+"/history", nil, &res)
	if err != nil {
		return nil, err
	}
	return res.Messages, nil
}

type agentsResponse struct {
	Agents []models.Agent `json:"agents"`
}

// ListAgents fetches the details of every registered sub-agent.
func (s AgentService) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var res agentsResponse
	if err := s.doJSON(ctx, http.MethodGet, "/api/agents", nil, &res); err != nil {
		return nil, err
	}
	return res.Agents, nil
}

type toggleAgentRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleAgent enables or disables a sub-agent.
func (s AgentService) ToggleAgent(ctx context.Context, name string, enabled bool) error {
	path := "/api/agents/" + url.PathEscape(name) + "/toggle"
	return s.doJSON(ctx, http.MethodPatch, path, toggleAgentRequest{Enabled: enabled}, nil)
}

// DeleteAgent removes a sub-agent.
func (s AgentService) DeleteAgent(ctx context.Context, name string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/agents/"+url.PathEscape(name), nil, nil)
}

type assignToolRequest struct {
	ToolName string `json:"tool_name"`
}

// AssignTool assigns a global tool to a sub-agent.
func (s AgentService) AssignTool(ctx context.Context, agentName, toolName string) error {
	path := "/api/agents/" + url.PathEscape(agentName) + "/tools"
	return s.doJSON(ctx, http.MethodPost, path, assignToolRequest{ToolName: toolName}, nil)
}

// RemoveTool removes a tool from a sub-agent.
func (s AgentService) RemoveTool(ctx context.Context, agentName, toolName string) error {
	path := "/api/agents/" + url.PathEscape(agentName) + "/tools/" + url.PathEscape(toolName)
	return s.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

type toolsResponse struct {
	Tools []models.Tool `json:"tools"`
}

// ListTools fetches all dynamically created tools.
func (s AgentService) ListTools(ctx context.Context) ([]models.Tool, error) {
	var res toolsResponse
	if err := s.doJSON(ctx, http.MethodGet, "/api/tools", nil, &res); err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// DeleteTool removes a dynamically created tool.
func (s AgentService) DeleteTool(ctx context.Context, name string) error {
	return s.doJSON(ctx, http.MethodDelete, "/api/tools/"+url.PathEscape(name), nil, nil)
}

// Status fetches the agents and tools active for one conversation.
func (s AgentService) Status(ctx context.Context, id string) (models.Status, error) {
	var res models.Status
	if err := s.doJSON(ctx, http.MethodGet, "/api/status/"+url.PathEscape(id), nil, &res); err != nil {
		return models.Status{}, err
	}
	return res, nil
}

// Health checks that the agent service is reachable.
func (s AgentService) Health(ctx context.Context) error {
	return s.doJSON(ctx, http.MethodGet, "/api/health", nil, nil)
}

type chatStreamRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// ChatStream opens a turn against the agent service and yields the decoded
// events in stream order. A transport failure surfaces as the final pair with
// a non-nil error; context cancellation ends the iteration silently. The
// iterator returns when the service closes the stream, so a stalled stream
// without a terminal event blocks until ctx imposes a deadline.
func (s AgentService) ChatStream(ctx context.Context, conversationID, message string) iter.Seq2[models.StreamEvent, error] {
	return func(yield func(models.StreamEvent, error) bool) {
		jsonBody, err := json.Marshal(chatStreamRequest{
			Message:  message,
			ThreadID: conversationID,
		})
		if err != nil {
			yield(models.StreamEvent{}, fmt.Errorf("error marshaling request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.baseURL+"/api/chat/stream", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield(models.StreamEvent{}, fmt.Errorf("error creating request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := s.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(models.StreamEvent{}, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			yield(models.StreamEvent{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body)))
			return
		}

		var dec streamDecoder
		chunk := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(chunk)
			if n > 0 {
				for _, event := range dec.feed(chunk[:n]) {
					s.logger.Debug("decoded stream event",
						slog.String("kind", string(event.Kind)))
					if !yield(event, nil) {
						return
					}
				}
			}
			if err != nil {
				dec.finish()
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					return
				}
				yield(models.StreamEvent{}, fmt.Errorf("error reading stream: %w", err))
				return
			}
		}
	}
}

// doJSON performs one request/response exchange, decoding the response into
// out when it is non-nil.
func (s AgentService) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}
