package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stonefell/toolforge-web-ui/internal/chat"
	"github.com/stonefell/toolforge-web-ui/internal/models"
)

type homePageData struct {
	Conversations []models.Conversation
	CurrentID     string
	Messages      []messageView
	Agents        []models.Agent
	Tools         []models.Tool
	Steps         chat.TrackerSnapshot
	Status        statusView
	Notice        string
}

// HandleHome renders the full chat page: the conversation sidebar, the
// selected conversation's history, the step log, the active agents/tools
// strip and the management panels. Collaborator failures degrade to an inline
// notice instead of failing the page.
func (m *Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := homePageData{Steps: m.steps.Snapshot()}

	convs := m.convs.All()
	if len(convs) == 0 {
		fresh, err := m.api.ListConversations(ctx)
		if err != nil {
			m.logger.Error("Failed to list conversations", slog.String(errLoggerKey, err.Error()))
			data.Notice = "Agent service unreachable: " + err.Error()
		} else {
			m.convs.ReplaceAll(fresh)
			convs = m.convs.All()
			if m.cache != nil {
				if err := m.cache.SaveConversations(convs); err != nil {
					m.logger.Error("Failed to cache conversations", slog.String(errLoggerKey, err.Error()))
				}
			}
		}
	}
	data.Conversations = convs

	data.CurrentID = r.URL.Query().Get("conversation_id")
	if data.CurrentID == "" && len(convs) > 0 {
		data.CurrentID = convs[0].ID
	}

	if data.CurrentID != "" {
		messages, err := m.api.History(ctx, data.CurrentID)
		if err != nil {
			m.logger.Error("Failed to fetch history",
				slog.String("conversationID", data.CurrentID),
				slog.String(errLoggerKey, err.Error()))
			if data.Notice == "" {
				data.Notice = "Failed to fetch history: " + err.Error()
			}
		}
		data.Messages = renderHistory(messages, m.logger)

		if status, err := m.api.Status(ctx, data.CurrentID); err == nil {
			data.Status = statusView{
				Agents: statusNames(status.Agents),
				Tools:  statusNames(status.Tools),
			}
			m.mu.Lock()
			m.activeAgents = data.Status.Agents
			m.activeTools = data.Status.Tools
			m.mu.Unlock()
		}
	}

	if agents, err := m.api.ListAgents(ctx); err == nil {
		data.Agents = agents
	}
	if tools, err := m.api.ListTools(ctx); err == nil {
		data.Tools = tools
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// renderHistory converts history entries to display views: assistant messages
// go through the markdown renderer, user messages stay escaped text.
func renderHistory(messages []models.Message, logger *slog.Logger) []messageView {
	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		view := messageView{
			ID:   uuid.New().String(),
			Role: string(msg.Role),
			Time: msg.Time().Format(time.Kitchen),
		}
		if msg.Role == models.RoleAssistant {
			html, err := models.RenderMarkdown(msg.Content)
			if err != nil {
				logger.Error("Failed to render message", slog.String(errLoggerKey, err.Error()))
				view.Content = msg.Content
			} else {
				view.HTML = html
			}
		} else {
			view.Content = msg.Content
		}
		views = append(views, view)
	}
	return views
}
