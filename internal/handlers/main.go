package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmaxmax/go-sse"

	toolforgeui "github.com/stonefell/toolforge-web-ui"
	"github.com/stonefell/toolforge-web-ui/internal/chat"
	"github.com/stonefell/toolforge-web-ui/internal/models"
)

// AgentAPI is the collaborator surface of the tool-creator agent service
// consumed by the web layer. It extends the slice the chat client needs with
// the plain request/response management endpoints.
type AgentAPI interface {
	chat.API

	CreateConversation(ctx context.Context, title string) (models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	History(ctx context.Context, id string) ([]models.Message, error)

	ListAgents(ctx context.Context) ([]models.Agent, error)
	ToggleAgent(ctx context.Context, name string, enabled bool) error
	DeleteAgent(ctx context.Context, name string) error
	AssignTool(ctx context.Context, agentName, toolName string) error
	RemoveTool(ctx context.Context, agentName, toolName string) error

	ListTools(ctx context.Context) ([]models.Tool, error)
	DeleteTool(ctx context.Context, name string) error

	Status(ctx context.Context, id string) (models.Status, error)
}

// Cache persists conversation summaries between runs. It may be nil, in which
// case the sidebar starts empty until the first listing round-trip.
type Cache interface {
	Conversations() ([]models.Conversation, error)
	SaveConversations(convs []models.Conversation) error
}

// Main wires the agent service client, the chat client and the SSE push
// server behind the web UI. It is the chat client's display sink: every
// update produced during a turn is rendered to a template fragment and pushed
// to the browser over SSE.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	api   AgentAPI
	cache Cache
	convs *chat.Store
	steps *chat.Tracker
	chat  *chat.Client

	logger *slog.Logger

	mu           sync.Mutex
	activeAgents []string
	activeTools  []string
}

// SSE topics the browser subscribes to.
const (
	chatsSSETopic    = "chats"
	messagesSSETopic = "messages"
	stepsSSETopic    = "steps"
	statusSSETopic   = "status"
	noticesSSETopic  = "notices"
)

const errLoggerKey = "err"

// NewMain creates the web layer on top of the given agent service client.
// stepHideDelay is the grace delay before the step log collapses after a
// finished turn.
func NewMain(api AgentAPI, cache Cache, stepHideDelay time.Duration, logger *slog.Logger) (*Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		toolforgeui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, err
	}

	m := &Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics: []string{
						sse.DefaultTopic,
						chatsSSETopic,
						messagesSSETopic,
						stepsSSETopic,
						statusSSETopic,
						noticesSSETopic,
					},
				}, true
			},
		},
		templates: tmpl,
		api:       api,
		cache:     cache,
		convs:     chat.NewStore(),
		logger:    logger.With(slog.String("module", "handlers")),
	}
	m.steps = chat.NewTracker(stepHideDelay, m.publishSteps)
	m.chat = chat.NewClient(api, m, m.steps, m.convs, logger)

	m.warmConversations()

	return m, nil
}

// HandleSSE serves the event-stream endpoint the browser subscribes to.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections
// to terminate.
func (m *Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// warmConversations fills the store from the local cache so the sidebar has
// content before the first listing round-trip.
func (m *Main) warmConversations() {
	if m.cache == nil {
		return
	}
	convs, err := m.cache.Conversations()
	if err != nil {
		m.logger.Error("Failed to load cached conversations", slog.String(errLoggerKey, err.Error()))
		return
	}
	m.convs.ReplaceAll(convs)
}

// publish renders the named template fragment and pushes it on an SSE topic.
func (m *Main) publish(eventType, topic, tmplName string, data any) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, tmplName, data); err != nil {
		m.logger.Error("Failed to execute template",
			slog.String("template", tmplName),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, topic); err != nil {
		m.logger.Error("Failed to publish SSE message",
			slog.String("topic", topic),
			slog.String(errLoggerKey, err.Error()))
	}
}
