package chat

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/stonefell/toolforge-web-ui/internal/models"
)

// API is the slice of the agent service a client consumes while driving a
// turn.
type API interface {
	ChatStream(ctx context.Context, conversationID, message string) iter.Seq2[models.StreamEvent, error]
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

// Sink receives the display updates produced during a turn. Implementations
// own the actual rendering surface (web fragments, terminal lines) and must
// apply updates in call order.
type Sink interface {
	// UserMessage shows the optimistically appended user message.
	UserMessage(conversationID string, msg models.Message)
	// AssistantMessage fills the pending assistant slot. Failed marks the
	// content as an error to be rendered distinctly.
	AssistantMessage(conversationID, content string, failed bool)
	// ActiveStatus updates the active agent and tool display.
	ActiveStatus(agents, tools []string)
	// ConversationsChanged reports a new snapshot of the conversation list.
	ConversationsChanged(convs []models.Conversation)
	// Notice surfaces a lightweight inline notice for collaborator failures.
	Notice(text string)
}

const (
	requestIcon = "🚀"
	errorIcon   = "❌"
)

// Client drives one streamed turn at a time against the agent service. It
// owns the step tracker for the duration of a turn and keeps the conversation
// store's metadata current.
type Client struct {
	api    API
	sink   Sink
	steps  *Tracker
	convs  *Store
	logger *slog.Logger

	sending atomic.Bool
}

// NewClient wires a chat client to its collaborators.
func NewClient(api API, sink Sink, steps *Tracker, convs *Store, logger *slog.Logger) *Client {
	return &Client{
		api:    api,
		sink:   sink,
		steps:  steps,
		convs:  convs,
		logger: logger.With(slog.String("module", "chat")),
	}
}

// Sending reports whether a turn is currently in flight.
func (c *Client) Sending() bool {
	return c.sending.Load()
}

// Send runs one turn: it appends the user message, opens the turn stream,
// routes progress events to the step tracker and the terminal event to the
// assistant slot, then refreshes the conversation list. The call is a no-op
// while another turn is in flight; at most one turn ever runs per client.
// Send blocks until the stream ends or fails; there is no internal timeout,
// so any deadline has to come from ctx.
func (c *Client) Send(ctx context.Context, conversationID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.logger.Debug("send ignored, turn already in flight",
			slog.String("conversationID", conversationID))
		return
	}
	defer c.sending.Store(false)

	// The title is derived locally only when this turn is the first
	// exchange, judged before the stream can change the count.
	firstExchange := false
	if conv, ok := c.convs.FindByID(conversationID); ok {
		firstExchange = conv.MessageCount == 0
	}

	c.steps.Reset()
	c.steps.Append(requestIcon, "Sending request")

	c.sink.UserMessage(conversationID, models.Message{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	})

	for event, err := range c.api.ChatStream(ctx, conversationID, text) {
		if err != nil {
			// Transport failures take the same rendering path as
			// failures the service reports itself.
			c.logger.Error("turn stream failed", slog.String("err", err.Error()))
			c.dispatch(conversationID, text, firstExchange, models.StreamEvent{
				Kind: models.EventFailure,
				Text: err.Error(),
			})
			break
		}
		c.dispatch(conversationID, text, firstExchange, event)
	}

	c.steps.MarkFinished()
	c.refreshConversations(ctx)
}

func (c *Client) dispatch(conversationID, userText string, firstExchange bool, event models.StreamEvent) {
	switch event.Kind {
	case models.EventProgress:
		c.steps.Append(event.Icon, event.Text)
	case models.EventCompletion:
		c.sink.AssistantMessage(conversationID, event.Text, false)
		if firstExchange {
			c.convs.UpsertTitle(conversationID, models.DeriveTitle(userText))
			c.sink.ConversationsChanged(c.convs.All())
		}
		c.sink.ActiveStatus(event.Agents, event.Tools)
	case models.EventFailure:
		c.sink.AssistantMessage(conversationID, event.Text, true)
		c.steps.Append(errorIcon, event.Text)
	}
}

// refreshConversations picks up server-side metadata changes after a turn.
// Failures here do not affect the finished turn and surface as a notice.
func (c *Client) refreshConversations(ctx context.Context) {
	convs, err := c.api.ListConversations(ctx)
	if err != nil {
		c.logger.Error("failed to refresh conversations", slog.String("err", err.Error()))
		c.sink.Notice("Failed to refresh conversations: " + err.Error())
		return
	}
	c.convs.ReplaceAll(convs)
	c.sink.ConversationsChanged(c.convs.All())
}
