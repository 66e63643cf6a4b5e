package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stonefell/toolforge-web-ui/internal/chat"
	"github.com/stonefell/toolforge-web-ui/internal/models"
)

// messageView is the template payload for one rendered chat message.
type messageView struct {
	ID      string
	Role    string
	Content string
	HTML    template.HTML
	Time    string
	Failed  bool
}

// statusView is the template payload for the active agents/tools strip.
type statusView struct {
	Agents []string
	Tools  []string
}

// HandleChats accepts a user message through form data and starts a streamed
// turn for it. It expects a "message" form field and an optional
// "conversation_id" field; without the latter it creates a new conversation
// first. The turn itself runs asynchronously and every display update reaches
// the browser through SSE fragments, so the response only carries the
// conversation id.
//
// A second message while a turn is in flight is silently ignored by the chat
// client; the response code does not distinguish that case.
func (m *Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	conversationID := r.FormValue("conversation_id")
	if conversationID == "" {
		conv, err := m.api.CreateConversation(r.Context(), "")
		if err != nil {
			m.logger.Error("Failed to create conversation", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		conversationID = conv.ID

		// The fresh summary goes straight into the store so the first
		// exchange sees messageCount == 0 and derives the title.
		m.convs.ReplaceAll(append(m.convs.All(), conv))
		m.ConversationsChanged(m.convs.All())
	}

	go m.chat.Send(context.Background(), conversationID, msg)

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(conversationID))
}

// HandleStepsToggle flips the step log between expanded and collapsed. The
// log content is untouched.
func (m *Main) HandleStepsToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.steps.ToggleExpanded()
	w.WriteHeader(http.StatusNoContent)
}

// UserMessage implements chat.Sink: the optimistically appended user message
// is rendered escaped (no markup grammar applies to user text) and pushed to
// the message pane.
func (m *Main) UserMessage(_ string, msg models.Message) {
	m.publish("message", messagesSSETopic, "user_message", messageView{
		ID:      uuid.New().String(),
		Role:    string(msg.Role),
		Content: msg.Content,
		Time:    msg.Time().Format(time.Kitchen),
	})
}

// AssistantMessage implements chat.Sink: the terminal event's text fills the
// pending assistant slot. Successful completions go through the markdown
// renderer; failures render escaped with the error styling.
func (m *Main) AssistantMessage(_ string, content string, failed bool) {
	view := messageView{
		ID:     uuid.New().String(),
		Role:   string(models.RoleAssistant),
		Failed: failed,
		Time:   time.Now().Format(time.Kitchen),
	}
	if failed {
		view.Content = content
	} else {
		html, err := models.RenderMarkdown(content)
		if err != nil {
			m.logger.Error("Failed to render message", slog.String(errLoggerKey, err.Error()))
			view.Content = content
		} else {
			view.HTML = html
		}
	}
	m.publish("message", messagesSSETopic, "ai_message", view)
}

// ActiveStatus implements chat.Sink.
func (m *Main) ActiveStatus(agents, tools []string) {
	m.mu.Lock()
	m.activeAgents = agents
	m.activeTools = tools
	m.mu.Unlock()

	m.publish("status", statusSSETopic, "status", statusView{Agents: agents, Tools: tools})
}

// ConversationsChanged implements chat.Sink: the sidebar fragment is
// re-published and the snapshot lands in the local cache.
func (m *Main) ConversationsChanged(convs []models.Conversation) {
	if m.cache != nil {
		if err := m.cache.SaveConversations(convs); err != nil {
			m.logger.Error("Failed to cache conversations", slog.String(errLoggerKey, err.Error()))
		}
	}
	m.publish("chats", chatsSSETopic, "chat_list", convs)
}

// Notice implements chat.Sink.
func (m *Main) Notice(text string) {
	m.publish("notice", noticesSSETopic, "notice", text)
}

func (m *Main) publishSteps(snap chat.TrackerSnapshot) {
	m.publish("steps", stepsSSETopic, "steps", snap)
}

// statusNames flattens the status maps into sorted name lists for display.
func statusNames(entries map[string]string) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
