package chat_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stonefell/toolforge-web-ui/internal/chat"
	"github.com/stonefell/toolforge-web-ui/internal/models"
)

type mockAPI struct {
	events    []models.StreamEvent
	streamErr error

	convs   []models.Conversation
	listErr error

	// When non-nil, the stream waits here before yielding anything.
	block chan struct{}
}

func (m *mockAPI) ChatStream(_ context.Context, _, _ string) iter.Seq2[models.StreamEvent, error] {
	return func(yield func(models.StreamEvent, error) bool) {
		if m.block != nil {
			<-m.block
		}
		for _, event := range m.events {
			if !yield(event, nil) {
				return
			}
		}
		if m.streamErr != nil {
			yield(models.StreamEvent{}, m.streamErr)
		}
	}
}

func (m *mockAPI) ListConversations(_ context.Context) ([]models.Conversation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.convs, nil
}

type assistantCall struct {
	content string
	failed  bool
}

type mockSink struct {
	mu           sync.Mutex
	userMessages []models.Message
	assistant    []assistantCall
	statusAgents []string
	convUpdates  int
	notices      []string
}

func (m *mockSink) UserMessage(_ string, msg models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userMessages = append(m.userMessages, msg)
}

func (m *mockSink) AssistantMessage(_ string, content string, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assistant = append(m.assistant, assistantCall{content: content, failed: failed})
}

func (m *mockSink) ActiveStatus(agents, _ []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusAgents = agents
}

func (m *mockSink) ConversationsChanged(_ []models.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convUpdates++
}

func (m *mockSink) Notice(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, text)
}

func (m *mockSink) snapshot() (users []models.Message, assistant []assistantCall, agents []string, convUpdates int, notices []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.userMessages...),
		append([]assistantCall(nil), m.assistant...),
		append([]string(nil), m.statusAgents...),
		m.convUpdates,
		append([]string(nil), m.notices...)
}

func newTestClient(api *mockAPI, sink *mockSink) (*chat.Client, *chat.Tracker, *chat.Store) {
	tracker := chat.NewTracker(time.Minute, nil)
	store := chat.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return chat.NewClient(api, sink, tracker, store, logger), tracker, store
}

func TestClientSend(t *testing.T) {
	api := &mockAPI{
		events: []models.StreamEvent{
			{Kind: models.EventProgress, Icon: "🔍", Text: "Analyzing request"},
			{Kind: models.EventProgress, Icon: "📋", Text: "Creating tool"},
			{Kind: models.EventCompletion, Text: "All done", Agents: []string{"coder"}},
		},
		convs: []models.Conversation{{ID: "t-1", Title: "Server Title", LastMessageAt: 100, MessageCount: 2}},
	}
	sink := &mockSink{}
	client, tracker, store := newTestClient(api, sink)

	client.Send(context.Background(), "t-1", "make a tool")

	users, assistant, agents, _, _ := sink.snapshot()
	if len(users) != 1 || users[0].Content != "make a tool" || users[0].Role != models.RoleUser {
		t.Errorf("UserMessage calls = %+v", users)
	}
	if len(assistant) != 1 || assistant[0].failed || assistant[0].content != "All done" {
		t.Errorf("AssistantMessage calls = %+v", assistant)
	}
	if len(agents) != 1 || agents[0] != "coder" {
		t.Errorf("ActiveStatus agents = %v, want [coder]", agents)
	}

	snap := tracker.Snapshot()
	if !snap.Finished {
		t.Error("tracker not finished after the turn")
	}
	if len(snap.Entries) != 3 {
		t.Fatalf("tracker has %d entries, want request entry plus 2 steps", len(snap.Entries))
	}
	if snap.Entries[0].Icon != "🚀" {
		t.Errorf("tracker first entry icon = %q, want the request icon", snap.Entries[0].Icon)
	}
	if snap.Entries[1].Text != "Analyzing request" || snap.Entries[2].Text != "Creating tool" {
		t.Errorf("tracker entries = %v, want stream order preserved", snap.Entries)
	}

	if convs := store.All(); len(convs) != 1 || convs[0].Title != "Server Title" {
		t.Errorf("store after refresh = %v, want server listing", convs)
	}
	if client.Sending() {
		t.Error("Sending() = true after the turn finished")
	}
}

func TestClientDerivesTitleOnFirstExchange(t *testing.T) {
	message := strings.Repeat("a", 35)
	api := &mockAPI{
		events:  []models.StreamEvent{{Kind: models.EventCompletion, Text: "done"}},
		listErr: errors.New("listing down"),
	}
	sink := &mockSink{}
	client, _, store := newTestClient(api, sink)
	store.ReplaceAll([]models.Conversation{{ID: "t-1", Title: "New Conversation", MessageCount: 0}})

	client.Send(context.Background(), "t-1", message)

	want := strings.Repeat("a", 30) + "..."
	if conv, _ := store.FindByID("t-1"); conv.Title != want {
		t.Errorf("store title = %q, want %q", conv.Title, want)
	}
	_, _, _, convUpdates, _ := sink.snapshot()
	if convUpdates == 0 {
		t.Error("ConversationsChanged not called after title derivation")
	}
}

func TestClientKeepsTitleOnLaterExchanges(t *testing.T) {
	api := &mockAPI{
		events: []models.StreamEvent{{Kind: models.EventCompletion, Text: "done"}},
		convs:  []models.Conversation{{ID: "t-1", Title: "Settled Title", MessageCount: 4}},
	}
	sink := &mockSink{}
	client, _, store := newTestClient(api, sink)
	store.ReplaceAll([]models.Conversation{{ID: "t-1", Title: "Settled Title", MessageCount: 4}})

	client.Send(context.Background(), "t-1", "follow-up question")

	if conv, _ := store.FindByID("t-1"); conv.Title != "Settled Title" {
		t.Errorf("store title = %q, want unchanged", conv.Title)
	}
}

func TestClientServiceFailure(t *testing.T) {
	api := &mockAPI{
		events: []models.StreamEvent{
			{Kind: models.EventProgress, Text: "Working"},
			{Kind: models.EventFailure, Text: "tool generation failed"},
		},
	}
	sink := &mockSink{}
	client, tracker, _ := newTestClient(api, sink)

	client.Send(context.Background(), "t-1", "make a tool")

	_, assistant, _, _, _ := sink.snapshot()
	if len(assistant) != 1 || !assistant[0].failed || assistant[0].content != "tool generation failed" {
		t.Errorf("AssistantMessage calls = %+v, want the failure text marked failed", assistant)
	}

	snap := tracker.Snapshot()
	last := snap.Entries[len(snap.Entries)-1]
	if last.Icon != "❌" || last.Text != "tool generation failed" {
		t.Errorf("tracker last entry = %+v, want the failure entry", last)
	}
	if client.Sending() {
		t.Error("Sending() = true after a failed turn")
	}
}

func TestClientTransportFailure(t *testing.T) {
	api := &mockAPI{streamErr: errors.New("connection reset")}
	sink := &mockSink{}
	client, tracker, _ := newTestClient(api, sink)

	client.Send(context.Background(), "t-1", "make a tool")

	_, assistant, _, _, _ := sink.snapshot()
	if len(assistant) != 1 || !assistant[0].failed {
		t.Errorf("AssistantMessage calls = %+v, want one failed entry", assistant)
	}
	if !strings.Contains(assistant[0].content, "connection reset") {
		t.Errorf("AssistantMessage content = %q, want transport error text", assistant[0].content)
	}
	if !tracker.Snapshot().Finished {
		t.Error("tracker not finished after a transport failure")
	}
	if client.Sending() {
		t.Error("Sending() = true after a transport failure, guard not released")
	}

	// The next turn must go through.
	api.streamErr = nil
	api.events = []models.StreamEvent{{Kind: models.EventCompletion, Text: "recovered"}}
	client.Send(context.Background(), "t-1", "retry")

	_, assistant, _, _, _ = sink.snapshot()
	if len(assistant) != 2 || assistant[1].failed {
		t.Errorf("AssistantMessage calls after retry = %+v", assistant)
	}
}

func TestClientSingleFlight(t *testing.T) {
	block := make(chan struct{})
	api := &mockAPI{
		block:  block,
		events: []models.StreamEvent{{Kind: models.EventCompletion, Text: "done"}},
	}
	sink := &mockSink{}
	client, _, _ := newTestClient(api, sink)

	finished := make(chan struct{})
	go func() {
		client.Send(context.Background(), "t-1", "first message")
		close(finished)
	}()

	deadline := time.Now().Add(time.Second)
	for !client.Sending() {
		if time.Now().After(deadline) {
			t.Fatal("first Send never started")
		}
		time.Sleep(time.Millisecond)
	}

	// This must return immediately without appending a second user message.
	client.Send(context.Background(), "t-1", "second message")

	users, _, _, _, _ := sink.snapshot()
	if len(users) != 1 {
		t.Errorf("UserMessage calls while a turn is in flight = %d, want 1", len(users))
	}

	close(block)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("first Send never finished")
	}

	client.Send(context.Background(), "t-1", "third message")
	users, _, _, _, _ = sink.snapshot()
	if len(users) != 2 {
		t.Errorf("UserMessage calls after the turn finished = %d, want 2", len(users))
	}
}

func TestClientIgnoresEmptyMessage(t *testing.T) {
	api := &mockAPI{}
	sink := &mockSink{}
	client, _, _ := newTestClient(api, sink)

	client.Send(context.Background(), "t-1", "   ")

	users, assistant, _, convUpdates, _ := sink.snapshot()
	if len(users) != 0 || len(assistant) != 0 || convUpdates != 0 {
		t.Error("Send() with blank text produced sink calls")
	}
}

func TestClientListFailureSurfacesNotice(t *testing.T) {
	api := &mockAPI{
		events:  []models.StreamEvent{{Kind: models.EventCompletion, Text: "done"}},
		listErr: errors.New("service unavailable"),
	}
	sink := &mockSink{}
	client, _, _ := newTestClient(api, sink)

	client.Send(context.Background(), "t-1", "make a tool")

	_, _, _, _, notices := sink.snapshot()
	if len(notices) != 1 || !strings.Contains(notices[0], "service unavailable") {
		t.Errorf("Notice calls = %v, want refresh failure notice", notices)
	}
}
