package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/stonefell/toolforge-web-ui/internal/models"
	"github.com/stonefell/toolforge-web-ui/internal/services"
)

var (
	stepColor      = color.New(color.FgYellow)
	answerColor    = color.New(color.FgGreen)
	errColor       = color.New(color.FgRed)
	headingColor   = color.New(color.FgCyan, color.Bold)
	promptColor = color.New(color.FgBlue)
)

func main() {
	server := flag.String("server", "http://localhost:8000", "Agent service URL")
	conversationID := flag.String("conversation", "", "Conversation ID to resume")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := services.NewAgentService(*server, logger)

	fmt.Printf("toolforge-tui connected to %s\n", *server)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, api, *conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, api services.AgentService, conversationID string) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if conversationID != "" {
			promptColor.Printf("[%s]> ", shortID(conversationID))
		} else {
			promptColor.Print("> ")
		}

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if cmd, args, ok := parseCommand(input); ok {
			var err error
			switch cmd {
			case "/help":
				printHelp()
			case "/conversations":
				err = listConversations(ctx, api)
			case "/new":
				conversationID, err = newConversation(ctx, api)
			case "/use":
				conversationID = args
				if args == "" {
					fmt.Println("Cleared conversation selection")
				} else {
					fmt.Printf("Now using conversation %s\n", args)
				}
			case "/history":
				err = showHistory(ctx, api, conversationID)
			case "/agents":
				err = listAgents(ctx, api)
			case "/tools":
				err = listTools(ctx, api)
			case "/status":
				err = showStatus(ctx, api, conversationID)
			default:
				fmt.Printf("Unknown command %s, try /help\n", cmd)
			}
			if err != nil {
				errColor.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		id, err := streamMessage(ctx, api, conversationID, input)
		if err != nil {
			errColor.Printf("[error] %v\n", err)
		}
		if id != "" {
			conversationID = id
		}
		fmt.Println()
	}
}

func parseCommand(input string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}
	cmd, args, _ = strings.Cut(input, " ")
	return cmd, strings.TrimSpace(args), true
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /conversations  List conversations")
	fmt.Println("  /new            Start a new conversation")
	fmt.Println("  /use <id>       Switch to a conversation")
	fmt.Println("  /use            Clear conversation selection")
	fmt.Println("  /history        Show conversation history")
	fmt.Println("  /agents         List agents")
	fmt.Println("  /tools          List tools")
	fmt.Println("  /status         Show status for the current conversation")
	fmt.Println("  /help           Show this help")
	fmt.Println("  /quit           Exit")
}

// streamMessage sends a message and prints step events as they arrive.
// It creates a conversation first when none is selected, and returns the
// conversation ID that ended up being used.
func streamMessage(ctx context.Context, api services.AgentService, conversationID, text string) (string, error) {
	if conversationID == "" {
		conv, err := api.CreateConversation(ctx, models.DeriveTitle(text))
		if err != nil {
			return "", fmt.Errorf("creating conversation: %w", err)
		}
		conversationID = conv.ID
		fmt.Printf("Started conversation %s\n", shortID(conversationID))
	}

	for event, err := range api.ChatStream(ctx, conversationID, text) {
		if err != nil {
			return conversationID, err
		}
		switch event.Kind {
		case models.EventProgress:
			stepColor.Printf("%s %s\n", event.Icon, event.Text)
		case models.EventCompletion:
			fmt.Println()
			answerColor.Println(event.Text)
		case models.EventFailure:
			errColor.Printf("%s %s\n", event.Icon, event.Text)
		}
	}
	return conversationID, nil
}

func listConversations(ctx context.Context, api services.AgentService) error {
	convs, err := api.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations")
		return nil
	}
	headingColor.Println("Conversations:")
	for _, c := range convs {
		fmt.Printf("  %s  %s (%d messages)\n", shortID(c.ID), c.Title, c.MessageCount)
	}
	return nil
}

func newConversation(ctx context.Context, api services.AgentService) (string, error) {
	conv, err := api.CreateConversation(ctx, "New Conversation")
	if err != nil {
		return "", err
	}
	fmt.Printf("Started conversation %s\n", conv.ID)
	return conv.ID, nil
}

func showHistory(ctx context.Context, api services.AgentService, conversationID string) error {
	if conversationID == "" {
		fmt.Println("No conversation selected. Use /use <id> first.")
		return nil
	}
	messages, err := api.History(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No messages yet")
		return nil
	}
	headingColor.Printf("History for %s:\n", shortID(conversationID))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			promptColor.Printf("you> ")
			fmt.Println(msg.Content)
		case models.RoleAssistant:
			answerColor.Println(msg.Content)
		}
	}
	return nil
}

func listAgents(ctx context.Context, api services.AgentService) error {
	agents, err := api.ListAgents(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents registered")
		return nil
	}
	headingColor.Println("Agents:")
	for _, a := range agents {
		state := "enabled"
		if !a.Enabled {
			state = "disabled"
		}
		fmt.Printf("  %s (%s, %s) tools: %s\n", a.Name, a.Role, state, strings.Join(a.Tools, ", "))
	}
	return nil
}

func listTools(ctx context.Context, api services.AgentService) error {
	tools, err := api.ListTools(ctx)
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Println("No tools registered")
		return nil
	}
	headingColor.Println("Tools:")
	for _, t := range tools {
		fmt.Printf("  %s: %s (used %d times)\n", t.Name, t.Description, t.UsageCount)
	}
	return nil
}

func showStatus(ctx context.Context, api services.AgentService, conversationID string) error {
	if conversationID == "" {
		fmt.Println("No conversation selected. Use /use <id> first.")
		return nil
	}
	status, err := api.Status(ctx, conversationID)
	if err != nil {
		return err
	}
	headingColor.Printf("Status for %s:\n", shortID(conversationID))
	printStatusSection("Agents", status.Agents)
	printStatusSection("Tools", status.Tools)
	return nil
}

func printStatusSection(label string, entries map[string]string) {
	fmt.Printf("  %s:\n", label)
	if len(entries) == 0 {
		fmt.Println("    (none)")
		return
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %s: %s\n", name, entries[name])
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
