package handlers

import (
	"log/slog"
	"net/http"
)

// HandleConversationCreate creates a new conversation through the agent
// service and pushes the refreshed sidebar.
func (m *Main) HandleConversationCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conv, err := m.api.CreateConversation(r.Context(), r.FormValue("title"))
	if err != nil {
		m.collaboratorError(w, "Failed to create conversation", err)
		return
	}

	m.convs.ReplaceAll(append(m.convs.All(), conv))
	m.ConversationsChanged(m.convs.All())

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(conv.ID))
}

// HandleConversationDelete removes a conversation and its history.
func (m *Main) HandleConversationDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if err := m.api.DeleteConversation(r.Context(), id); err != nil {
		m.collaboratorError(w, "Failed to delete conversation", err)
		return
	}

	m.convs.RemoveByID(id)
	m.ConversationsChanged(m.convs.All())

	w.WriteHeader(http.StatusNoContent)
}

// HandleAgentToggle enables or disables a sub-agent and responds with the
// refreshed agents panel.
func (m *Main) HandleAgentToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.PathValue("name")
	enabled := r.FormValue("enabled") == "true"
	if err := m.api.ToggleAgent(r.Context(), name, enabled); err != nil {
		m.collaboratorError(w, "Failed to toggle agent", err)
		return
	}

	m.renderAgentsPanel(w, r)
}

// HandleAgentDelete removes a sub-agent and responds with the refreshed
// agents panel.
func (m *Main) HandleAgentDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.api.DeleteAgent(r.Context(), r.PathValue("name")); err != nil {
		m.collaboratorError(w, "Failed to delete agent", err)
		return
	}

	m.renderAgentsPanel(w, r)
}

// HandleToolAssign assigns a global tool to a sub-agent.
func (m *Main) HandleToolAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agentName := r.PathValue("name")
	toolName := r.FormValue("tool")
	if toolName == "" {
		http.Error(w, "Tool is required", http.StatusBadRequest)
		return
	}
	if err := m.api.AssignTool(r.Context(), agentName, toolName); err != nil {
		m.collaboratorError(w, "Failed to assign tool", err)
		return
	}

	m.renderAgentsPanel(w, r)
}

// HandleToolRemove removes a tool from a sub-agent.
func (m *Main) HandleToolRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.api.RemoveTool(r.Context(), r.PathValue("name"), r.PathValue("tool")); err != nil {
		m.collaboratorError(w, "Failed to remove tool", err)
		return
	}

	m.renderAgentsPanel(w, r)
}

// HandleToolDelete removes a global tool and responds with the refreshed
// tools panel.
func (m *Main) HandleToolDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.api.DeleteTool(r.Context(), r.PathValue("name")); err != nil {
		m.collaboratorError(w, "Failed to delete tool", err)
		return
	}

	tools, err := m.api.ListTools(r.Context())
	if err != nil {
		m.collaboratorError(w, "Failed to list tools", err)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "tools_panel", tools); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m *Main) renderAgentsPanel(w http.ResponseWriter, r *http.Request) {
	agents, err := m.api.ListAgents(r.Context())
	if err != nil {
		m.collaboratorError(w, "Failed to list agents", err)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "agents_panel", agents); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// collaboratorError reports a management-endpoint failure both as an inline
// notice and as the HTTP response. An in-flight turn is unaffected.
func (m *Main) collaboratorError(w http.ResponseWriter, what string, err error) {
	m.logger.Error(what, slog.String(errLoggerKey, err.Error()))
	m.Notice(what + ": " + err.Error())
	http.Error(w, err.Error(), http.StatusBadGateway)
}
