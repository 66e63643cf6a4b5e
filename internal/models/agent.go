package models

// Agent describes a sub-agent registered with the agent service.
type Agent struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	Enabled     bool     `json:"enabled"`
	UsageCount  int      `json:"usage_count"`
	CreatedAt   string   `json:"created_at"`
}

// Tool describes a dynamically created tool held by the agent service.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UsageCount  int    `json:"usage_count"`
}

// Status reports the agents and tools active for one conversation.
type Status struct {
	ThreadID   string            `json:"thread_id"`
	Agents     map[string]string `json:"agents"`
	Tools      map[string]string `json:"tools"`
	UsageStats map[string]int    `json:"usage_stats"`
}
