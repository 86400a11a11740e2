package models

// TenantAgentConfig holds the per-company provider credentials used to build
// an agent handle. Credential values are opaque and never inspected.
type TenantAgentConfig struct {
	CompanyID        int64  `json:"company_id"`
	ProjectID        string `json:"azure_project_id,omitempty"`
	AgentID          string `json:"azure_agent_id,omitempty"`
	VectorStoreID    string `json:"azure_vector_store_id,omitempty"`
	OpenAIEndpoint   string `json:"azure_openai_endpoint,omitempty"`
	OpenAIKey        string `json:"-"`
	OpenAIDeployment string `json:"azure_openai_deployment,omitempty"`
	SearchEndpoint   string `json:"azure_search_endpoint,omitempty"`
	SearchKey        string `json:"-"`
}

// HasLLM reports whether chat-model credentials are present.
func (c TenantAgentConfig) HasLLM() bool {
	return c.OpenAIEndpoint != "" && c.OpenAIKey != ""
}

// HasRAG reports whether a remote search backend is configured.
func (c TenantAgentConfig) HasRAG() bool {
	return c.SearchEndpoint != "" && c.SearchKey != ""
}

// AuthContext carries the credentials obtained for the calling agent.
type AuthContext struct {
	AccessToken     string
	AgentInstanceID string
}
