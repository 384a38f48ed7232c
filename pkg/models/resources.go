package models

import "time"

// ListResponse is the paginated envelope returned by every list endpoint
type ListResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Pages    int `json:"pages,omitempty"`
}

// ListOptions are the common query parameters accepted by list endpoints
type ListOptions struct {
	Page     int
	PageSize int
	Search   string

	// Filters holds resource specific filters such as status or template_type
	Filters map[string]string
}

// Agent is an LLM-backed worker definition
type Agent struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Role            string    `json:"role"`
	Goal            string    `json:"goal"`
	Backstory       string    `json:"backstory,omitempty"`
	LLMProvider     string    `json:"llm_provider,omitempty"`
	LLMModel        string    `json:"llm_model,omitempty"`
	Temperature     float64   `json:"temperature,omitempty"`
	MaxTokens       int       `json:"max_tokens,omitempty"`
	Verbose         bool      `json:"verbose"`
	AllowDelegation bool      `json:"allow_delegation"`
	MaxIter         int       `json:"max_iter,omitempty"`
	MemoryEnabled   bool      `json:"memory_enabled"`
	SystemPrompt    string    `json:"system_prompt,omitempty"`
	ToolIDs         []string  `json:"tool_ids,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	IsPublic        bool      `json:"is_public"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Task is a unit of work assigned to an agent
type Task struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ExpectedOutput string    `json:"expected_output,omitempty"`
	AgentID        string    `json:"agent_id,omitempty"`
	AsyncExecution bool      `json:"async_execution"`
	HumanInput     bool      `json:"human_input"`
	Tools          []string  `json:"tools,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Crew is a group of agents working through tasks
type Crew struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Process       string    `json:"process"` // "sequential" or "hierarchical"
	Verbose       bool      `json:"verbose"`
	MemoryEnabled bool      `json:"memory_enabled"`
	IsDeployed    bool      `json:"is_deployed"`
	AgentIDs      []string  `json:"agent_ids,omitempty"`
	TaskIDs       []string  `json:"task_ids,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FlowStep is a node of a flow graph. Steps are static once a flow is loaded.
type FlowStep struct {
	ID          string                 `json:"id,omitempty"`
	FlowID      string                 `json:"flow_id,omitempty"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	StepType    string                 `json:"step_type"`
	Order       int                    `json:"order"`
	PositionX   float64                `json:"position_x"`
	PositionY   float64                `json:"position_y"`
	Config      map[string]interface{} `json:"config,omitempty"`
	CrewID      string                 `json:"crew_id,omitempty"`
}

// FlowConnection links two flow steps
type FlowConnection struct {
	ID             string `json:"id,omitempty"`
	SourceStepID   string `json:"source_step_id"`
	TargetStepID   string `json:"target_step_id"`
	ConnectionType string `json:"connection_type,omitempty"`
	Condition      string `json:"condition,omitempty"`
	RouteName      string `json:"route_name,omitempty"`
	Label          string `json:"label,omitempty"`
}

// Flow is an event-driven workflow made of steps and connections
type Flow struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Description        string                 `json:"description,omitempty"`
	StateSchema        map[string]interface{} `json:"state_schema,omitempty"`
	PersistenceEnabled bool                   `json:"persistence_enabled"`
	Stream             bool                   `json:"stream"`
	IsActive           bool                   `json:"is_active"`
	IsDeployed         bool                   `json:"is_deployed"`
	Tags               []string               `json:"tags,omitempty"`
	Steps              []FlowStep             `json:"steps,omitempty"`
	Connections        []FlowConnection       `json:"connections,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// KnowledgeSource is a document collection agents can search
type KnowledgeSource struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	SourceType     string    `json:"source_type"`
	Status         string    `json:"status"`
	FileName       string    `json:"file_name,omitempty"`
	FileSize       int64     `json:"file_size,omitempty"`
	FileType       string    `json:"file_type,omitempty"`
	URL            string    `json:"url,omitempty"`
	TextContent    string    `json:"text_content,omitempty"`
	ChunkCount     int       `json:"chunk_count"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// KnowledgeChunk is one indexed piece of a knowledge source
type KnowledgeChunk struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score,omitempty"`
}

// DeployResponse acknowledges a crew deployment
type DeployResponse struct {
	Message string `json:"message"`
	CrewID  string `json:"crew_id"`
}

// Tool types
const (
	ToolBuiltin   = "builtin"
	ToolCustom    = "custom"
	ToolMCP       = "mcp"
	ToolLangchain = "langchain"
)

// Tool is a capability agents can call
type Tool struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	ToolType       string                 `json:"tool_type"`
	CategoryID     string                 `json:"category_id,omitempty"`
	Category       *ToolCategory          `json:"category,omitempty"`
	ModulePath     string                 `json:"module_path,omitempty"`
	ClassName      string                 `json:"class_name,omitempty"`
	CustomCode     string                 `json:"custom_code,omitempty"`
	ArgsSchema     map[string]interface{} `json:"args_schema,omitempty"`
	EnvVars        []string               `json:"env_vars,omitempty"`
	DefaultConfig  map[string]interface{} `json:"default_config,omitempty"`
	CacheEnabled   bool                   `json:"cache_enabled"`
	MaxUsageCount  int                    `json:"max_usage_count,omitempty"`
	ResultAsAnswer bool                   `json:"result_as_answer"`
	Icon           string                 `json:"icon,omitempty"`
	Color          string                 `json:"color,omitempty"`
	OwnerID        string                 `json:"owner_id,omitempty"`
	IsActive       bool                   `json:"is_active"`
	IsPublic       bool                   `json:"is_public"`
	IsBuiltin      bool                   `json:"is_builtin"`
	Tags           []string               `json:"tags,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ToolCategory groups tools in the catalogue
type ToolCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Order       int    `json:"order"`
}

// KnowledgeSearchRequest queries across knowledge sources
type KnowledgeSearchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"top_k,omitempty"`
	SourceIDs []string `json:"source_ids,omitempty"`
}

// KnowledgeSearchResult is a scored chunk match
type KnowledgeSearchResult struct {
	Chunk      KnowledgeChunk `json:"chunk"`
	SourceID   string         `json:"source_id"`
	SourceName string         `json:"source_name"`
	Score      float64        `json:"score"`
}

// Trigger types
const (
	TriggerWebhook  = "webhook"
	TriggerSchedule = "schedule"
	TriggerEvent    = "event"
)

// Trigger starts executions automatically
type Trigger struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	TriggerType     string                 `json:"trigger_type"`
	TargetType      string                 `json:"target_type"` // "crew" or "flow"
	CrewID          string                 `json:"crew_id,omitempty"`
	FlowID          string                 `json:"flow_id,omitempty"`
	Config          map[string]interface{} `json:"config,omitempty"`
	InputMapping    map[string]interface{} `json:"input_mapping,omitempty"`
	IsActive        bool                   `json:"is_active"`
	LastTriggeredAt *time.Time             `json:"last_triggered_at,omitempty"`
	TriggerCount    int                    `json:"trigger_count"`
	WebhookURL      string                 `json:"webhook_url,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// TemplateCategory groups marketplace templates
type TemplateCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Order       int    `json:"order"`
}

// Template is a published agent, crew or flow definition
type Template struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Slug         string                 `json:"slug"`
	Description  string                 `json:"description,omitempty"`
	TemplateType string                 `json:"template_type"`
	CategoryID   string                 `json:"category_id,omitempty"`
	Content      map[string]interface{} `json:"content,omitempty"`
	Downloads    int                    `json:"downloads"`
	Likes        int                    `json:"likes"`
	Rating       float64                `json:"rating"`
	RatingCount  int                    `json:"rating_count"`
	IsFree       bool                   `json:"is_free"`
	Price        float64                `json:"price,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	AuthorID     string                 `json:"author_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// TemplateUseResponse is returned after instantiating a template
type TemplateUseResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Type    string `json:"type"`
}

// User is the authenticated account
type User struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	FullName    string                 `json:"full_name,omitempty"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	IsActive    bool                   `json:"is_active"`
	Role        string                 `json:"role"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	LastLoginAt *time.Time             `json:"last_login_at,omitempty"`
}

// MessageResponse is the generic {"message": ...} body
type MessageResponse struct {
	Message string `json:"message"`
}
