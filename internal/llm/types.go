// Package llm is the C5 LLM Router: a provider-agnostic facade over
// Anthropic Claude, Google Gemini, and OpenAI-compatible chat
// completion APIs, generalizing the two-provider factory pattern from
// the pack's ternarybob-quaero into an N-model routing/fallback chain
// with per-key cooldown pools.
package llm

import "context"

// Provider names a concrete backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
)

// Role mirrors the provider-agnostic chat roles used by ConversationTurn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ImageBlock is a vision content block, either an inline base64 payload
// or an externally hosted URL; exactly one of Data or URL is set.
type ImageBlock struct {
	MediaType string
	Data      string // base64; a leading data: URL prefix is stripped by each backend
	URL       string
}

// ToolCall is a normalized function-call request from the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolResult feeds a prior ToolCall's output back to the model.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// ToolSpec describes a callable tool using the same shape mcp-go's
// mcp.Tool exposes (name/description/JSON-schema parameters), so tool
// definitions built for the MCP surface translate to LLM function
// declarations without a second schema dialect.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema object
}

// Message is one turn in a provider-agnostic conversation.
type Message struct {
	Role       Role
	Content    string
	Images     []ImageBlock
	ToolCalls  []ToolCall // set on an assistant turn requesting tool use
	ToolResult *ToolResult
}

// Request is a provider-agnostic content generation request.
type Request struct {
	Model             string
	Messages          []Message
	SystemInstruction string
	Tools             []ToolSpec
	Temperature       float64
	MaxTokens         int
	JSONSchema        map[string]interface{} // structured-output schema, when supported
}

// Response is a provider-agnostic content generation result.
type Response struct {
	Text            string
	Provider        Provider
	Model           string
	ToolCalls       []ToolCall
	ReasoningBlob   string // opaque thought-signature/reasoning passthrough
	FinishedOnTools bool
}

// backendClient is the per-provider seam the Router dispatches to.
type backendClient interface {
	Generate(ctx context.Context, req Request, apiKey string) (Response, error)
}
