package llm

import "strings"

// StripNamespace removes an MCP-style "default_api:" or "server:" prefix
// from a tool call name, since the ReAct agent's tool calls sometimes
// arrive namespaced by the client that registered them but the local
// tool registry keys on the bare name.
func StripNamespace(name string) string {
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// ToolSpecFromSchema builds a ToolSpec from a name/description/JSON
// schema triple, the same shape mcp-go's mcp.NewTool builder produces,
// so a tool registered for the MCP surface can be hosted unchanged as
// an LLM function declaration.
func ToolSpecFromSchema(name, description string, schema map[string]interface{}) ToolSpec {
	return ToolSpec{Name: name, Description: description, Parameters: schema}
}
