package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dsa-core/dsa-core/internal/logging"
)

// NewMCPServer exposes the registry's tools over the Model Context
// Protocol, so an external MCP client (an editor, a desktop assistant)
// can call the same history/quote/trend/news/sector tools the built-in
// chat agent uses, without going through the chat loop at all.
func NewMCPServer(reg *Registry, name, version string, log *logging.Logger) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	for _, t := range reg.List() {
		s.AddTool(toMCPTool(t), toMCPHandler(t, log))
	}
	return s
}

func toMCPTool(t Tool) mcp.Tool {
	schema, err := json.Marshal(t.Schema())
	if err != nil {
		schema = []byte(`{"type":"object","properties":{}}`)
	}
	return mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema)
}

func toMCPHandler(t Tool, log *logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			args = map[string]interface{}{}
		}
		out, err := t.Execute(ctx, args)
		if err != nil {
			log.Warnf("agent: mcp tool %s failed: %v", t.Name(), err)
			return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
