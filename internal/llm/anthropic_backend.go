package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dsa-core/dsa-core/internal/apperr"
)

type anthropicBackend struct{}

func (b *anthropicBackend) Generate(ctx context.Context, req Request, apiKey string) (Response, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	messages, systemText := convertMessagesToAnthropic(req.Messages)
	if req.SystemInstruction != "" {
		systemText = req.SystemInstruction
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToAnthropic(req.Tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		if IsRateLimitError(err) {
			return Response{}, apperr.LLMRateLimited("anthropic: rate limited", err)
		}
		return Response{}, apperr.SourceTransient("anthropic request failed", err)
	}

	out := Response{Provider: ProviderAnthropic, Model: req.Model}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := map[string]interface{}{}
			_ = json.Unmarshal(block.Input, &args)
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		case "thinking":
			out.ReasoningBlob = block.Thinking
		}
	}
	out.Text = text.String()
	out.FinishedOnTools = len(out.ToolCalls) > 0
	if out.Text == "" && len(out.ToolCalls) == 0 {
		return Response{}, apperr.LLMInvalidResponse("anthropic: empty response", errors.New("no text or tool_use content"))
	}
	return out, nil
}

func convertMessagesToAnthropic(msgs []Message) ([]anthropic.MessageParam, string) {
	var system string
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
			continue
		case RoleUser:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
			for _, img := range m.Images {
				if img.Data != "" {
					blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, base64Payload(img.Data)))
				}
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case RoleTool:
			if m.ToolResult != nil {
				out = append(out, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(m.ToolResult.ToolCallID, m.ToolResult.Content, m.ToolResult.IsError),
				))
			}
		}
	}
	return out, system
}

func convertToolsToAnthropic(specs []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: s.Parameters["properties"],
		}, s.Name))
	}
	return out
}

func base64Payload(data string) string {
	if strings.HasPrefix(data, "data:") {
		if idx := strings.Index(data, ","); idx >= 0 {
			return data[idx+1:]
		}
	}
	if _, err := base64.StdEncoding.DecodeString(data); err == nil {
		return data
	}
	return base64.StdEncoding.EncodeToString([]byte(data))
}
