package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dsa-core/dsa-core/internal/apperr"
)

// openaiBackend targets both OpenAI proper and OpenAI-compatible
// third-party endpoints configured through the same model string
// (e.g. "gpt-4o-mini"), mirroring the pack's provider-detection
// convention of routing by model name prefix rather than a separate
// per-vendor client type.
type openaiBackend struct{}

func (b *openaiBackend) Generate(ctx context.Context, req Request, apiKey string) (Response, error) {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessagesToOpenAI(req),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToOpenAI(req.Tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		if IsRateLimitError(err) {
			return Response{}, apperr.LLMRateLimited("openai: rate limited", err)
		}
		return Response{}, apperr.SourceTransient("openai request failed", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, apperr.LLMInvalidResponse("openai: empty response", errors.New("no choices"))
	}

	choice := resp.Choices[0]
	out := Response{Provider: ProviderOpenAI, Model: req.Model, Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]interface{}{}
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	out.FinishedOnTools = len(out.ToolCalls) > 0
	return out, nil
}

func convertMessagesToOpenAI(req Request) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	if req.SystemInstruction != "" {
		out = append(out, openai.SystemMessage(req.SystemInstruction))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(m.Content)}
			for _, img := range m.Images {
				url := img.URL
				if url == "" {
					url = "data:" + img.MediaType + ";base64," + base64Payload(img.Data)
				}
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
			}
			out = append(out, openai.UserMessage(parts))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			out = append(out, assistantMessageWithToolCalls(m))
		case RoleTool:
			if m.ToolResult != nil {
				out = append(out, openai.ToolMessage(m.ToolResult.Content, m.ToolResult.ToolCallID))
			}
		}
	}
	return out
}

// assistantMessageWithToolCalls carries an assistant turn's requested
// tool calls onto the wire, so a following ToolMessage has the
// preceding assistant "tool_calls" entry its tool_call_id references;
// without this an OpenAI-compatible endpoint rejects the follow-up.
func assistantMessageWithToolCalls(m Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		argsJSON, _ := json.Marshal(tc.Arguments)
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(argsJSON),
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)},
			ToolCalls: calls,
		},
	}
}

func convertToolsToOpenAI(specs []ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.Parameters),
			},
		})
	}
	return out
}
