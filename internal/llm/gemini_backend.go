package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/dsa-core/dsa-core/internal/apperr"
)

type geminiBackend struct{}

func (b *geminiBackend) Generate(ctx context.Context, req Request, apiKey string) (Response, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return Response{}, apperr.ConfigError("gemini: client init failed", err)
	}

	contents, systemText := convertMessagesToGemini(req.Messages)
	if req.SystemInstruction != "" {
		systemText = req.SystemInstruction
	}

	temp := req.Temperature
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(temp))}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if req.JSONSchema != nil {
		if schema, convErr := jsonSchemaToGenai(req.JSONSchema); convErr == nil && schema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = schema
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = convertToolsToGemini(req.Tools)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		if IsRateLimitError(err) {
			return Response{}, apperr.LLMRateLimited("gemini: rate limited", err)
		}
		return Response{}, apperr.SourceTransient("gemini request failed", err)
	}

	out := Response{Provider: ProviderGemini, Model: req.Model}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, apperr.LLMInvalidResponse("gemini: empty response", errors.New("no candidates"))
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: part.FunctionCall.Name, Arguments: part.FunctionCall.Args})
		}
	}
	out.FinishedOnTools = len(out.ToolCalls) > 0
	return out, nil
}

func convertMessagesToGemini(msgs []Message) ([]*genai.Content, string) {
	var system string
	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
			continue
		case RoleUser:
			parts := []*genai.Part{genai.NewPartFromText(m.Content)}
			for _, img := range m.Images {
				if img.Data != "" {
					parts = append(parts, genai.NewPartFromBytes(decodeInline(img.Data), img.MediaType))
				}
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
		case RoleAssistant:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		case RoleTool:
			if m.ToolResult != nil {
				out = append(out, genai.NewContentFromText(m.ToolResult.Content, genai.RoleUser))
			}
		}
	}
	return out, system
}

func convertToolsToGemini(specs []ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  jsonSchemaToGeminiSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func jsonSchemaToGenai(schema map[string]interface{}) (*genai.Schema, error) {
	buf, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out genai.Schema
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func jsonSchemaToGeminiSchema(schema map[string]interface{}) *genai.Schema {
	out, err := jsonSchemaToGenai(schema)
	if err != nil {
		return nil
	}
	return out
}

func decodeInline(data string) []byte {
	if idx := strings.Index(data, ","); strings.HasPrefix(data, "data:") && idx >= 0 {
		data = data[idx+1:]
	}
	if b, err := base64.StdEncoding.DecodeString(data); err == nil {
		return b
	}
	return []byte(data)
}
