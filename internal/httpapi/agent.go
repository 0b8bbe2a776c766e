package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dsa-core/dsa-core/internal/agent"
	"github.com/dsa-core/dsa-core/internal/eventbus"
	"github.com/dsa-core/dsa-core/internal/llm"
	"github.com/dsa-core/dsa-core/internal/model"
)

type chatRequest struct {
	SessionID  string   `json:"session_id"`
	Message    string   `json:"message"`
	Strategies []string `json:"strategies"`
}

// agentChatStream runs one bounded agent turn and streams its reasoning
// as it happens, persisting every LLM attempt and tool exchange to the
// conversation store, then performs a dedicated search-and-persist
// write against the ticker the agent settled on.
func (h *handlers) agentChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	systemPrompt := composeStrategyPrompt(h.deps.Strategies, req.Strategies)

	if history, err := h.deps.Store.SessionHistory(c.Request.Context(), sessionID); err == nil && len(history) > 0 {
		systemPrompt += "\n\nPrior conversation:\n" + renderHistory(history)
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	flusher, ok := c.Writer.(eventbus.Flusher)
	if !ok {
		errorJSON(c, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	loop := agent.NewLoop(h.generator, h.deps.Tools, h.deps.AgentModel, h.deps.Log)

	_ = h.deps.Store.AppendTurn(c.Request.Context(), model.ConversationTurn{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   req.Message,
		CreatedAt: time.Now(),
	})

	writeSSE(c.Writer, flusher, "session", gin.H{"session_id": sessionID})

	var lastTicker string
	answer, _, err := loop.Execute(c.Request.Context(), systemPrompt, req.Message, func(step agent.Step) {
		writeSSE(c.Writer, flusher, agentEventName(step.Kind), gin.H{
			"content":  step.Content,
			"tool":     step.ToolName,
			"is_error": step.IsError,
		})
	}, func(turn agent.TurnRecord) {
		if t := tickerFromToolCalls(turn.ToolCalls); t != "" {
			lastTicker = t
		}
		_ = h.deps.Store.AppendTurn(c.Request.Context(), toConversationTurn(sessionID, turn))
	})
	if err != nil {
		writeSSE(c.Writer, flusher, "error", gin.H{"message": err.Error()})
		return
	}

	if lastTicker != "" {
		h.persistAgentFinding(c.Request.Context(), sessionID, lastTicker, answer)
	}

	writeSSE(c.Writer, flusher, "done", gin.H{"answer": answer, "session_id": sessionID})
}

// toConversationTurn adapts one agent.TurnRecord onto the persisted
// ConversationTurn shape, so every LLM attempt and tool exchange is
// recorded, not just the user message and the final answer.
func toConversationTurn(sessionID string, turn agent.TurnRecord) model.ConversationTurn {
	role := model.RoleAssistant
	if turn.Role == llm.RoleTool {
		role = model.RoleTool
	}
	var calls []model.ToolCall
	for _, tc := range turn.ToolCalls {
		args, _ := json.Marshal(tc.Arguments)
		calls = append(calls, model.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: string(args)})
	}
	return model.ConversationTurn{
		SessionID:     sessionID,
		Role:          role,
		Content:       turn.Content,
		ToolCalls:     calls,
		ToolCallID:    turn.ToolCallID,
		ReasoningBlob: turn.ReasoningBlob,
		Failed:        turn.Failed,
		CreatedAt:     time.Now(),
	}
}

// tickerFromToolCalls returns the ticker argument of the last market
// tool call in calls, if any; every market tool in the registry takes
// a "ticker" string argument.
func tickerFromToolCalls(calls []llm.ToolCall) string {
	for i := len(calls) - 1; i >= 0; i-- {
		if t, ok := calls[i].Arguments["ticker"].(string); ok && t != "" {
			return t
		}
	}
	return ""
}

// persistAgentFinding performs the dedicated final search-and-persist
// write: even when the agent chat never called search_stock_news, the
// ticker it settled on gets one news lookup and one analysis_history
// row (with the agent's answer as the audit trail), so agent-mode
// sessions leave the same persisted trace a pipeline run does.
func (h *handlers) persistAgentFinding(ctx context.Context, sessionID, ticker, answer string) {
	if h.deps.News == nil || h.deps.Store == nil {
		return
	}
	canon := model.Canonical(ticker)
	intel := h.deps.News.Search(ctx, canon, "", model.IsETF(canon), 3)

	report := &model.AnalysisReport{
		Meta: model.ReportMeta{
			QueryID:       sessionID,
			Ticker:        canon,
			CreatedAt:     time.Now(),
			ReportType:    "agent_chat",
			EngineVersion: "dsactl-agent/1",
		},
		Summary: model.ReportSummary{AnalysisSummary: answer},
		Details: model.ReportDetails{RawResult: answer},
	}

	recordID, err := h.deps.Store.SaveReport(ctx, report)
	if err != nil {
		if h.deps.Log != nil {
			h.deps.Log.Warnf("httpapi: agent-mode report persist failed for %s: %v", canon, err)
		}
		return
	}
	if err := h.deps.Store.SaveNewsIntel(ctx, recordID, intel); err != nil && h.deps.Log != nil {
		h.deps.Log.Warnf("httpapi: agent-mode news persist failed for %s: %v", canon, err)
	}
}

// agentEventName maps the loop's internal step kinds onto the external
// SSE event vocabulary, which distinguishes "generating" (the assistant
// producing its final answer) from a plain "thinking" step.
func agentEventName(kind agent.StepKind) string {
	switch kind {
	case agent.StepThinking:
		return "thinking"
	case agent.StepToolStart:
		return "tool_start"
	case agent.StepToolDone:
		return "tool_done"
	case agent.StepFinalAnswer:
		return "generating"
	default:
		return string(kind)
	}
}

func writeSSE(w gin.ResponseWriter, flusher eventbus.Flusher, event string, data gin.H) {
	fmt.Fprintf(w, "event: %s\n", event)
	buf, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", buf)
	flusher.Flush()
}

// composeStrategyPrompt concatenates the system prompts of every named
// strategy in order, falling back to a generic assistant prompt when
// none are named or resolvable. Name-conflict override between built-in
// and user strategies is already resolved at load time by
// agent.LoadStrategies; this only handles composing multiple selected
// strategies at request time.
func composeStrategyPrompt(strategies map[string]*agent.Strategy, names []string) string {
	var b strings.Builder
	for _, name := range names {
		strat, ok := strategies[name]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strategySystemPrompt(strat))
	}
	if b.Len() == 0 {
		return "You are a market analysis assistant with access to live market data tools."
	}
	return b.String()
}

func strategySystemPrompt(s *agent.Strategy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are running the %q analysis strategy.\n", s.DisplayName)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s\n", s.Description)
	}
	if len(s.CoreRules) > 0 {
		fmt.Fprintf(&b, "Relates to core trading rules: %s\n", joinInts(s.CoreRules))
	}
	if s.Instructions != "" {
		b.WriteString(s.Instructions)
	}
	return b.String()
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func renderHistory(turns []model.ConversationTurn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

func (h *handlers) listStrategies(c *gin.Context) {
	out := make([]*agent.Strategy, 0, len(h.deps.Strategies))
	for _, s := range h.deps.Strategies {
		out = append(out, s)
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}

func (h *handlers) listSessions(c *gin.Context) {
	sessions, err := h.deps.Store.ListSessions(c.Request.Context(), 100)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *handlers) getSession(c *gin.Context) {
	turns, err := h.deps.Store.SessionHistory(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	if len(turns) == 0 {
		errorJSON(c, http.StatusNotFound, "not_found", "unknown session id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

func (h *handlers) deleteSession(c *gin.Context) {
	if err := h.deps.Store.DeleteSession(c.Request.Context(), c.Param("session_id")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
