package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/eventbus"
	"github.com/dsa-core/dsa-core/internal/model"
	"github.com/dsa-core/dsa-core/internal/pipeline"
	"github.com/dsa-core/dsa-core/internal/taskqueue"
)

type analyzeRequest struct {
	Ticker     string `json:"ticker"`
	ReportType string `json:"report_type"`
	Async      bool   `json:"async"`
	Notify     bool   `json:"notify"`
}

// analyze submits a ticker for analysis. Synchronous requests block for
// the full pipeline run and return the report; async requests enqueue
// the run on the task queue and return the task envelope immediately.
func (h *handlers) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Ticker) == "" {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "ticker is required")
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.ReportType == "" {
		req.ReportType = "detailed"
	}

	if !req.Async {
		report, err := h.deps.Pipeline.Run(c.Request.Context(), ticker, pipeline.Options{
			ReportType: req.ReportType,
			Notify:     req.Notify,
		})
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeSkipped {
				c.JSON(http.StatusOK, gin.H{"skipped": true, "ticker": ticker, "reason": err.Error()})
				return
			}
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	task, err := h.deps.Queue.Submit(c.Request.Context(), taskqueue.Job{
		Ticker:     ticker,
		ReportType: req.ReportType,
		Notify:     req.Notify,
		Run: func(ctx context.Context, task *model.Task) {
			opts := pipeline.Options{
				TaskID:     task.TaskID,
				ReportType: req.ReportType,
				Notify:     req.Notify,
			}
			if _, runErr := h.deps.Pipeline.Run(ctx, ticker, opts); runErr != nil {
				if apperr.CodeOf(runErr) == apperr.CodeSkipped {
					h.deps.Queue.Skip(task.TaskID, runErr.Error())
				} else {
					h.deps.Queue.Fail(task.TaskID, runErr.Error())
				}
			}
		},
	})
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeDuplicateSubmission {
			c.JSON(http.StatusConflict, gin.H{
				"error":      string(apperr.CodeDuplicateSubmission),
				"message":    err.Error(),
				"task_id":    task.TaskID,
				"stock_code": task.Ticker,
			})
			return
		}
		writeErr(c, err)
		return
	}
	if h.deps.Bus != nil {
		h.deps.Bus.Publish(task.TaskID, model.TaskEvent{Kind: model.EventTaskCreated, Ticker: ticker})
	}
	c.JSON(http.StatusAccepted, task)
}

func (h *handlers) taskStatus(c *gin.Context) {
	task, ok := h.deps.Queue.Get(c.Param("task_id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, "not_found", "unknown task id")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *handlers) listTasks(c *gin.Context) {
	status := c.Query("status")
	all := h.deps.Queue.List()
	if status == "" {
		c.JSON(http.StatusOK, gin.H{"tasks": all})
		return
	}
	filtered := make([]model.Task, 0, len(all))
	for _, t := range all {
		if string(t.Status) == status {
			filtered = append(filtered, t)
		}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": filtered})
}

// streamTasks serves the SSE task event stream, optionally scoped to a
// single task via the ?task_id= query param.
func (h *handlers) streamTasks(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	var sub *eventbus.Subscription
	if taskID := c.Query("task_id"); taskID != "" {
		sub = h.deps.Bus.SubscribeTo(taskID)
	} else {
		sub = h.deps.Bus.Subscribe()
	}
	defer sub.Close()

	flusher, ok := c.Writer.(eventbus.Flusher)
	if !ok {
		errorJSON(c, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	c.SSEvent(string(model.EventConnected), gin.H{"status": "connected"})
	flusher.Flush()

	_ = eventbus.ServeSSE(c.Writer, flusher, sub, c.Request.Context().Done())
}
