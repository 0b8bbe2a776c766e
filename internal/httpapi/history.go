package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *handlers) history(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	ticker := c.Query("ticker")

	reports, err := h.deps.Store.History(c.Request.Context(), ticker, limit, offset)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "limit": limit, "offset": offset})
}

func (h *handlers) historyByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("record_id"), 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "record_id must be numeric")
		return
	}
	report, err := h.deps.Store.ReportByID(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if report == nil {
		errorJSON(c, http.StatusNotFound, "not_found", "no report with that record id")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) historyNews(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("record_id"), 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "record_id must be numeric")
		return
	}
	report, err := h.deps.Store.ReportByID(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if report == nil {
		errorJSON(c, http.StatusNotFound, "not_found", "no report with that record id")
		return
	}
	news, err := h.deps.Store.NewsForRecord(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, news)
}
