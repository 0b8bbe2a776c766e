package httpapi

import (
	"encoding/base64"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dsa-core/dsa-core/internal/llm"
)

// maxImageBytes bounds the upload accepted by extract-from-image. A
// request whose declared Content-Length exceeds it is rejected with 413
// before the form is parsed; otherwise at most maxImageBytes+1 bytes of
// the image are read before the size check rejects it.
const maxImageBytes = 8 << 20 // 8 MiB

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,6}(?:\.[A-Z]{1,4})?\b`)

// extractFromImage asks the vision-capable model to read ticker symbols
// out of an uploaded screenshot (a watchlist, a broker app, a chart).
func (h *handlers) extractFromImage(c *gin.Context) {
	if c.Request.ContentLength > maxImageBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds the upload limit")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "an 'image' multipart field is required")
		return
	}
	defer file.Close()

	limited := io.LimitReader(file, maxImageBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "failed to read uploaded image")
		return
	}
	if len(data) > maxImageBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large", "image exceeds the upload limit")
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "image/png"
	}

	resp, err := h.generator.Generate(c.Request.Context(), llm.Request{
		Model:             h.deps.AgentModel,
		SystemInstruction: "Identify every stock ticker symbol visible in the image. Reply with only the ticker symbols, one per line, upper case, no commentary.",
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: "Extract the ticker symbols from this image.",
			Images:  []llm.ImageBlock{llm.NewInlineImage(mediaType, base64.StdEncoding.EncodeToString(data))},
		}},
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	tickers := parseTickers(resp.Text)
	c.JSON(http.StatusOK, gin.H{"tickers": tickers, "raw": resp.Text})
}

func parseTickers(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, match := range tickerPattern.FindAllString(strings.ToUpper(line), -1) {
			if seen[match] {
				continue
			}
			seen[match] = true
			out = append(out, match)
		}
	}
	return out
}
