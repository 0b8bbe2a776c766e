// Package notifier is the C13 Notification Dispatcher: it formats an
// AnalysisReport into text, chunks it to fit each channel's max message
// size, and routes it to the configured groups. Concrete channel
// adapters beyond the bundled Telegram reference implementation are
// out of scope; callers register any Notifier.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dsa-core/dsa-core/internal/logging"
	"github.com/dsa-core/dsa-core/internal/model"
)

// Channel is one outbound destination the dispatcher can send text to.
type Channel interface {
	Name() string
	SendText(ctx context.Context, destination, text string) error
}

// Dispatcher routes a report to every destination in the ticker's
// configured group, following STOCK_GROUP_N -> EMAIL_GROUP_N mapping,
// with a market-review report going to every configured destination.
type Dispatcher struct {
	Channels     map[string]Channel // channel name -> implementation
	Groups       map[string][]string // group name -> tickers
	Destinations map[string][]string // group name -> channel destinations (e.g. email addresses)
	DefaultChannel string
	MaxBytes     map[string]int // per-channel max message size override
	ChunkDelay   time.Duration  // pause between multi-page sends, avoids channel rate limits
	Log          *logging.Logger
}

const defaultMaxBytes = 4000

// Send satisfies pipeline.Notifier: format the report, find its group's
// destinations, and dispatch chunked text to each.
func (d *Dispatcher) Send(ctx context.Context, report *model.AnalysisReport) error {
	text := FormatReport(report)
	group := d.groupFor(report.Meta.Ticker)
	destinations := d.Destinations[group]
	if len(destinations) == 0 {
		if d.Log != nil {
			d.Log.Warnf("notifier: no destinations configured for group %q (ticker %s)", group, report.Meta.Ticker)
		}
		return nil
	}

	channel, ok := d.Channels[d.DefaultChannel]
	if !ok {
		return fmt.Errorf("notifier: unknown channel %q", d.DefaultChannel)
	}

	maxBytes := d.MaxBytes[d.DefaultChannel]
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	chunks := Chunk(text, maxBytes)

	var lastErr error
	for _, dest := range destinations {
		for i, chunk := range chunks {
			if i > 0 && d.ChunkDelay > 0 {
				time.Sleep(d.ChunkDelay)
			}
			if err := channel.SendText(ctx, dest, chunk); err != nil {
				lastErr = err
				if d.Log != nil {
					d.Log.Warnf("notifier: send to %s via %s failed: %v", dest, channel.Name(), err)
				}
			}
		}
	}
	return lastErr
}

// SendMarketReview broadcasts text to every configured destination
// across every group, deduplicated, used for whole-market summaries
// rather than a single ticker's report.
func (d *Dispatcher) SendMarketReview(ctx context.Context, text string) error {
	seen := map[string]bool{}
	channel, ok := d.Channels[d.DefaultChannel]
	if !ok {
		return fmt.Errorf("notifier: unknown channel %q", d.DefaultChannel)
	}
	maxBytes := d.MaxBytes[d.DefaultChannel]
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	chunks := Chunk(text, maxBytes)

	var lastErr error
	for _, dests := range d.Destinations {
		for _, dest := range dests {
			if seen[dest] {
				continue
			}
			seen[dest] = true
			for i, chunk := range chunks {
				if i > 0 && d.ChunkDelay > 0 {
					time.Sleep(d.ChunkDelay)
				}
				if err := channel.SendText(ctx, dest, chunk); err != nil {
					lastErr = err
					if d.Log != nil {
						d.Log.Warnf("notifier: market review send to %s failed: %v", dest, err)
					}
				}
			}
		}
	}
	return lastErr
}

func (d *Dispatcher) groupFor(ticker string) string {
	for group, tickers := range d.Groups {
		for _, t := range tickers {
			if t == ticker {
				return group
			}
		}
	}
	return "default"
}

// Chunk splits text into pages on line boundaries so a report section
// isn't split mid-sentence. Each page's text is at most maxBytes unless
// a single line is longer (such a line is kept whole); when there is
// more than one page, an "[i/n]" marker line is prefixed on top of that.
func Chunk(text string, maxBytes int) []string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var pages []string
	var cur strings.Builder
	for _, line := range lines {
		if cur.Len()+len(line)+1 > maxBytes && cur.Len() > 0 {
			pages = append(pages, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		pages = append(pages, cur.String())
	}

	if len(pages) <= 1 {
		return pages
	}
	marked := make([]string, len(pages))
	for i, p := range pages {
		marked[i] = fmt.Sprintf("[%d/%d]\n%s", i+1, len(pages), p)
	}
	return marked
}
