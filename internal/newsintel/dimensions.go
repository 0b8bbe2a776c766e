package newsintel

import (
	"fmt"
	"strings"
)

func sprintfSafe(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

// Dimension is one templated search angle fanned out per ticker.
type Dimension struct {
	Key      string
	Template string
}

// MaxSearchDimensions bounds how many dimensions run per ticker per
// analysis, keeping provider call volume predictable under
// MAX_SEARCH_DIMENSIONS.
const MaxSearchDimensions = 5

var defaultDimensions = []Dimension{
	{Key: "company", Template: "%s %s 最新消息"},
	{Key: "sector", Template: "%s 行业 板块 动态"},
	{Key: "risk", Template: "%s 风险 利空 监管"},
	{Key: "earnings", Template: "%s 财报 业绩"},
	{Key: "market_commentary", Template: "%s 股价 分析师 观点"},
}

var etfDimensions = []Dimension{
	{Key: "flows", Template: "%s %s ETF 资金流向"},
	{Key: "holdings", Template: "%s ETF 成分股 调整"},
	{Key: "sector", Template: "%s 跟踪指数 行业 动态"},
}

// Dimensions returns the ordered search-dimension set for a ticker,
// switching to the ETF template group when isETF is true, and truncates
// to MaxSearchDimensions or the caller-provided limit, whichever is
// smaller.
func Dimensions(isETF bool, limit int) []Dimension {
	set := defaultDimensions
	if isETF {
		set = etfDimensions
	}
	if limit <= 0 || limit > MaxSearchDimensions {
		limit = MaxSearchDimensions
	}
	if limit > len(set) {
		limit = len(set)
	}
	return set[:limit]
}

// BuildQuery fills a dimension's template with the ticker and its
// resolved display name (falling back to the ticker when the name is
// unresolved).
func BuildQuery(d Dimension, ticker, name string) string {
	if name == "" {
		name = ticker
	}
	n := strings.Count(d.Template, "%s")
	if n == 1 {
		return sprintfSafe(d.Template, ticker)
	}
	return sprintfSafe(d.Template, ticker, name)
}
