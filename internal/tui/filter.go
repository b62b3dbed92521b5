package tui

import (
	"strings"

	"github.com/jmylchreest/uiv1/internal/core"
	"github.com/jmylchreest/uiv1/internal/model"
)

var filterFields = []string{
	"kind", "type", "window", "win", "owner", "widget", "handle_kind",
	"op", "operation", "message", "msg", "source", "src", "severity",
	"level", "acked", "ack", "timestamp", "time", "ts",
}

// isFilterExpression reports whether query looks like a filter expression
// ("window=settings,kind=leak") rather than plain search text.
func isFilterExpression(query string) bool {
	if query == "" {
		return false
	}
	first, _, _ := strings.Cut(query, ",")
	idx := strings.IndexAny(first, "=!~<>")
	if idx <= 0 {
		return false
	}
	field := strings.ToLower(strings.TrimSpace(first[:idx]))
	for _, f := range filterFields {
		if f == field {
			return true
		}
	}
	return false
}

// applySearch narrows reports by a filter expression or plain text. An
// invalid expression falls back to plain text.
func applySearch(reports []model.Report, query string) []model.Report {
	if query == "" {
		return reports
	}
	if isFilterExpression(query) {
		if expr, err := core.ParseFilter(query); err == nil {
			return core.FilterWithExpr(reports, expr)
		}
	}
	return core.Search(reports, query)
}
