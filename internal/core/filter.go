// Package core provides filtering, sorting, and lookup over diagnostic
// reports.
package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/uiv1/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="
	FilterOpNotEqual  FilterOp = "!="
	FilterOpContains  FilterOp = "~"
	FilterOpRegex     FilterOp = "~="
	FilterOpGreater   FilterOp = ">"
	FilterOpLess      FilterOp = "<"
	FilterOpGreaterEq FilterOp = ">="
	FilterOpLessEq    FilterOp = "<="
)

// valueType says how a report field compares.
type valueType int

const (
	textValue valueType = iota
	numberValue
	severityValue
	flagValue
	ageValue
)

// reportField is one filterable report attribute.
type reportField struct {
	typ  valueType
	text func(*model.Report) string
	num  func(*model.Report) int64
}

var reportFields = map[string]reportField{
	"id":        {typ: textValue, text: func(r *model.Report) string { return r.ID }},
	"kind":      {typ: textValue, text: func(r *model.Report) string { return r.Kind }},
	"window":    {typ: textValue, text: func(r *model.Report) string { return r.Window }},
	"window_id": {typ: numberValue, num: func(r *model.Report) int64 { return int64(r.WindowID) }},
	"owner":     {typ: textValue, text: func(r *model.Report) string { return r.Owner }},
	"widget":    {typ: textValue, text: func(r *model.Report) string { return r.Widget }},
	"handle":    {typ: textValue, text: func(r *model.Report) string { return r.Handle }},
	"op":        {typ: textValue, text: func(r *model.Report) string { return r.Op }},
	"message":   {typ: textValue, text: func(r *model.Report) string { return r.Message }},
	"source":    {typ: textValue, text: func(r *model.Report) string { return r.Source }},
	"severity":  {typ: severityValue, num: func(r *model.Report) int64 { return int64(r.Severity) }},
	"acked":     {typ: flagValue, num: func(r *model.Report) int64 { return boolInt(r.IsAcked()) }},
	"timestamp": {typ: ageValue, num: func(r *model.Report) int64 { return r.Timestamp }},
}

var fieldAliases = map[string]string{
	"type":        "kind",
	"win":         "window",
	"wid":         "window_id",
	"handle_kind": "widget",
	"operation":   "op",
	"msg":         "message",
	"src":         "source",
	"level":       "severity",
	"ack":         "acked",
	"time":        "timestamp",
	"ts":          "timestamp",
	"age":         "timestamp",
}

// FilterFields lists the field names accepted by ParseFilter.
func FilterFields() []string {
	names := make([]string, 0, len(reportFields))
	for name := range reportFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilterCondition is a single field comparison.
type FilterCondition struct {
	Field    string
	Operator FilterOp
	Value    string

	spec  reportField
	regex *regexp.Regexp
	num   int64
}

// FilterExpr is a compound filter expression. Conditions are ANDed.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions holds the exact-match criteria exposed as CLI flags.
type FilterOptions struct {
	Since    time.Duration // newer than now-since; 0 keeps all
	Kind     string
	Window   string
	WindowID uint64 // 0 matches any
	Owner    string
	Widget   string
	Source   string
	Severity *int
	Unacked  bool
	Limit    int // 0 is unlimited
}

func (o FilterOptions) match(r *model.Report, cutoff int64) bool {
	switch {
	case o.Since > 0 && r.Timestamp < cutoff,
		o.Kind != "" && r.Kind != o.Kind,
		o.Window != "" && r.Window != o.Window,
		o.WindowID != 0 && r.WindowID != o.WindowID,
		o.Owner != "" && r.Owner != o.Owner,
		o.Widget != "" && r.Widget != o.Widget,
		o.Source != "" && r.Source != o.Source,
		o.Severity != nil && r.Severity != *o.Severity,
		o.Unacked && r.IsAcked():
		return false
	}
	return true
}

// Filter returns the reports matching opts, in their original order.
func Filter(reports []model.Report, opts FilterOptions) []model.Report {
	cutoff := time.Now().Add(-opts.Since).Unix()
	result := make([]model.Report, 0, len(reports))
	for i := range reports {
		if !opts.match(&reports[i], cutoff) {
			continue
		}
		result = append(result, reports[i])
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result
}

var durationUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDuration parses a Go duration, or a whole number of days ("7d") or
// weeks ("2w"). "0" and "" mean no limit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if unit, ok := durationUnits[s[len(s)-1]]; ok {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * unit, nil
	}
	return time.ParseDuration(s)
}

// ParseSeverity accepts a severity name or its level number.
func ParseSeverity(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warn" {
		return model.SeverityWarning, nil
	}
	for level, name := range model.SeverityNames {
		if s == name || s == strconv.Itoa(level) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("invalid severity: %s (use info, warning, or error)", s)
}

// ParseFilter parses a comma separated list of field/operator/value
// conditions, such as "kind=leak,window_id=3,owner~=^\*menu\.".
// Timestamp values are ages: "timestamp>1h" keeps reports from the last
// hour.
func ParseFilter(expr string) (*FilterExpr, error) {
	f := &FilterExpr{}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		f.Conditions = append(f.Conditions, cond)
	}
	return f, nil
}

// splitCondition finds the operator that starts at the first operator
// character, preferring the two-character form.
func splitCondition(s string) (field string, op FilterOp, value string, ok bool) {
	i := strings.IndexAny(s, "!=~<>")
	if i <= 0 {
		return "", "", "", false
	}
	op = FilterOp(s[i : i+1])
	if i+1 < len(s) {
		switch two := FilterOp(s[i : i+2]); two {
		case FilterOpNotEqual, FilterOpRegex, FilterOpGreaterEq, FilterOpLessEq:
			op = two
		}
	}
	if op == "!" {
		return "", "", "", false
	}
	return strings.TrimSpace(s[:i]), op, strings.TrimSpace(s[i+len(op):]), true
}

func parseCondition(s string) (FilterCondition, error) {
	field, op, value, ok := splitCondition(s)
	if !ok {
		return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
	}
	field = strings.ToLower(field)
	if canonical, ok := fieldAliases[field]; ok {
		field = canonical
	}
	spec, ok := reportFields[field]
	if !ok {
		return FilterCondition{}, fmt.Errorf("unknown filter field: %s", field)
	}

	c := FilterCondition{Field: field, Operator: op, Value: value, spec: spec}
	if err := c.compile(); err != nil {
		return FilterCondition{}, fmt.Errorf("%s: %w", s, err)
	}
	return c, nil
}

func (c *FilterCondition) compile() error {
	switch c.spec.typ {
	case textValue:
		if c.Operator == FilterOpRegex {
			re, err := regexp.Compile(c.Value)
			if err != nil {
				return fmt.Errorf("invalid regex: %w", err)
			}
			c.regex = re
		}
		return nil
	case numberValue:
		n, err := strconv.ParseInt(c.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", c.Value)
		}
		c.num = n
	case severityValue:
		level, err := ParseSeverity(c.Value)
		if err != nil {
			return err
		}
		c.num = int64(level)
	case flagValue:
		c.num = boolInt(parseBool(c.Value))
		if c.Operator != FilterOpEqual && c.Operator != FilterOpNotEqual {
			return fmt.Errorf("operator %s not supported for %s", c.Operator, c.Field)
		}
	case ageValue:
		d, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid timestamp value: %w", err)
		}
		c.num = time.Now().Add(-d).Unix()
	}
	if c.Operator == FilterOpContains || c.Operator == FilterOpRegex {
		return fmt.Errorf("operator %s needs a text field", c.Operator)
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y", "t":
		return true
	}
	return false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Match reports whether r satisfies every condition.
func (f *FilterExpr) Match(r model.Report) bool {
	for i := range f.Conditions {
		if !f.Conditions[i].Match(r) {
			return false
		}
	}
	return true
}

// Match reports whether r satisfies the condition.
func (c *FilterCondition) Match(r model.Report) bool {
	if c.spec.typ == textValue {
		return c.matchText(c.spec.text(&r))
	}
	return compare(c.Operator, c.spec.num(&r), c.num)
}

func (c *FilterCondition) matchText(v string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.Value
	case FilterOpNotEqual:
		return v != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex.MatchString(v)
	}
	return false
}

// compare applies op to a and b. Ages compare as timestamps, so a newer
// report is "greater".
func compare(op FilterOp, a, b int64) bool {
	switch op {
	case FilterOpEqual:
		return a == b
	case FilterOpNotEqual:
		return a != b
	case FilterOpGreater:
		return a > b
	case FilterOpLess:
		return a < b
	case FilterOpGreaterEq:
		return a >= b
	case FilterOpLessEq:
		return a <= b
	}
	return false
}

// FilterWithExpr returns the reports matching expr. A nil or empty
// expression keeps everything.
func FilterWithExpr(reports []model.Report, expr *FilterExpr) []model.Report {
	if expr == nil || len(expr.Conditions) == 0 {
		return reports
	}
	result := make([]model.Report, 0, len(reports))
	for _, r := range reports {
		if expr.Match(r) {
			result = append(result, r)
		}
	}
	return result
}
