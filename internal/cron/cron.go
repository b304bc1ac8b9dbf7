// Package cron evaluates 5-field cron expressions (minute, hour,
// day-of-month, month, day-of-week) against a named timezone.
//
// The package is pure: no clocks, no logging, no shared state. Callers pass
// the reference instant and get back the next occurrence or an error.
//
// Parsing is deliberately lenient below the field level: out-of-range values
// and malformed sub-expressions are dropped rather than rejected, so "61 * * * *"
// yields an empty minute set instead of a parse error. Only a wrong field
// count is a hard error. An empty field set can never match and surfaces as
// ErrNoMatch from Next.
package cron

import (
	"fmt"
	"strconv"
	"strings"
)

// Field bounds for the 5 standard cron fields.
// Day-of-week uses 0..6 with 0 = Sunday.
const (
	MinuteMin, MinuteMax = 0, 59
	HourMin, HourMax     = 0, 23
	DomMin, DomMax       = 1, 31
	MonthMin, MonthMax   = 1, 12
	DowMin, DowMax       = 0, 6
)

// FieldCountError reports an expression that does not have exactly 5
// whitespace-separated fields.
type FieldCountError struct {
	Expr string
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("cron: expression %q has %d fields, want 5", e.Expr, e.Got)
}

// fieldSet is a parsed cron field: a membership mask plus the sorted values.
// The mask covers 0..63, enough for the widest field (minutes).
type fieldSet struct {
	mask uint64
	vals []int
	star bool // the raw field was exactly "*" (unrestricted)
}

func (s fieldSet) has(v int) bool {
	return v >= 0 && v < 64 && s.mask&(1<<uint(v)) != 0
}

func (s fieldSet) empty() bool { return s.mask == 0 }

// Schedule is a parsed cron expression.
type Schedule struct {
	expr    string
	minutes fieldSet
	hours   fieldSet
	dom     fieldSet
	months  fieldSet
	dow     fieldSet
}

// Expr returns the original expression string.
func (s *Schedule) Expr() string { return s.expr }

// Parse parses a 5-field cron expression.
// It fails only on a wrong field count; sub-expression problems degrade to
// empty or partial field sets (see the package comment).
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, &FieldCountError{Expr: expr, Got: len(fields)}
	}
	return &Schedule{
		expr:    expr,
		minutes: parseFieldSet(fields[0], MinuteMin, MinuteMax),
		hours:   parseFieldSet(fields[1], HourMin, HourMax),
		dom:     parseFieldSet(fields[2], DomMin, DomMax),
		months:  parseFieldSet(fields[3], MonthMin, MonthMax),
		dow:     parseFieldSet(fields[4], DowMin, DowMax),
	}, nil
}

// MustParse is Parse for tests and static expressions.
func MustParse(expr string) *Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseField expands a single cron field into a sorted, de-duplicated set of
// integers within [min,max]. Supported forms per comma-part: "*", "n", "a-b",
// each with an optional "/step". Out-of-range and malformed parts are dropped.
func ParseField(expr string, min, max int) ([]int, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("cron: empty field")
	}
	set := parseFieldSet(expr, min, max)
	return set.vals, nil
}

func parseFieldSet(expr string, min, max int) fieldSet {
	expr = strings.TrimSpace(expr)
	set := fieldSet{star: expr == "*"}

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		base := part
		step := 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			base = part[:i]
			n, err := strconv.Atoi(part[i+1:])
			if err != nil || n <= 0 {
				continue // malformed step: drop the part
			}
			step = n
		}

		switch {
		case base == "*":
			for v := min; v <= max; v += step {
				set.mask |= 1 << uint(v)
			}
		case strings.Contains(base, "-"):
			lo, hi, ok := parseRange(base)
			if !ok {
				continue
			}
			for v := lo; v <= hi; v += step {
				if v >= min && v <= max {
					set.mask |= 1 << uint(v)
				}
			}
		default:
			v, err := strconv.Atoi(base)
			if err != nil {
				continue
			}
			if v >= min && v <= max {
				set.mask |= 1 << uint(v)
			}
		}
	}

	set.vals = maskValues(set.mask)
	return set
}

func parseRange(s string) (lo, hi int, ok bool) {
	i := strings.IndexByte(s, '-')
	if i <= 0 || i >= len(s)-1 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(s[:i])
	hi, err2 := strconv.Atoi(s[i+1:])
	if err1 != nil || err2 != nil || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// maskValues walks the mask in ascending bit order, so the result is sorted
// and de-duplicated by construction.
func maskValues(mask uint64) []int {
	vals := make([]int, 0, 8)
	for v := 0; v < 64; v++ {
		if mask&(1<<uint(v)) != 0 {
			vals = append(vals, v)
		}
	}
	return vals
}
