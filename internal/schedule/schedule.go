// Package schedule parses the human-readable schedule expressions stored on
// scheduled tasks and decides whether a task is due.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is used when an expression cannot be parsed.
const DefaultInterval = time.Hour

// Kind discriminates the two schedule forms.
type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

// Spec is a parsed schedule: either a fixed interval or a cron schedule.
type Spec struct {
	kind  Kind
	every time.Duration
	cron  cron.Schedule
	src   string
}

var (
	reEvery = regexp.MustCompile(`^every\s+(?:(\d+)\s+)?(hours?|minutes?|days?)$`)

	// Five-field crontab plus @hourly-style descriptors. No seconds field.
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Parse parses a schedule expression. Recognized forms:
//
//   - "every N hours|minutes|days" and the singular/bare variants
//     ("every 1 hour", "every day"); "hourly" and "daily" aliases
//   - Go durations: "90m", "1h30m"
//   - five-field cron: "*/15 * * * *", and descriptors like "@hourly"
//
// Matching is case-insensitive and ignores surrounding whitespace. Callers
// that must not fail on operator input use ParseOrDefault instead.
func Parse(raw string) (Spec, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Spec{}, fmt.Errorf("empty schedule")
	}

	switch s {
	case "hourly":
		return Spec{kind: KindInterval, every: time.Hour, src: raw}, nil
	case "daily":
		return Spec{kind: KindInterval, every: 24 * time.Hour, src: raw}, nil
	}

	if m := reEvery.FindStringSubmatch(s); m != nil {
		n := 1
		if m[1] != "" {
			v, err := strconv.Atoi(m[1])
			if err != nil || v <= 0 {
				return Spec{}, fmt.Errorf("invalid count in schedule %q", raw)
			}
			n = v
		}
		var unit time.Duration
		switch {
		case strings.HasPrefix(m[2], "hour"):
			unit = time.Hour
		case strings.HasPrefix(m[2], "minute"):
			unit = time.Minute
		default:
			unit = 24 * time.Hour
		}
		// time.Duration is int64 nanoseconds; huge counts wrap.
		every := time.Duration(n) * unit
		if every <= 0 || every/unit != time.Duration(n) {
			return Spec{}, fmt.Errorf("invalid count in schedule %q", raw)
		}
		return Spec{kind: KindInterval, every: every, src: raw}, nil
	}

	// Whitespace or a leading @ marks a cron expression.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		sched, err := cronParser.Parse(s)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid schedule %q: %w", raw, err)
		}
		return Spec{kind: KindCron, cron: sched, src: raw}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Spec{}, fmt.Errorf("schedule %q: interval must be > 0", raw)
		}
		return Spec{kind: KindInterval, every: d, src: raw}, nil
	}

	return Spec{}, fmt.Errorf(
		"invalid schedule %q (use \"every N hours|minutes|days\", a duration like \"90m\", or a cron expression)",
		raw,
	)
}

// ParseOrDefault parses expr, falling back to DefaultInterval when the
// expression is not recognized. ok reports whether expr itself parsed.
func ParseOrDefault(expr string) (sp Spec, ok bool) {
	sp, err := Parse(expr)
	if err != nil {
		return Spec{kind: KindInterval, every: DefaultInterval, src: expr}, false
	}
	return sp, true
}

// Due reports whether a task whose last run was lastRun is due at now. A
// task that has never run is always due. Interval specs fire when the
// elapsed time meets or exceeds the interval; cron specs fire when a cron
// tick has passed since the last run.
func (s Spec) Due(lastRun *time.Time, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	if s.kind == KindCron {
		return !s.cron.Next(*lastRun).After(now)
	}
	return now.Sub(*lastRun) >= s.every
}

// Kind returns the schedule form.
func (s Spec) Kind() Kind { return s.kind }

// Interval returns the fixed interval, or 0 for cron schedules.
func (s Spec) Interval() time.Duration {
	if s.kind == KindCron {
		return 0
	}
	return s.every
}

// String returns the original expression.
func (s Spec) String() string { return s.src }
