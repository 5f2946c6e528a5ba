package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpecKind describes the normalized kind of a schedule string: either a cron
// expression (robfig/cron) or a fixed interval.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a normalized schedule.
//
// Supported forms:
//   - Cron (crontab.guru-style): "*/10 * * * *", "0 10 * * *", "@hourly"
//   - Interval duration: "10m", "2h30m"
//   - Daily time HH:MM: "10:00" runs once a day at 10:00 in the scheduler's
//     timezone (the boosted pair rolls over at a fixed server-save time, so
//     a bare clock time means "daily at")
//
// Optional prefixes: "cron:" forces cron parsing, "interval:"/"every:" force
// interval parsing.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "daily"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseSchedule parses a schedule string into either a cron expression or an
// interval duration.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	}
	for _, prefix := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, prefix) {
			d, err := parseInterval(strings.TrimSpace(s[len(prefix):]))
			if err != nil {
				return ParsedSpec{}, err
			}
			return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
		}
	}

	// Whitespace or a leading '@' can only be cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}

	// Bare HH:MM is a daily run time.
	if m := reHHMM.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh > 23 {
			return ParsedSpec{}, fmt.Errorf("invalid hour in %q", raw)
		}
		if mm > 59 {
			return ParsedSpec{}, fmt.Errorf("invalid minutes in %q", raw)
		}
		return ParsedSpec{
			Kind:   SpecCron,
			Cron:   fmt.Sprintf("%d %d * * *", mm, hh),
			Source: "daily",
		}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return ParsedSpec{}, fmt.Errorf("interval must be > 0")
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
	}

	return ParsedSpec{}, fmt.Errorf(
		"invalid schedule %q (use cron like '*/10 * * * *', a daily time like '10:00', or a duration like '10m')",
		raw,
	)
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use a Go duration like '10m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
