package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// sevenFieldParser accepts the 6 robfig/cron fields (second-precision).
// robfig/cron/v3 has no native 7th "year" field, so ParseCron strips an
// optional trailing year token before delegating, documented as an Open
// Question resolution in DESIGN.md.
var sevenFieldParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron parses a 7-field second-precision cron expression
// ("sec min hour dom mon dow year?") per spec.md §6. The optional 7th
// field, when present, must be "*" (Scouter schedules do not support
// year-scoped recurrence); any other value is rejected rather than
// silently ignored.
func ParseCron(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 6:
		// already second-precision, 6 fields
	case 7:
		if fields[6] != "*" {
			return nil, fmt.Errorf("cron: year field %q is not supported, use \"*\"", fields[6])
		}
		fields = fields[:6]
	default:
		return nil, fmt.Errorf("cron: expected 6 or 7 fields, got %d in %q", len(fields), expr)
	}
	return sevenFieldParser.Parse(strings.Join(fields, " "))
}

// Next returns the first invocation time strictly after from for the given
// cron expression.
func Next(expr string, from time.Time) (time.Time, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

// CommonCron is the set of canonical preset cron strings named in
// spec.md §6, matching original_source's CommonCrons enum.
type CommonCron string

const (
	Every30Minutes CommonCron = "0 0,30 * * * * *"
	EveryHour      CommonCron = "0 0 * * * * *"
	Every6Hours    CommonCron = "0 0 */6 * * * *"
	Every12Hours   CommonCron = "0 0 */12 * * * *"
	EveryDay       CommonCron = "0 0 0 * * * *"
	EveryWeek      CommonCron = "0 0 0 * * SUN *"
)

// String returns the canonical cron expression.
func (c CommonCron) String() string { return string(c) }
