// Package parser converts raw Heroku log lines into structured records.
//
// A well-formed line looks like:
//
//	2010-09-16T15:13:46.677020+00:00 app[web.1]: Starting process
//
// Anything else is rejected; callers drop rejected lines.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/charliek/herolog/internal/domain"
)

// TimestampLayout is the wire layout used when rendering records back to lines
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// lineRegex captures timestamp, source, dyno and message.
// The separator after the dyno must be exactly ": ".
var lineRegex = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+[+-]\d{2}:\d{2}) ([^\s\[]+)\[([^\]]+)\]: (.*)$`,
)

// levelKeywords are checked in order; the first one found wins
var levelKeywords = []struct {
	keyword string
	level   domain.Level
}{
	{"error", domain.LevelError},
	{"warn", domain.LevelWarn},
	{"info", domain.LevelInfo},
	{"debug", domain.LevelDebug},
}

// Parse parses a single log line. The second return value is false when the
// line does not match the grammar or its timestamp is invalid.
func Parse(line string) (domain.LogRecord, bool) {
	line = strings.TrimSuffix(line, "\r")

	m := lineRegex.FindStringSubmatch(line)
	if m == nil {
		return domain.LogRecord{}, false
	}

	ts, err := time.Parse(time.RFC3339Nano, m[1])
	if err != nil {
		return domain.LogRecord{}, false
	}

	return domain.LogRecord{
		Timestamp: ts,
		Source:    m[2],
		Dyno:      m[3],
		Level:     DetectLevel(m[4]),
		Message:   m[4],
		Raw:       line,
	}, true
}

// DetectLevel scans the message for level keywords, case-insensitively.
// This is a plain substring match: "warnings" counts as warn.
func DetectLevel(message string) domain.Level {
	lower := strings.ToLower(message)
	for _, k := range levelKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.level
		}
	}
	return domain.LevelUnknown
}

// Format renders a record in the wire grammar with microsecond precision
func Format(r domain.LogRecord) string {
	var b strings.Builder
	b.Grow(len(TimestampLayout) + len(r.Source) + len(r.Dyno) + len(r.Message) + 5)
	b.WriteString(r.Timestamp.Format(TimestampLayout))
	b.WriteByte(' ')
	b.WriteString(r.Source)
	b.WriteByte('[')
	b.WriteString(r.Dyno)
	b.WriteString("]: ")
	b.WriteString(r.Message)
	return b.String()
}
