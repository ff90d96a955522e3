package logs

import (
	"time"

	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/parser"
)

var baseTime = time.Date(2024, 2, 17, 10, 30, 0, 0, time.UTC)

func makeRecord(message string) domain.LogRecord {
	return makeRecordFrom("app", "web.1", message)
}

func makeRecordFrom(source, dyno, message string) domain.LogRecord {
	rec := domain.LogRecord{
		Timestamp: baseTime,
		Source:    source,
		Dyno:      dyno,
		Level:     parser.DetectLevel(message),
		Message:   message,
	}
	rec.Raw = parser.Format(rec)
	return rec
}

func messages(records []domain.LogRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Message
	}
	return out
}

// staticSource is a Snapshotter over a fixed slice
type staticSource []domain.LogRecord

func (s staticSource) Snapshot() []domain.LogRecord {
	out := make([]domain.LogRecord, len(s))
	copy(out, s)
	return out
}
