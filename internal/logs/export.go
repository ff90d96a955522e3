package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/parser"
)

// ErrNothingToExport is returned when an export is requested with no records
var ErrNothingToExport = errors.New("no logs to export")

// clipboardWrite is swapped in tests
var clipboardWrite = clipboard.WriteAll

// RawLine returns the line as received, or a re-rendered line when the raw text is missing
func RawLine(record domain.LogRecord) string {
	if record.Raw != "" {
		return record.Raw
	}
	return parser.Format(record)
}

// WriteRaw writes one raw line per record to w
func WriteRaw(w io.Writer, records []domain.LogRecord) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := bw.WriteString(RawLine(r)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportFileName returns heroku_logs_YYYYMMDD_HHMMSS.log for now
func ExportFileName(now time.Time) string {
	return constants.ExportFilePrefix + now.Format(constants.ExportTimeLayout) + constants.ExportFileSuffix
}

// ExportToFile writes records as raw lines to a new timestamped file in dir
// and returns its path. An existing file is never overwritten.
func ExportToFile(dir string, records []domain.LogRecord, now time.Time) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToExport
	}

	path := filepath.Join(dir, ExportFileName(now))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}

	if err := WriteRaw(f, records); err != nil {
		f.Close()
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

// CopyToClipboard places the raw lines of records on the system clipboard
func CopyToClipboard(records []domain.LogRecord) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}

	var sb strings.Builder
	if err := WriteRaw(&sb, records); err != nil {
		return err
	}
	if err := clipboardWrite(sb.String()); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
