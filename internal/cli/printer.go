package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/charliek/herolog/internal/domain"
)

var dynoColors = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgBlue),
	color.New(color.FgYellow),
	color.New(color.FgGreen),
	color.New(color.FgHiCyan),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiBlue),
}

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	dimColor   = color.New(color.Faint)
)

// LogPrinter writes records to a console with a stable color per dyno
// and the message colored by level
type LogPrinter struct {
	w          io.Writer
	colors     map[string]*color.Color
	colorIndex int
}

// NewLogPrinter creates a new LogPrinter
func NewLogPrinter(w io.Writer) *LogPrinter {
	return &LogPrinter{
		w:      w,
		colors: make(map[string]*color.Color),
	}
}

// Print writes one record
func (lp *LogPrinter) Print(record domain.LogRecord) {
	ts := dimColor.Sprint(record.Timestamp.Format("15:04:05"))
	origin := lp.getColor(record.Dyno).Sprintf("%-16s", record.Source+"["+record.Dyno+"]")

	message := record.Message
	switch record.Level {
	case domain.LevelError:
		message = errorColor.Sprint(message)
	case domain.LevelWarn:
		message = warnColor.Sprint(message)
	}

	fmt.Fprintf(lp.w, "%s %s | %s\n", ts, origin, message)
}

func (lp *LogPrinter) getColor(dyno string) *color.Color {
	c, ok := lp.colors[dyno]
	if !ok {
		c = dynoColors[lp.colorIndex%len(dynoColors)]
		lp.colors[dyno] = c
		lp.colorIndex++
	}
	return c
}
