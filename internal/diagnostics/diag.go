package diagnostics

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-neopixel/internal/led"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Reporter receives diagnostics as they happen.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Multi fans a diagnostic out to every reporter.
type Multi []Reporter

func (m Multi) Report(d Diagnostic) {
	for _, r := range m {
		r.Report(d)
	}
}

// Log writes diagnostics to a zerolog logger at the matching level.
type Log struct {
	L zerolog.Logger
}

func (l Log) Report(d Diagnostic) {
	var e *zerolog.Event
	switch d.Severity {
	case Err:
		e = l.L.Error()
	case Warn:
		e = l.L.Warn()
	default:
		e = l.L.Info()
	}
	e = e.Str("code", d.Code)
	if d.Detail != "" {
		e = e.Str("detail", d.Detail)
	}
	if len(d.Evidence) > 0 {
		e = e.Fields(d.Evidence)
	}
	e.Msg(d.Summary)
}

// Buffer keeps every diagnostic in memory.
type Buffer struct {
	mu  sync.Mutex
	all []Diagnostic
}

func (b *Buffer) Report(d Diagnostic) {
	b.mu.Lock()
	b.all = append(b.all, d)
	b.mu.Unlock()
}

func (b *Buffer) All() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Diagnostic(nil), b.all...)
}

// FromFault describes a transmission failure on frame index.
func FromFault(err error, frame int) Diagnostic {
	d := Diagnostic{
		Severity: Err,
		Code:     "TX.FAULT",
		Summary:  "Frame transmission failed",
		Detail:   err.Error(),
		Evidence: map[string]any{"frame": frame},
	}
	var f *led.Fault
	if !errors.As(err, &f) {
		return d
	}
	d.Evidence["backend"] = f.Backend
	d.Evidence["op"] = f.Op
	switch f.Kind {
	case led.Busy:
		d.Code = "TX.BUSY"
		d.LikelyCauses = []string{"a previous frame was still in flight", "another task shares the channel"}
		d.SuggestedFixes = []string{"wait for the pending transfer before starting the next"}
	case led.Overrun:
		d.Code = "TX.OVERRUN"
		d.LikelyCauses = []string{"peripheral could not keep up with the unit stream"}
		d.SuggestedFixes = []string{"lower system load", "use the dma backend"}
	default:
		d.Code = "TX.ABORT"
		d.LikelyCauses = []string{"peripheral reported an error", "device unplugged or misconfigured"}
		d.SuggestedFixes = []string{"check wiring and the spi/pulse settings"}
	}
	return d
}
