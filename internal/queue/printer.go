package queue

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type LogLevel string

const (
	LogDebug LogLevel = "DEBUG"
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// Event is one progress notification from the worker, suitable for machine
// consumption when JSON output is enabled.
type Event struct {
	Type   string `json:"type"` // item, entry, summary
	Status string `json:"status,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
	Output string `json:"output,omitempty"`
	Index  int    `json:"index,omitempty"`
	Total  int    `json:"total,omitempty"`
	Error  string `json:"error,omitempty"`

	Completed int  `json:"completed,omitempty"`
	Aborted   bool `json:"aborted,omitempty"`
}

// Printer is the worker's only channel to the controlling context. All
// writes go through one mutex so the worker goroutine never touches
// caller-owned state directly.
type Printer struct {
	mu     sync.Mutex
	logOut io.Writer
	evtOut io.Writer
	quiet  bool
	json   bool
	color  bool
	clock  func() time.Time
}

func NewPrinter(quiet, jsonEvents bool) *Printer {
	return &Printer{
		logOut: os.Stderr,
		evtOut: os.Stdout,
		quiet:  quiet,
		json:   jsonEvents,
		color:  supportsColor(),
		clock:  time.Now,
	}
}

func (p *Printer) Log(level LogLevel, msg string) {
	if p.quiet && (level == LogDebug || level == LogInfo) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := p.clock().Format("15:04:05")
	fmt.Fprintf(p.logOut, "%s %s %s\n", stamp, p.colorize(levelLabel(level), levelColor(level)), msg)
}

func (p *Printer) Debugf(format string, args ...any) { p.Log(LogDebug, fmt.Sprintf(format, args...)) }
func (p *Printer) Infof(format string, args ...any)  { p.Log(LogInfo, fmt.Sprintf(format, args...)) }
func (p *Printer) Warnf(format string, args ...any)  { p.Log(LogWarn, fmt.Sprintf(format, args...)) }
func (p *Printer) Errorf(format string, args ...any) { p.Log(LogError, fmt.Sprintf(format, args...)) }

// Event emits a machine-readable progress event when JSON mode is on.
func (p *Printer) Event(e Event) {
	if !p.json {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	enc := json.NewEncoder(p.evtOut)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(e)
}

// Summary prints the end-of-run accounting line.
func (p *Printer) Summary(s Summary) {
	state := "finished"
	if s.Aborted {
		state = "aborted"
	}
	p.Log(LogInfo, fmt.Sprintf("queue %s: processed %d of %d items", state, s.Completed, s.Total))
	p.Event(Event{Type: "summary", Completed: s.Completed, Total: s.Total, Aborted: s.Aborted})
}

func levelLabel(level LogLevel) string {
	return "[" + string(level) + "]"
}

func levelColor(level LogLevel) string {
	switch level {
	case LogWarn:
		return colorYellow
	case LogError:
		return colorRed
	default:
		return ""
	}
}

func (p *Printer) colorize(text, color string) string {
	if !p.color || color == "" {
		return text
	}
	return color + text + colorReset
}

func supportsColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" || os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
)
