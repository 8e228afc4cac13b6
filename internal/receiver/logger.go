package receiver

import (
	"io"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nixlim/po-stats/internal/engine"
)

// Logger receives every dispatched signal for debugging.
type Logger interface {
	LogSignal(source string, sig engine.Signal, outcome engine.Outcome)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) LogSignal(string, engine.Signal, engine.Outcome) {}

// FileLogger writes one JSON object per signal. It is safe for concurrent
// use.
type FileLogger struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewFileLogger returns a FileLogger writing to w.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, now: time.Now}
}

type logEntry struct {
	Time    time.Time         `json:"time"`
	Source  string            `json:"source"`
	Signal  engine.SignalType `json:"signal"`
	EventID string            `json:"event_id,omitempty"`
	TaskID  string            `json:"task_id,omitempty"`
	Mode    engine.Mode       `json:"mode,omitempty"`
	Outcome engine.Outcome    `json:"outcome"`
	Stats   any               `json:"stats,omitempty"`
}

func (l *FileLogger) LogSignal(source string, sig engine.Signal, outcome engine.Outcome) {
	l.write(logEntry{
		Time:    l.now().UTC(),
		Source:  source,
		Signal:  sig.Type,
		EventID: sig.EventID,
		TaskID:  sig.TaskID,
		Mode:    sig.Mode,
		Outcome: outcome,
		Stats:   sig.Stats,
	})
}

func (l *FileLogger) write(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(data)
}
