// Package tail feeds JSONL signal files into the engine, either once from
// start to end or continuously as lines are appended.
package tail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixlim/po-stats/internal/engine"
)

// DefaultPollInterval is how often Follow re-checks the file when no
// fsnotify event arrives.
const DefaultPollInterval = time.Second

// Dispatcher runs a signal through the engine. *engine.Loop implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig engine.Signal) (engine.Outcome, error)
}

// Result counts what a replay or follow consumed.
type Result struct {
	Lines     int
	Signals   int
	Malformed int
	Outcomes  map[engine.Outcome]int
}

// Tailer reads signal lines and dispatches them in file order.
// A Tailer is not safe for concurrent use.
type Tailer struct {
	d            Dispatcher
	log          zerolog.Logger
	pollInterval time.Duration
	res          Result
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tailer) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// New returns a Tailer dispatching to d.
func New(d Dispatcher, log zerolog.Logger, opts ...Option) *Tailer {
	t := &Tailer{
		d:            d,
		log:          log,
		pollInterval: DefaultPollInterval,
		res:          Result{Outcomes: make(map[engine.Outcome]int)},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result returns the counts accumulated so far.
func (t *Tailer) Result() Result {
	res := t.res
	res.Outcomes = make(map[engine.Outcome]int, len(t.res.Outcomes))
	for k, v := range t.res.Outcomes {
		res.Outcomes[k] = v
	}
	return res
}

// Replay dispatches every line of r. A final line without a trailing
// newline is still processed.
func (t *Tailer) Replay(ctx context.Context, r io.Reader) (Result, error) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if derr := t.handleLine(ctx, line); derr != nil {
				return t.Result(), derr
			}
		}
		if errors.Is(err, io.EOF) {
			return t.Result(), nil
		}
		if err != nil {
			return t.Result(), fmt.Errorf("reading signals: %w", err)
		}
	}
}

// ReplayFile opens path and replays it.
func (t *Tailer) ReplayFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return t.Result(), fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return t.Replay(ctx, f)
}

func (t *Tailer) handleLine(ctx context.Context, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	t.res.Lines++

	sigs, err := engine.ParseSignals(line)
	if err != nil {
		t.res.Malformed++
		t.log.Warn().Err(err).Int("line", t.res.Lines).Msg("skipping malformed signal line")
		return nil
	}
	for _, sig := range sigs {
		out, err := t.d.Dispatch(ctx, sig)
		if err != nil {
			return err
		}
		t.res.Signals++
		t.res.Outcomes[out]++
	}
	return nil
}
