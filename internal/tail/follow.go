package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// follower tracks how far into the file lines have been consumed.
type follower struct {
	t       *Tailer
	path    string
	offset  int64
	partial []byte // bytes after the last newline, awaiting completion
}

// Follow replays path and then keeps dispatching lines as they are
// appended, until ctx is done. A file that shrinks is treated as replaced
// and read again from the start. Follow returns nil when ctx is cancelled.
func (t *Tailer) Follow(ctx context.Context, path string) (Result, error) {
	f := &follower{t: t, path: filepath.Clean(path)}
	if err := f.readNew(ctx); err != nil {
		return t.Result(), err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Warn().Err(err).Msg("fsnotify unavailable, polling only")
	} else {
		defer fsw.Close()
		// The parent is watched so that rotation and recreation are seen.
		if err := fsw.Add(filepath.Dir(f.path)); err != nil {
			t.log.Warn().Err(err).Str("path", f.path).Msg("failed to watch directory, polling only")
		}
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return t.Result(), nil
		case ev, ok := <-events(fsw):
			if !ok {
				fsw = nil
				continue
			}
			if filepath.Clean(ev.Name) != f.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
		case err, ok := <-watchErrors(fsw):
			if ok {
				t.log.Error().Err(err).Msg("watcher error")
			}
			continue
		case <-ticker.C:
		}

		if err := f.readNew(ctx); err != nil {
			if ctx.Err() != nil {
				return t.Result(), nil
			}
			return t.Result(), err
		}
	}
}

func events(w *fsnotify.Watcher) <-chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

func watchErrors(w *fsnotify.Watcher) <-chan error {
	if w == nil {
		return nil
	}
	return w.Errors
}

// readNew dispatches complete lines written since the last read.
func (f *follower) readNew(ctx context.Context) error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.path, err)
	}
	if info.Size() < f.offset {
		f.t.log.Warn().Str("path", f.path).Msg("file truncated, reading from start")
		f.offset = 0
		f.partial = nil
	}
	if info.Size() == f.offset {
		return nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking %s: %w", f.path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.path, err)
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		if err := f.t.handleLine(ctx, buf[:i]); err != nil {
			f.partial = append([]byte(nil), buf[i+1:]...)
			return err
		}
		buf = buf[i+1:]
	}
	f.partial = append([]byte(nil), buf...)
	return nil
}
