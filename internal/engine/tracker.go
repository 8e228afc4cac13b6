package engine

import (
	"time"

	"github.com/rs/zerolog"
)

// TaskState is the tracker's lifecycle state.
type TaskState string

const (
	TaskIdle   TaskState = "idle"
	TaskActive TaskState = "active"
)

// TaskInfo describes the current task, if any.
type TaskInfo struct {
	State     TaskState `json:"state"`
	ID        string    `json:"id,omitempty"`
	Mode      Mode      `json:"mode,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// tracker holds at most one active task. A new start while a task is active
// replaces it; the displaced task is abandoned.
type tracker struct {
	log   zerolog.Logger
	newID func() string
	now   func() time.Time

	active    string
	mode      Mode
	fallback  bool
	startedAt time.Time

	lastClosed string
	closedAt   time.Time
}

// lateProgressWindow is how long after a completion an id-less progress
// event is still attributed to the task that just closed.
const lateProgressWindow = 10 * time.Second

// start activates a task and returns its id along with the id of any task
// it displaced. An empty id is replaced by a generated one.
func (t *tracker) start(id string, mode Mode) (taskID, displaced string) {
	if id == "" {
		id = t.newID()
	}
	if t.active != "" && t.active != id {
		displaced = t.active
		t.log.Warn().
			Str("task_id", id).
			Str("displaced_task_id", displaced).
			Msg("task started while another was active; abandoning previous task")
	}
	t.active = id
	t.mode = mode
	t.fallback = false
	t.startedAt = t.now()
	return id, displaced
}

func (t *tracker) current() (string, bool) {
	return t.active, t.active != ""
}

// resolve picks the task id for an event: the explicit id if given, else the
// active task, else a synthesized fallback that becomes the active task.
// The second result reports whether a fallback was synthesized.
func (t *tracker) resolve(explicit, reason string) (string, bool) {
	if explicit != "" {
		return explicit, false
	}
	if t.active != "" {
		return t.active, false
	}
	id := t.newID()
	t.log.Warn().
		Str("task_id", id).
		Str("reason", reason).
		Msg("no active task; using fallback task id")
	t.active = id
	t.mode = ""
	t.fallback = true
	t.startedAt = t.now()
	return id, true
}

// lateProgress attributes an id-less progress event that arrives while idle
// to the most recently closed task, if it closed within lateProgressWindow.
// The tracker stays idle.
func (t *tracker) lateProgress(explicit string) (string, bool) {
	if explicit != "" || t.active != "" || t.lastClosed == "" {
		return "", false
	}
	if t.now().Sub(t.closedAt) > lateProgressWindow {
		return "", false
	}
	t.log.Debug().Str("task_id", t.lastClosed).Msg("progress after completion; attributing to closed task")
	return t.lastClosed, true
}

// close returns the tracker to idle if taskID is the active task.
func (t *tracker) close(taskID string) bool {
	if t.active == "" || t.active != taskID {
		return false
	}
	t.lastClosed = taskID
	t.closedAt = t.now()
	t.active = ""
	t.mode = ""
	t.fallback = false
	t.startedAt = time.Time{}
	return true
}

func (t *tracker) state() TaskState {
	if t.active != "" {
		return TaskActive
	}
	return TaskIdle
}

func (t *tracker) info() TaskInfo {
	return TaskInfo{
		State:     t.state(),
		ID:        t.active,
		Mode:      t.mode,
		Fallback:  t.fallback,
		StartedAt: t.startedAt,
	}
}
