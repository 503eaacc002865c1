package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// TaskHeader is a compact record of one completed round trip, kept in a small
// ring for the status command.
type TaskHeader struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
	Outcome  string `json:"outcome"`
	Millis   int64  `json:"millis"`
}

type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Link        LinkMetrics  `json:"link"`
	Task        TaskMetrics  `json:"task"`
	Recent      []TaskHeader `json:"recent"`
}

type LinkMetrics struct {
	DialAttempts  uint64 `json:"dial_attempts"`
	DialSuccess   uint64 `json:"dial_success"`
	DialFail      uint64 `json:"dial_fail"`
	Connects      uint64 `json:"connects"`
	Disconnects   uint64 `json:"disconnects"`
	FramesIn      uint64 `json:"frames_in"`
	FramesDropped uint64 `json:"frames_dropped"`
}

type TaskMetrics struct {
	Sent      uint64 `json:"sent"`
	Resolved  uint64 `json:"resolved"`
	Expired   uint64 `json:"expired"`
	SendFails uint64 `json:"send_fails"`
}

type Metrics struct {
	dialAttempts  atomic.Uint64
	dialSuccess   atomic.Uint64
	dialFail      atomic.Uint64
	connects      atomic.Uint64
	disconnects   atomic.Uint64
	framesIn      atomic.Uint64
	framesDropped atomic.Uint64
	taskSent      atomic.Uint64
	taskResolved  atomic.Uint64
	taskExpired   atomic.Uint64
	taskSendFails atomic.Uint64
	recent        *TaskRecent
}

func New() *Metrics {
	return &Metrics{recent: NewTaskRecent(64)}
}

func (m *Metrics) Recent() *TaskRecent { return m.recent }

func (m *Metrics) IncDialAttempts() { m.dialAttempts.Add(1) }

func (m *Metrics) IncDialSuccess() { m.dialSuccess.Add(1) }

func (m *Metrics) IncDialFail() { m.dialFail.Add(1) }

func (m *Metrics) IncConnects() { m.connects.Add(1) }

func (m *Metrics) IncDisconnects() { m.disconnects.Add(1) }

func (m *Metrics) IncFramesIn() { m.framesIn.Add(1) }

func (m *Metrics) IncFramesDropped() { m.framesDropped.Add(1) }

func (m *Metrics) IncTaskSent() { m.taskSent.Add(1) }

func (m *Metrics) IncTaskResolved() { m.taskResolved.Add(1) }

func (m *Metrics) IncTaskExpired() { m.taskExpired.Add(1) }

func (m *Metrics) IncTaskSendFails() { m.taskSendFails.Add(1) }

func (m *Metrics) Snapshot() Snapshot {
	recent := []TaskHeader{}
	if m.recent != nil {
		recent = m.recent.List()
	}
	return Snapshot{
		GeneratedAt: time.Now().UTC(),
		Link: LinkMetrics{
			DialAttempts:  m.dialAttempts.Load(),
			DialSuccess:   m.dialSuccess.Load(),
			DialFail:      m.dialFail.Load(),
			Connects:      m.connects.Load(),
			Disconnects:   m.disconnects.Load(),
			FramesIn:      m.framesIn.Load(),
			FramesDropped: m.framesDropped.Load(),
		},
		Task: TaskMetrics{
			Sent:      m.taskSent.Load(),
			Resolved:  m.taskResolved.Load(),
			Expired:   m.taskExpired.Load(),
			SendFails: m.taskSendFails.Load(),
		},
		Recent: recent,
	}
}

func (m *Metrics) WriteSnapshot(path string) error {
	if path == "" {
		return nil
	}
	snap := m.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

type TaskRecent struct {
	mu   sync.Mutex
	cap  int
	list []TaskHeader
}

func NewTaskRecent(capacity int) *TaskRecent {
	if capacity <= 0 {
		capacity = 64
	}
	return &TaskRecent{cap: capacity}
}

func (r *TaskRecent) Add(h TaskHeader) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) >= r.cap {
		copy(r.list, r.list[1:])
		r.list[len(r.list)-1] = h
		return
	}
	r.list = append(r.list, h)
}

func (r *TaskRecent) List() []TaskHeader {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskHeader, len(r.list))
	copy(out, r.list)
	return out
}
