package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zelara-ai/app-mobile/internal/debuglog"
)

const recordKey = "progress"

// ErrNotFound is returned by a KV when the key has never been written.
var ErrNotFound = errors.New("key not found")

// KV is the external key-value collaborator: best effort, last-write-wins.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// PersistenceError wraps a storage failure on an award/unlock/reset path.
// Read-only paths degrade to the default record instead.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("progress %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Record is the persisted ledger. Module names appear in at most one of
// UnlockedModules / AvailableUnlocks; TasksCompleted is a set.
type Record struct {
	Points           int       `json:"points"`
	UnlockedModules  []string  `json:"unlocked_modules"`
	AvailableUnlocks []string  `json:"available_unlocks"`
	TasksCompleted   []string  `json:"tasks_completed"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Config is the static unlock table: one baseline module free from the start,
// the rest gated by cumulative point thresholds.
type Config struct {
	Baseline   string
	Thresholds map[string]int
}

func DefaultConfig() Config {
	return Config{
		Baseline: "sorting-basics",
		Thresholds: map[string]int{
			"advanced-scanner": 50,
			"eco-insights":     120,
		},
	}
}

// AwardResult reports one award call: the new point total and any modules that
// crossed their threshold on this call.
type AwardResult struct {
	NewTotal      int
	NewlyUnlocked []string
}

// UnlockProgress describes the nearest locked module.
type UnlockProgress struct {
	ModuleName     string
	RequiredPoints int
	CurrentPoints  int
	Fraction       float64
}

// Store serializes every award/unlock/reset as an atomic read-modify-write
// over the persisted record; it never trusts an in-memory cache across calls.
type Store struct {
	mu  sync.Mutex
	kv  KV
	cfg Config
	now func() time.Time
}

func NewStore(kv KV, cfg Config) *Store {
	if cfg.Baseline == "" {
		cfg = DefaultConfig()
	}
	return &Store{kv: kv, cfg: cfg, now: time.Now}
}

// LoadProgress returns the persisted record, initializing and persisting the
// defaults on first ever access. A storage read failure degrades to the
// in-memory defaults so the caller is never blocked by storage; nothing is
// persisted in that case, since the stored record may still be intact.
func (s *Store) LoadProgress() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found, err := s.loadLocked()
	if err != nil {
		debuglog.Debugf("progress load failed, using defaults: %v", err)
		return rec
	}
	if !found {
		if err := s.persistLocked(rec); err != nil {
			debuglog.Debugf("progress init persist failed: %v", err)
		}
	}
	return rec
}

// AwardPoints adds amount to the ledger and records taskID in the completed
// set. Crediting is idempotent per task id: replaying a taskID already in
// TasksCompleted is a no-op, so a caller retrying after a network glitch
// cannot double-award. Threshold crossings move modules into
// AvailableUnlocks exactly once.
func (s *Store) AwardPoints(amount int, taskID string) (*AwardResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("award amount must be positive, got %d", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _, err := s.loadLocked()
	if err != nil {
		// Mutating on top of defaults would overwrite the real ledger.
		return nil, err
	}

	if taskID != "" && contains(rec.TasksCompleted, taskID) {
		return &AwardResult{NewTotal: rec.Points}, nil
	}

	rec.Points += amount
	if taskID != "" {
		rec.TasksCompleted = insertSorted(rec.TasksCompleted, taskID)
	}

	newly := s.sweepThresholds(&rec)
	rec.LastUpdated = s.now().UTC()
	if err := s.persistLocked(rec); err != nil {
		return nil, err
	}
	return &AwardResult{NewTotal: rec.Points, NewlyUnlocked: newly}, nil
}

// sweepThresholds moves every locked module whose threshold the current total
// meets into AvailableUnlocks, reporting them in deterministic name order.
func (s *Store) sweepThresholds(rec *Record) []string {
	names := make([]string, 0, len(s.cfg.Thresholds))
	for name := range s.cfg.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	var newly []string
	for _, name := range names {
		if rec.Points < s.cfg.Thresholds[name] {
			continue
		}
		if contains(rec.UnlockedModules, name) || contains(rec.AvailableUnlocks, name) {
			continue
		}
		rec.AvailableUnlocks = insertSorted(rec.AvailableUnlocks, name)
		newly = append(newly, name)
	}
	return newly
}

// UnlockModule moves name from AvailableUnlocks to UnlockedModules without
// re-checking its threshold. Idempotent when already unlocked.
func (s *Store) UnlockModule(name string) error {
	if name == "" {
		return fmt.Errorf("empty module name")
	}
	if name != s.cfg.Baseline {
		if _, ok := s.cfg.Thresholds[name]; !ok {
			return fmt.Errorf("unknown module %q", name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _, err := s.loadLocked()
	if err != nil {
		return err
	}
	if contains(rec.UnlockedModules, name) {
		return nil
	}
	rec.AvailableUnlocks = remove(rec.AvailableUnlocks, name)
	rec.UnlockedModules = insertSorted(rec.UnlockedModules, name)
	rec.LastUpdated = s.now().UTC()
	return s.persistLocked(rec)
}

// GetNextUnlockProgress finds, among modules neither unlocked nor available,
// the one with the lowest threshold still above the current points. Nil when
// every configured module is unlocked or already available.
func (s *Store) GetNextUnlockProgress() *UnlockProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _, _ := s.loadLocked()

	best := ""
	bestThreshold := 0
	for name, threshold := range s.cfg.Thresholds {
		if contains(rec.UnlockedModules, name) || contains(rec.AvailableUnlocks, name) {
			continue
		}
		if threshold <= rec.Points {
			continue
		}
		if best == "" || threshold < bestThreshold || (threshold == bestThreshold && name < best) {
			best = name
			bestThreshold = threshold
		}
	}
	if best == "" {
		return nil
	}
	return &UnlockProgress{
		ModuleName:     best,
		RequiredPoints: bestThreshold,
		CurrentPoints:  rec.Points,
		Fraction:       float64(rec.Points) / float64(bestThreshold),
	}
}

// ResetProgress restores and persists the default record: zero points, the
// baseline module unlocked, everything else empty.
func (s *Store) ResetProgress() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(s.defaultRecord())
}

func (s *Store) defaultRecord() Record {
	return Record{
		Points:           0,
		UnlockedModules:  []string{s.cfg.Baseline},
		AvailableUnlocks: []string{},
		TasksCompleted:   []string{},
	}
}

// loadLocked reads the persisted record. The second return reports whether a
// stored record existed. A never-written key and a corrupt record both count
// as absent; a genuine read failure returns a non-nil error, because the
// stored ledger may still be intact and must not be overwritten with
// defaults.
func (s *Store) loadLocked() (Record, bool, error) {
	data, err := s.kv.Get(recordKey)
	if errors.Is(err, ErrNotFound) {
		return s.defaultRecord(), false, nil
	}
	if err != nil {
		return s.defaultRecord(), false, &PersistenceError{Op: "load", Err: err}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		debuglog.Debugf("progress record corrupt, using defaults: %v", err)
		return s.defaultRecord(), false, nil
	}
	sanitize(&rec)
	return rec, true, nil
}

func (s *Store) persistLocked(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := s.kv.Set(recordKey, data); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// sanitize repairs a stored record so the in-memory invariants hold even if
// an older writer left them violated: non-negative points, nil-free sets,
// unlocked wins over available for a name in both.
func sanitize(rec *Record) {
	if rec.Points < 0 {
		rec.Points = 0
	}
	if rec.UnlockedModules == nil {
		rec.UnlockedModules = []string{}
	}
	if rec.AvailableUnlocks == nil {
		rec.AvailableUnlocks = []string{}
	}
	if rec.TasksCompleted == nil {
		rec.TasksCompleted = []string{}
	}
	for _, name := range rec.UnlockedModules {
		rec.AvailableUnlocks = remove(rec.AvailableUnlocks, name)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func insertSorted(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	list = append(list, v)
	sort.Strings(list)
	return list
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
