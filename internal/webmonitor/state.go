package webmonitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tetra360/bolt-test/pkg/types"
)

// State owns the console's shared view: connectivity, camera, analysis.
// Every change is published as a state event.
type State struct {
	mu      sync.Mutex
	current types.ConsoleState
	events  *EventBroadcaster
	now     func() time.Time
}

// NewState creates the initial state and binds it to a new event broadcaster.
func NewState() *State {
	s := &State{
		current: types.ConsoleState{
			Connectivity: types.ConnectivityState{Status: types.StatusConnecting},
		},
		now: time.Now,
	}
	s.events = NewEventBroadcaster(s.StateEvent)
	return s
}

// Events returns the broadcaster carrying state and toast events.
func (s *State) Events() *EventBroadcaster {
	return s.events
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() types.ConsoleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() types.ConsoleState {
	snap := s.current
	if t := snap.Connectivity.LastCheckedAt; t != nil {
		checked := *t
		snap.Connectivity.LastCheckedAt = &checked
	}
	if snap.Analysis != nil {
		result := *snap.Analysis
		snap.Analysis = &result
	}
	return snap
}

// StateEvent wraps the current snapshot in an event.
func (s *State) StateEvent() types.Event {
	snap := s.Snapshot()
	return types.Event{Type: types.EventState, Timestamp: s.now(), State: &snap}
}

// SetConnectivity records the latest health probe outcome.
func (s *State) SetConnectivity(c types.ConnectivityState) {
	s.update(func(st *types.ConsoleState) { st.Connectivity = c })
}

// SetCamera records the camera state.
func (s *State) SetCamera(c types.CameraState) {
	s.update(func(st *types.ConsoleState) { st.Camera = c })
}

// SetAnalyzing records whether an analysis is in flight.
func (s *State) SetAnalyzing(active bool) {
	s.update(func(st *types.ConsoleState) { st.Analyzing = active })
}

// SetAnalysis replaces the latest analysis result.
func (s *State) SetAnalysis(r *types.AnalysisResult) {
	var copied *types.AnalysisResult
	if r != nil {
		result := *r
		copied = &result
	}
	s.update(func(st *types.ConsoleState) { st.Analysis = copied })
}

// Notify publishes a toast event.
func (s *State) Notify(toast types.Toast) {
	if toast.ID == "" {
		toast.ID = uuid.NewString()
	}
	if toast.CreatedAt.IsZero() {
		toast.CreatedAt = s.now()
	}
	s.events.Publish(types.Event{Type: types.EventToast, Timestamp: toast.CreatedAt, Toast: &toast})
}

// update applies fn and publishes while holding the lock so subscribers see
// state events in the order they were applied.
func (s *State) update(fn func(st *types.ConsoleState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	snap := s.snapshotLocked()
	s.events.Publish(types.Event{Type: types.EventState, Timestamp: s.now(), State: &snap})
}
