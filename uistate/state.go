// Package uistate holds the global display flags of the dashboard: what is
// loading, which views have errors, and how the last sync went.
package uistate

import (
	"sync"
	"time"
)

type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncOK      SyncStatus = "synced"
	SyncError   SyncStatus = "failed"
)

type Sync struct {
	Status   SyncStatus
	LastSync time.Time
	Error    string
}

type State struct {
	Loading map[string]bool
	Errors  map[string]string
	Sync    Sync
	Online  bool
}

// Initial is the state before anything has been fetched
func Initial() State {
	return State{
		Loading: map[string]bool{},
		Errors:  map[string]string{},
		Sync:    Sync{Status: SyncIdle},
		Online:  true,
	}
}

// IsLoading reports whether any key is loading
func (s State) IsLoading() bool {
	return len(s.Loading) > 0
}

func (s State) clone() State {
	out := s
	out.Loading = make(map[string]bool, len(s.Loading))
	for k, v := range s.Loading {
		out.Loading[k] = v
	}
	out.Errors = make(map[string]string, len(s.Errors))
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	return out
}

type ActionType string

const (
	ActionStartLoading  ActionType = "start_loading"
	ActionFinishLoading ActionType = "finish_loading"
	ActionSetError      ActionType = "set_error"
	ActionClearError    ActionType = "clear_error"
	ActionSyncStarted   ActionType = "sync_started"
	ActionSyncSucceeded ActionType = "sync_succeeded"
	ActionSyncFailed    ActionType = "sync_failed"
	ActionSetOnline     ActionType = "set_online"
	ActionReset         ActionType = "reset"
)

type Action struct {
	Type    ActionType
	Key     string
	Message string
	At      time.Time
	Online  bool
}

func StartLoading(key string) Action    { return Action{Type: ActionStartLoading, Key: key} }
func FinishLoading(key string) Action   { return Action{Type: ActionFinishLoading, Key: key} }
func SetError(key, msg string) Action   { return Action{Type: ActionSetError, Key: key, Message: msg} }
func ClearError(key string) Action      { return Action{Type: ActionClearError, Key: key} }
func SyncStarted() Action               { return Action{Type: ActionSyncStarted} }
func SyncSucceeded(at time.Time) Action { return Action{Type: ActionSyncSucceeded, At: at} }
func SyncFailed(msg string) Action      { return Action{Type: ActionSyncFailed, Message: msg} }
func SetOnline(online bool) Action      { return Action{Type: ActionSetOnline, Online: online} }
func Reset() Action                     { return Action{Type: ActionReset} }

// Reduce returns the state after a. It never modifies s.
func Reduce(s State, a Action) State {
	if s.Loading == nil || s.Errors == nil {
		init := Initial()
		if s.Loading == nil {
			s.Loading = init.Loading
		}
		if s.Errors == nil {
			s.Errors = init.Errors
		}
	}
	next := s.clone()

	switch a.Type {
	case ActionStartLoading:
		next.Loading[a.Key] = true
	case ActionFinishLoading:
		delete(next.Loading, a.Key)
	case ActionSetError:
		next.Errors[a.Key] = a.Message
		delete(next.Loading, a.Key)
	case ActionClearError:
		delete(next.Errors, a.Key)
	case ActionSyncStarted:
		next.Sync.Status = SyncSyncing
	case ActionSyncSucceeded:
		next.Sync = Sync{Status: SyncOK, LastSync: a.At}
		next.Online = true
	case ActionSyncFailed:
		next.Sync.Status = SyncError
		next.Sync.Error = a.Message
	case ActionSetOnline:
		next.Online = a.Online
	case ActionReset:
		return Initial()
	}
	return next
}

// Store serializes dispatches and hands every subscriber its own copy of
// the new state
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

func NewStore() *Store {
	return &Store{state: Initial(), subs: map[int]func(State){}}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Dispatch applies a and notifies subscribers in subscription order.
// Subscribers must not dispatch.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			fn(s.state.clone())
		}
	}
	return s.state.clone()
}

// Subscribe registers fn and returns its cancel func
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
