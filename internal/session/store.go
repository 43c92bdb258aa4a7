package session

import (
	"sync"
)

// Action is a state transition dispatched to a Store.
type Action interface {
	apply(State) State
}

// LoginStarted marks a submitted login.
type LoginStarted struct{}

// LoginSucceeded installs a token and profile.
type LoginSucceeded struct {
	Token string
	User  *User
}

// LoginFailed returns to the unauthenticated state.
type LoginFailed struct{}

// RoleSelected selects a role. Any selected year and the available years are
// dropped; a year-scoped role gets them reloaded afterwards.
type RoleSelected struct {
	Role Role
}

// RoleCleared drops the selected role.
type RoleCleared struct{}

// YearsLoaded stores the years available to the selected role.
type YearsLoaded struct {
	Years     []AcademicYear
	CurrentID *int
}

// YearSelected selects an academic year.
type YearSelected struct {
	Year AcademicYear
}

// YearCleared drops the selected year.
type YearCleared struct{}

// UserRefreshed replaces the profile, keeping the token.
type UserRefreshed struct {
	User *User
}

// LoggedOut discards everything.
type LoggedOut struct{}

func (LoginStarted) apply(s State) State {
	s.Phase = Authenticating
	return s
}

func (a LoginSucceeded) apply(s State) State {
	return State{
		Token:     a.Token,
		User:      a.User,
		UserRoles: a.User.UniqueRoles(),
	}
}

func (LoginFailed) apply(State) State {
	return State{}
}

func (a RoleSelected) apply(s State) State {
	role := a.Role
	s.SelectedRole = &role
	s.SelectedAcademicYear = nil
	s.AvailableAcademicYears = nil
	s.CurrentAcademicYearID = nil
	return s
}

func (RoleCleared) apply(s State) State {
	s.SelectedRole = nil
	s.SelectedAcademicYear = nil
	s.AvailableAcademicYears = nil
	s.CurrentAcademicYearID = nil
	return s
}

func (a YearsLoaded) apply(s State) State {
	s.AvailableAcademicYears = append([]AcademicYear(nil), a.Years...)
	s.CurrentAcademicYearID = a.CurrentID
	return s
}

func (a YearSelected) apply(s State) State {
	year := a.Year
	s.SelectedAcademicYear = &year
	return s
}

func (YearCleared) apply(s State) State {
	s.SelectedAcademicYear = nil
	return s
}

func (a UserRefreshed) apply(s State) State {
	s.User = a.User
	s.UserRoles = a.User.UniqueRoles()
	return s
}

func (LoggedOut) apply(State) State {
	return State{}
}

// Reduce computes the state that follows action.
func Reduce(s State, action Action) State {
	next := action.apply(s)
	if _, ok := action.(LoginStarted); !ok {
		next.Phase = derivePhase(next)
	}
	return next
}

// Store holds the session state. It is the only writer of that state;
// readers take snapshots or subscribe.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[int]func(State)
	nextID      int
}

// NewStore creates a store in the unauthenticated state.
func NewStore() *Store {
	return &Store{subscribers: make(map[int]func(State))}
}

// State returns a snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to run after every dispatch and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Dispatch applies action and notifies subscribers with the new state.
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	next := s.state
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Reset discards the state without notifying subscribers. It is registered
// as a full-navigation hook.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}
