package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/gateway"
	"github.com/felixgeelhaar/schoolctl/internal/log"
	"github.com/felixgeelhaar/schoolctl/internal/navigate"
	"github.com/felixgeelhaar/schoolctl/internal/notify"
	"github.com/felixgeelhaar/schoolctl/internal/storage"
)

// Backend endpoints used by the session flow.
const (
	LoginEndpoint          = "/auth/login"
	ProfileEndpoint        = "/auth/me"
	AvailableYearsEndpoint = "/academic-years/available-for-role"
)

// User-facing messages.
const (
	MsgLoginSucceeded    = "Login successful"
	MsgLoggedOut         = "Logged out"
	MsgNoRoles           = "Your account has no roles assigned"
	MsgNoAcademicYears   = "No academic years available for this role"
	MsgInvalidSession    = "Your session is invalid. Please log in again."
	MsgSessionRestoreErr = "Could not restore your session. Please log in again."
)

// Manager runs the login -> role -> academic year flow on top of a Store.
// Persisted fields are written through the storage adapter one key at a time.
type Manager struct {
	store     *Store
	client    *gateway.Client
	storage   storage.Storage
	notifier  notify.Notifier
	navigator navigate.Navigator
	logger    *log.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager. The gateway client must share st so that
// the token written here is the one it sends.
func NewManager(store *Store, client *gateway.Client, st storage.Storage, notifier notify.Notifier, navigator navigate.Navigator, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		client:    client,
		storage:   st,
		notifier:  notifier,
		navigator: navigator,
		logger:    log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *Store {
	return m.store
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	return m.store.State()
}

// Login authenticates with an email or matricule. A single granted role is
// selected right away; the dashboard is opened only when that role needs no
// academic year. With several roles the caller must present a chooser.
func (m *Manager) Login(ctx context.Context, identifier, password string) (State, error) {
	m.store.Dispatch(LoginStarted{})

	env, err := gateway.SendJSON[LoginResponse](ctx, m.client, http.MethodPost, LoginEndpoint,
		NewLoginRequest(identifier, password), gateway.Options{})
	if err != nil {
		m.store.Dispatch(LoginFailed{})
		if !gateway.Notified(err) && ctx.Err() == nil {
			m.notifier.Error(err.Error())
		}
		return m.store.State(), err
	}
	data := env.Data

	if err := m.persistLogin(ctx, data.Token, data.User); err != nil {
		m.store.Dispatch(LoginFailed{})
		_ = storage.ClearSession(context.WithoutCancel(ctx), m.storage)
		m.notifier.Error("Could not save the session")
		return m.store.State(), err
	}

	state := m.store.Dispatch(LoginSucceeded{Token: data.Token, User: data.User})
	m.logger.InfoContext(ctx, "logged in", "user_id", data.User.ID, "roles", len(state.UserRoles))
	m.notifier.Success(MsgLoginSucceeded)

	switch len(state.UserRoles) {
	case 0:
		m.notifier.Info(MsgNoRoles)
	case 1:
		role := state.UserRoles[0]
		if err := m.SelectRole(ctx, role); err != nil {
			return m.store.State(), err
		}
		if !RequiresAcademicYear(role) {
			m.navigator.Navigate(DashboardPath(role))
		}
	}

	return m.store.State(), nil
}

func (m *Manager) persistLogin(ctx context.Context, token string, user *User) error {
	if err := m.storage.Set(ctx, storage.KeyToken, token); err != nil {
		return err
	}
	if err := m.writeUser(ctx, user); err != nil {
		return err
	}
	// Selections belong to the previous identity.
	if err := m.storage.Remove(ctx, storage.KeyUserRole); err != nil {
		return err
	}
	return m.storage.Remove(ctx, storage.KeyAcademicYear)
}

// Logout clears persisted and in-memory session state and returns to the
// entry point. It is safe to call in any state.
func (m *Manager) Logout(ctx context.Context) error {
	err := storage.ClearSession(context.WithoutCancel(ctx), m.storage)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to clear persisted session", "error", err.Error())
	}
	m.store.Dispatch(LoggedOut{})
	m.notifier.Success(MsgLoggedOut)
	m.navigator.Reset(navigate.LoginPath)
	return err
}

// SelectRole selects one of the user's roles. A year-scoped role always
// drops the previously selected academic year and reloads the years it may
// access, even when the same role is selected again.
func (m *Manager) SelectRole(ctx context.Context, role Role) error {
	state := m.store.State()
	if !state.Authenticated() {
		return errors.NewSessionMissingError()
	}
	if !m.HasRole(role) {
		return errors.NewRoleNotGrantedError(string(role))
	}

	if err := m.storage.Set(ctx, storage.KeyUserRole, string(role)); err != nil {
		return err
	}
	if err := m.storage.Remove(ctx, storage.KeyAcademicYear); err != nil {
		return err
	}
	m.store.Dispatch(RoleSelected{Role: role})
	m.logger.DebugContext(ctx, "role selected", "role", string(role))

	if !RequiresAcademicYear(role) {
		return nil
	}

	if _, err := m.loadYears(ctx, role); err != nil {
		if gateway.IsUnauthorized(err) {
			m.store.Dispatch(LoggedOut{})
			return err
		}
		if rmErr := m.storage.Remove(context.WithoutCancel(ctx), storage.KeyUserRole); rmErr != nil {
			m.logger.WarnContext(ctx, "failed to roll back role selection", "error", rmErr.Error())
		}
		m.store.Dispatch(RoleCleared{})
		if !gateway.Notified(err) && ctx.Err() == nil {
			m.notifier.Error(fmt.Sprintf("Failed to load academic years: %v", err))
		}
		return err
	}
	return nil
}

// loadYears fetches the years available to role and stores them. An empty
// list is reported to the user and leaves the role unready.
func (m *Manager) loadYears(ctx context.Context, role Role) (*AvailableYears, error) {
	env, err := gateway.GetJSON[AvailableYears](ctx, m.client, AvailableYearsEndpoint, gateway.Options{
		Query: url.Values{"role": {string(role)}},
	})
	if err != nil {
		return nil, err
	}

	m.store.Dispatch(YearsLoaded{Years: env.Data.AcademicYears, CurrentID: env.Data.CurrentAcademicYearID})
	if len(env.Data.AcademicYears) == 0 {
		m.notifier.Info(MsgNoAcademicYears)
	}
	return &env.Data, nil
}

// SelectAcademicYear selects the year for the current year-scoped role and
// opens its dashboard.
func (m *Manager) SelectAcademicYear(ctx context.Context, year AcademicYear) error {
	state := m.store.State()
	if !state.Authenticated() {
		return errors.NewSessionMissingError()
	}
	if state.SelectedRole == nil {
		return errors.NewRoleNotChosenError()
	}
	role := *state.SelectedRole
	if !RequiresAcademicYear(role) {
		return errors.New(errors.ErrCodeYearNotRequired,
			fmt.Sprintf("role %s does not use academic years", role))
	}
	if len(state.AvailableAcademicYears) > 0 {
		listed, ok := state.FindAcademicYear(year.ID)
		if !ok {
			return errors.NewYearUnavailableError(year.Name)
		}
		year = listed
	}

	done := m.notifier.Loading(fmt.Sprintf("Setting up %s...", year.Name))
	data, err := json.Marshal(year)
	if err == nil {
		err = m.storage.Set(ctx, storage.KeyAcademicYear, string(data))
	}
	if err != nil {
		done()
		m.notifier.Error("Could not save the academic year")
		return err
	}
	m.store.Dispatch(YearSelected{Year: year})
	done()

	m.notifier.Success(fmt.Sprintf("Switched to academic year %s", year.Name))
	m.navigator.Navigate(DashboardPath(role))
	return nil
}

// RefreshUser rebuilds the session from the persisted token. A profile
// without role data, or any failure other than an expired token, ends the
// session.
func (m *Manager) RefreshUser(ctx context.Context) (State, error) {
	token := m.Token(ctx)
	if token == "" {
		m.store.Dispatch(LoggedOut{})
		return m.store.State(), errors.NewSessionMissingError()
	}

	env, err := gateway.GetJSON[User](ctx, m.client, ProfileEndpoint, gateway.Options{})
	if err != nil {
		if gateway.IsUnauthorized(err) {
			m.store.Dispatch(LoggedOut{})
			return m.store.State(), err
		}
		if ctx.Err() != nil {
			return m.store.State(), err
		}
		return m.invalidate(ctx, MsgSessionRestoreErr,
			errors.Wrap(errors.ErrCodeSessionRefresh, "failed to refresh the user profile", err))
	}

	user := env.Data
	if user.UserRoles == nil {
		return m.invalidate(ctx, MsgInvalidSession,
			errors.New(errors.ErrCodeSessionInvalid, "profile has no role data"))
	}
	if err := m.writeUser(ctx, &user); err != nil {
		return m.invalidate(ctx, MsgSessionRestoreErr, err)
	}

	// A session restored by Load keeps its selection while the profile is
	// swapped; a cold store starts from the token.
	var state State
	if m.store.State().Token == token {
		state = m.store.Dispatch(UserRefreshed{User: &user})
	} else {
		state = m.store.Dispatch(LoginSucceeded{Token: token, User: &user})
	}
	if len(state.UserRoles) == 0 {
		m.notifier.Info(MsgNoRoles)
		return state, nil
	}

	role := state.UserRoles[0]
	if persisted, ok, _ := m.storage.Get(ctx, storage.KeyUserRole); ok && m.HasRole(Role(persisted)) {
		role = Role(persisted)
	} else {
		m.logger.DebugContext(ctx, "persisted role not held, falling back", "persisted", persisted, "role", string(role))
		if err := m.storage.Set(ctx, storage.KeyUserRole, string(role)); err != nil {
			return m.invalidate(ctx, MsgSessionRestoreErr, err)
		}
	}
	if m.store.State().Role() != role {
		m.store.Dispatch(RoleSelected{Role: role})
	}

	if !RequiresAcademicYear(role) {
		if err := m.storage.Remove(ctx, storage.KeyAcademicYear); err != nil {
			m.logger.WarnContext(ctx, "failed to remove stale academic year", "error", err.Error())
		}
		return m.store.Dispatch(YearCleared{}), nil
	}

	if _, err := m.loadYears(ctx, role); err != nil {
		if gateway.IsUnauthorized(err) {
			m.store.Dispatch(LoggedOut{})
			return m.store.State(), err
		}
		return m.invalidate(ctx, MsgSessionRestoreErr,
			errors.Wrap(errors.ErrCodeSessionRefresh, "failed to load academic years", err))
	}

	// The persisted year is kept only while it is still offered.
	year, ok := m.readYear(ctx)
	if listed, found := m.store.State().FindAcademicYear(year.ID); ok && found {
		return m.store.Dispatch(YearSelected{Year: listed}), nil
	}
	if ok {
		if err := m.storage.Remove(ctx, storage.KeyAcademicYear); err != nil {
			m.logger.WarnContext(ctx, "failed to remove stale academic year", "error", err.Error())
		}
	}
	return m.store.Dispatch(YearCleared{}), nil
}

// invalidate ends the session after a failure the gateway did not handle.
func (m *Manager) invalidate(ctx context.Context, message string, cause error) (State, error) {
	m.logger.LogErrorContext(ctx, "session invalidated", cause)
	if err := storage.ClearSession(context.WithoutCancel(ctx), m.storage); err != nil {
		m.logger.WarnContext(ctx, "failed to clear persisted session", "error", err.Error())
	}
	m.store.Dispatch(LoggedOut{})
	m.notifier.Error(message)
	m.navigator.Reset(navigate.LoginPath)
	return m.store.State(), cause
}

// Load rebuilds the session from persisted values only. Corrupted values are
// discarded and treated as absent.
func (m *Manager) Load(ctx context.Context) State {
	m.store.Dispatch(LoggedOut{})

	token := m.Token(ctx)
	if token == "" {
		return m.store.State()
	}

	user, ok := m.readUser(ctx)
	if !ok {
		user = &User{}
	}
	year, hasYear := m.readYear(ctx)
	m.store.Dispatch(LoginSucceeded{Token: token, User: user})

	persisted, ok, _ := m.storage.Get(ctx, storage.KeyUserRole)
	if !ok || !m.HasRole(Role(persisted)) {
		return m.store.State()
	}
	role := Role(persisted)
	m.store.Dispatch(RoleSelected{Role: role})

	if hasYear && RequiresAcademicYear(role) {
		m.store.Dispatch(YearSelected{Year: year})
	}
	return m.store.State()
}

// Restore is run at start-up: it loads persisted values and, when a token
// exists, refreshes the profile from the backend.
func (m *Manager) Restore(ctx context.Context) (State, error) {
	state := m.Load(ctx)
	if !state.Authenticated() {
		return state, nil
	}
	return m.RefreshUser(ctx)
}

func (m *Manager) writeUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to encode user profile", err)
	}
	return m.storage.Set(ctx, storage.KeyUserData, string(data))
}

func (m *Manager) readUser(ctx context.Context) (*User, bool) {
	raw, ok, err := m.storage.Get(ctx, storage.KeyUserData)
	if err != nil || !ok {
		return nil, false
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.discard(ctx, storage.KeyUserData, err)
		return nil, false
	}
	return &user, true
}

func (m *Manager) readYear(ctx context.Context) (AcademicYear, bool) {
	raw, ok, err := m.storage.Get(ctx, storage.KeyAcademicYear)
	if err != nil || !ok {
		return AcademicYear{}, false
	}
	var year AcademicYear
	if err := json.Unmarshal([]byte(raw), &year); err != nil || year.ID == 0 {
		m.discard(ctx, storage.KeyAcademicYear, err)
		return AcademicYear{}, false
	}
	return year, true
}

func (m *Manager) discard(ctx context.Context, key string, cause error) {
	args := []any{"key", key}
	if cause != nil {
		args = append(args, "error", cause.Error())
	}
	m.logger.WarnContext(ctx, "discarding corrupted session value", args...)
	if err := m.storage.Remove(ctx, key); err != nil {
		m.logger.WarnContext(ctx, "failed to remove corrupted session value", "key", key, "error", err.Error())
	}
}

// HasRole reports whether the user holds role, whatever is selected.
func (m *Manager) HasRole(role Role) bool {
	for _, r := range m.store.State().UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RequiresAcademicYear reports whether role is year-scoped.
func (m *Manager) RequiresAcademicYear(role Role) bool {
	return RequiresAcademicYear(role)
}

// Token returns the persisted token, or "" when there is none.
func (m *Manager) Token(ctx context.Context) string {
	token, ok, err := m.storage.Get(ctx, storage.KeyToken)
	if err != nil || !ok {
		return ""
	}
	return token
}

// IsReady reports whether the selected role can be used.
func (m *Manager) IsReady() bool {
	return m.store.State().IsReady()
}

// RequireReady returns an error describing what is missing before the
// selected role can be used.
func (m *Manager) RequireReady() error {
	state := m.store.State()
	switch state.Phase {
	case RoleReady, Ready:
		return nil
	case RoleUnresolved:
		return errors.NewRoleNotChosenError()
	case YearUnresolved:
		return errors.NewSessionNotReadyError(string(state.Role()))
	default:
		return errors.NewSessionMissingError()
	}
}

// AcademicYearQuery returns the value of the academicYearId query parameter
// for the current selection, or "".
func (m *Manager) AcademicYearQuery() string {
	state := m.store.State()
	if state.SelectedAcademicYear == nil || !RequiresAcademicYear(state.Role()) {
		return ""
	}
	return state.SelectedAcademicYear.IDString()
}
