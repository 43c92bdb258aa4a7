// Package session holds the authenticated identity, the selected role and the
// selected academic year, and drives the login -> role -> year flow.
package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role is a permission role granted to a user.
type Role string

// Roles known to the backend.
const (
	RoleSuperAdmin        Role = "SUPER_ADMIN"
	RoleAdmin             Role = "ADMIN"
	RolePrincipal         Role = "PRINCIPAL"
	RoleVicePrincipal     Role = "VICE_PRINCIPAL"
	RoleTeacher           Role = "TEACHER"
	RoleBursar            Role = "BURSAR"
	RoleDisciplineMaster  Role = "DISCIPLINE_MASTER"
	RoleHRPersonnel       Role = "HR_PERSONNEL"
	RoleGuidanceCounselor Role = "GUIDANCE_COUNSELOR"
	RoleManager           Role = "MANAGER"
	RoleParent            Role = "PARENT"
	RoleStudent           Role = "STUDENT"
)

// AllRoles lists every known role.
var AllRoles = []Role{
	RoleSuperAdmin, RoleAdmin, RolePrincipal, RoleVicePrincipal, RoleTeacher, RoleBursar,
	RoleDisciplineMaster, RoleHRPersonnel, RoleGuidanceCounselor, RoleManager, RoleParent, RoleStudent,
}

var yearScoped = map[Role]bool{
	RoleTeacher:           true,
	RoleBursar:            true,
	RolePrincipal:         true,
	RoleVicePrincipal:     true,
	RoleDisciplineMaster:  true,
	RoleGuidanceCounselor: true,
	RoleHRPersonnel:       true,
	RoleManager:           true,
}

var dashboards = map[Role]string{
	RoleSuperAdmin:        "/super-manager/dashboard",
	RoleAdmin:             "/admin/dashboard",
	RolePrincipal:         "/principal/dashboard",
	RoleVicePrincipal:     "/vice-principal/dashboard",
	RoleTeacher:           "/teacher/dashboard",
	RoleBursar:            "/bursar/dashboard",
	RoleDisciplineMaster:  "/discipline-master/dashboard",
	RoleHRPersonnel:       "/hr/dashboard",
	RoleGuidanceCounselor: "/counselor/dashboard",
	RoleManager:           "/manager/dashboard",
	RoleParent:            "/parent/dashboard",
	RoleStudent:           "/student/dashboard",
}

// DefaultDashboardPath is the landing destination for unknown roles.
const DefaultDashboardPath = "/dashboard"

// RequiresAcademicYear reports whether role needs a selected academic year
// before it is ready.
func RequiresAcademicYear(role Role) bool {
	return yearScoped[role]
}

// DashboardPath returns the landing destination of role.
func DashboardPath(role Role) string {
	if path, ok := dashboards[role]; ok {
		return path
	}
	return DefaultDashboardPath
}

// Known reports whether role is part of the enumeration.
func (r Role) Known() bool {
	_, ok := dashboards[r]
	return ok
}

// Label returns a human-readable name, e.g. "Vice Principal".
func (r Role) Label() string {
	words := strings.Split(strings.ToLower(string(r)), "_")
	for i, w := range words {
		if w == "hr" {
			words[i] = "HR"
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseRole parses a role name case-insensitively. Dashes are accepted in
// place of underscores.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !role.Known() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// RoleGrant associates a user with a role, optionally scoped to one academic
// year. A grant without a year is usable immediately.
type RoleGrant struct {
	Role           Role `json:"role" validate:"required"`
	AcademicYearID *int `json:"academicYearId"`
}

// AcademicYear is a school year a role may operate in.
type AcademicYear struct {
	ID        int    `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	IsCurrent bool   `json:"isCurrent"`
	Status    string `json:"status,omitempty"`
}

// IDString returns the id formatted for query parameters.
func (y AcademicYear) IDString() string {
	return strconv.Itoa(y.ID)
}

// User is the authenticated profile. UserRoles is a pointer so that a profile
// missing its role data can be told apart from one with no grants.
type User struct {
	ID        int          `json:"id" validate:"required"`
	Name      string       `json:"name"`
	Email     string       `json:"email,omitempty"`
	Matricule string       `json:"matricule,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	WhatsApp  string       `json:"whatsapp,omitempty"`
	Gender    string       `json:"gender,omitempty"`
	Status    string       `json:"status,omitempty"`
	UserRoles *[]RoleGrant `json:"userRoles"`
}

// Grants returns the role grants, or nil when the profile carried none.
func (u *User) Grants() []RoleGrant {
	if u == nil || u.UserRoles == nil {
		return nil
	}
	return *u.UserRoles
}

// UniqueRoles returns the granted roles without duplicates, in grant order.
func (u *User) UniqueRoles() []Role {
	seen := make(map[Role]bool)
	var roles []Role
	for _, g := range u.Grants() {
		if g.Role == "" || seen[g.Role] {
			continue
		}
		seen[g.Role] = true
		roles = append(roles, g.Role)
	}
	return roles
}

// Phase is the position in the login -> role -> year flow.
type Phase int

const (
	// Unauthenticated has no token.
	Unauthenticated Phase = iota
	// Authenticating waits for the login response.
	Authenticating
	// RoleUnresolved has a profile but no selected role.
	RoleUnresolved
	// RoleReady has a selected role that needs no academic year.
	RoleReady
	// YearUnresolved has a year-scoped role but no selected year.
	YearUnresolved
	// Ready has a year-scoped role and a selected year.
	Ready
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case RoleUnresolved:
		return "role-unresolved"
	case RoleReady:
		return "role-ready"
	case YearUnresolved:
		return "year-unresolved"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a snapshot of the session.
type State struct {
	Token                  string         `json:"-"`
	User                   *User          `json:"user,omitempty"`
	UserRoles              []Role         `json:"userRoles"`
	SelectedRole           *Role          `json:"selectedRole"`
	SelectedAcademicYear   *AcademicYear  `json:"selectedAcademicYear"`
	AvailableAcademicYears []AcademicYear `json:"availableAcademicYears"`
	CurrentAcademicYearID  *int           `json:"currentAcademicYearId,omitempty"`
	Phase                  Phase          `json:"phase"`
}

// Authenticated reports whether the state holds a token.
func (s State) Authenticated() bool {
	return s.Token != ""
}

// Role returns the selected role or "".
func (s State) Role() Role {
	if s.SelectedRole == nil {
		return ""
	}
	return *s.SelectedRole
}

// IsReady reports whether the selected role can be used.
func (s State) IsReady() bool {
	return s.Phase == RoleReady || s.Phase == Ready
}

// FindAcademicYear returns the available year with id.
func (s State) FindAcademicYear(id int) (AcademicYear, bool) {
	for _, y := range s.AvailableAcademicYears {
		if y.ID == id {
			return y, true
		}
	}
	return AcademicYear{}, false
}

// derivePhase computes the phase from the other fields.
func derivePhase(s State) Phase {
	if s.Token == "" {
		return Unauthenticated
	}
	if s.SelectedRole == nil {
		return RoleUnresolved
	}
	if !RequiresAcademicYear(*s.SelectedRole) {
		return RoleReady
	}
	if s.SelectedAcademicYear == nil {
		return YearUnresolved
	}
	return Ready
}

// AvailableYears is the payload of the years-for-role endpoint.
type AvailableYears struct {
	AcademicYears         []AcademicYear  `json:"academicYears" validate:"dive"`
	CurrentAcademicYearID *int            `json:"currentAcademicYearId"`
	UserHasAccessTo       json.RawMessage `json:"userHasAccessTo,omitempty"`
}

// LoginRequest is sent to the login endpoint. Exactly one of Email and
// Matricule is set.
type LoginRequest struct {
	Email     string `json:"email,omitempty"`
	Matricule string `json:"matricule,omitempty"`
	Password  string `json:"password"`
}

// NewLoginRequest picks the identifier field: an identifier containing "@"
// is an email, anything else a matricule.
func NewLoginRequest(identifier, password string) LoginRequest {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return LoginRequest{Email: identifier, Password: password}
	}
	return LoginRequest{Matricule: identifier, Password: password}
}

// LoginResponse is the data of a successful login.
type LoginResponse struct {
	Token     string          `json:"token" validate:"required"`
	ExpiresIn json.RawMessage `json:"expiresIn,omitempty"`
	User      *User           `json:"user" validate:"required"`
}
