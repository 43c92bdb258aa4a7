package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiresAcademicYear(t *testing.T) {
	scoped := map[Role]bool{
		RoleTeacher: true, RoleBursar: true, RolePrincipal: true, RoleVicePrincipal: true,
		RoleDisciplineMaster: true, RoleGuidanceCounselor: true, RoleHRPersonnel: true, RoleManager: true,
	}
	for _, role := range AllRoles {
		assert.Equal(t, scoped[role], RequiresAcademicYear(role), string(role))
	}
	assert.False(t, RequiresAcademicYear("JANITOR"))
}

func TestDashboardPath(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleTeacher, "/teacher/dashboard"},
		{RoleSuperAdmin, "/super-manager/dashboard"},
		{RoleHRPersonnel, "/hr/dashboard"},
		{RoleGuidanceCounselor, "/counselor/dashboard"},
		{Role("JANITOR"), DefaultDashboardPath},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, DashboardPath(tt.role))
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("vice-principal")
	require.NoError(t, err)
	assert.Equal(t, RoleVicePrincipal, role)
	assert.Equal(t, "Vice Principal", role.Label())
	assert.Equal(t, "HR Personnel", RoleHRPersonnel.Label())

	_, err = ParseRole("janitor")
	assert.Error(t, err)
}

func TestNewLoginRequest(t *testing.T) {
	req := NewLoginRequest(" ada@school.test ", "pw")
	assert.Equal(t, LoginRequest{Email: "ada@school.test", Password: "pw"}, req)

	req = NewLoginRequest("STU-0042", "pw")
	assert.Equal(t, LoginRequest{Matricule: "STU-0042", Password: "pw"}, req)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"matricule":"STU-0042","password":"pw"}`, string(data))
}

func TestUserRolesPresence(t *testing.T) {
	var missing User
	require.NoError(t, json.Unmarshal([]byte(`{"id":1}`), &missing))
	assert.Nil(t, missing.UserRoles)

	var empty User
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"userRoles":[]}`), &empty))
	require.NotNil(t, empty.UserRoles)
	assert.Empty(t, empty.UniqueRoles())
}

func TestStateJSON(t *testing.T) {
	role := RoleTeacher
	s := State{Token: "secret", SelectedRole: &role, Phase: YearUnresolved}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), `"phase":"year-unresolved"`)
}
