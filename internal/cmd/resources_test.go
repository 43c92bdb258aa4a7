package cmd

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/school"
	"github.com/felixgeelhaar/schoolctl/internal/testbackend"
)

func TestStudentsList(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	out, _ := c.mustRun("students", "list")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Form 1A")
	assert.Contains(t, out, school.UnknownClass, "Bob has no class object")
	assert.NotContains(t, out, "Dan", "other academic years are filtered out")

	out, _ = c.mustRun("students", "list", "--class", "3", "-o", "json")
	var page school.Page[school.Student]
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Alice", page.Items[0].Name)
	assert.Equal(t, 2, page.Meta.Total)

	out, _ = c.mustRun("students", "list", "--limit", "1", "--page", "2")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "Page 2 of 3 (3 total)")
}

func TestResourcesNeedReadySession(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("students", "list")
	assert.Equal(t, errors.ErrCodeSessionMissing, errors.CodeOf(err))

	c.mustRun("auth", "login", "--id", "bursar@school.test", "--password", "secret")
	for _, args := range [][]string{
		{"students", "list"},
		{"fees"},
		{"timetable", "3"},
		{"export", "students"},
	} {
		_, _, err := c.run(args...)
		assert.Equal(t, errors.ErrCodeSessionNotReady, errors.CodeOf(err), args)
	}
	assert.Zero(t, c.backend.Hits("GET /students"))
}

func TestStudentsDelete(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	_, _, err := c.run("students", "delete", "1")
	assert.ErrorContains(t, err, "--yes")

	_, _, err = c.run("students", "delete", "abc", "--yes")
	assert.ErrorContains(t, err, "student id must be a positive number")

	_, stderr := c.mustRun("students", "delete", "1", "--yes")
	assert.Contains(t, stderr, "Student 1 deleted")
	assert.Equal(t, 1, c.backend.Hits("DELETE /students/:id"))
}

func TestFeesPersonnelAnnouncements(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	out, _ := c.mustRun("fees")
	assert.Contains(t, out, "500.00")
	assert.Contains(t, out, "300.00", "balance column")

	out, _ = c.mustRun("personnel")
	assert.Contains(t, out, "Terry Teacher")
	assert.Contains(t, out, "TEACHER")

	out, _ = c.mustRun("announcements", "-o", "yaml")
	assert.Contains(t, out, "title: Sports day")
}

func TestFeesValidationFailure(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()
	c.backend.Fees = []map[string]any{{"id": 11, "amount": -5.0}}

	_, stderr, err := c.run("fees")
	require.Error(t, err)
	assert.True(t, AlreadyReported(err))
	assert.Contains(t, stderr, "✗")
}

func TestTimetable(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()

	out, _ := c.mustRun("timetable", "3")
	assert.Contains(t, out, "Monday")
	assert.Contains(t, out, "Maths")

	_, stderr, err := c.run("timetable", "99")
	require.Error(t, err)
	assert.True(t, AlreadyReported(err))
	assert.Contains(t, stderr, "Timetable not found")
}

func TestExport(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()
	dir := t.TempDir()

	out, _ := c.mustRun("export", "students", "--dir", dir)
	assert.Contains(t, out, "students.xlsx")
	assert.Contains(t, out, `sheet "Students": 4 rows`)
	_, err := os.Stat(filepath.Join(dir, "students.xlsx"))
	require.NoError(t, err)

	out, _ = c.mustRun("export", "students", "--format", "csv", "--dir", dir, "-o", "json")
	var view exportView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, filepath.Join(dir, "students.csv"), view.File)
	assert.Empty(t, view.Sheets)

	_, _, err = c.run("export", "students", "--format", "docx")
	assert.ErrorContains(t, err, "unsupported --format")
}

func TestExportServerFailure(t *testing.T) {
	c := newCLI(t)
	c.loginBursar()
	c.backend.Fail("GET /exports/:kind", testbackend.Failure{
		Status:      http.StatusInternalServerError,
		ContentType: "text/plain",
		Body:        "export service down",
	})

	_, stderr, err := c.run("export", "students", "--dir", t.TempDir())
	require.Error(t, err)
	assert.True(t, AlreadyReported(err))
	assert.Contains(t, stderr, "export service down")
}
