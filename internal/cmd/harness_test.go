package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/felixgeelhaar/schoolctl/internal/config"
	"github.com/felixgeelhaar/schoolctl/internal/testbackend"
)

// cli runs command trees against an in-process backend with a private
// config directory.
type cli struct {
	t       *testing.T
	home    string
	apiURL  string
	backend *testbackend.Backend
}

func intPtr(v int) *int { return &v }

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("SCHOOLCTL_NO_PROMPT", "1")
	t.Setenv("NO_COLOR", "1")
	for _, k := range []string{
		config.EnvProfile, config.EnvAPIURL, config.EnvTimeout, config.EnvOpenAPI,
		config.EnvStorageDriver, config.EnvStoragePath, config.EnvStoragePassphrase,
		config.EnvRedisURL, config.EnvLogLevel, config.EnvLogFormat,
	} {
		t.Setenv(k, "")
	}

	b := testbackend.New()
	b.AddAccount(&testbackend.Account{
		ID: 1, Name: "Beatrice Bursar", Email: "bursar@school.test", Matricule: "B001", Password: "secret",
		Grants: []testbackend.Grant{{Role: "BURSAR", AcademicYearID: intPtr(7)}},
	})
	b.AddAccount(&testbackend.Account{
		ID: 2, Name: "Paul Principal", Email: "principal@school.test", Password: "secret",
		Grants: []testbackend.Grant{{Role: "PRINCIPAL"}, {Role: "ADMIN"}},
	})
	b.AddAccount(&testbackend.Account{
		ID: 3, Name: "Ada Admin", Matricule: "A001", Password: "secret",
		Grants: []testbackend.Grant{{Role: "ADMIN"}},
	})

	years := []testbackend.Year{
		{ID: 7, Name: "2024/2025", StartDate: "2024-09-01", EndDate: "2025-06-30", IsCurrent: true, Status: "active"},
		{ID: 6, Name: "2023/2024", StartDate: "2023-09-01", EndDate: "2024-06-30", Status: "closed"},
	}
	b.SetYears("BURSAR", 7, years...)
	b.SetYears("PRINCIPAL", 7, years...)

	b.Students = []testbackend.Student{
		{ID: 1, Name: "Alice", Matricule: "S001", ClassID: 3, ClassName: "Form 1A", AcademicYearID: 7},
		{ID: 2, Name: "Bob", Matricule: "S002", ClassID: 3, AcademicYearID: 7},
		{ID: 3, Name: "Chloe", Matricule: "S003", ClassID: 4, ClassName: "Form 2B", AcademicYearID: 7},
		{ID: 4, Name: "Dan", Matricule: "S004", ClassID: 3, AcademicYearID: 6},
	}
	b.Fees = []map[string]any{
		{"id": 10, "studentId": 1, "studentName": "Alice", "amount": 500.0, "amountPaid": 200.0, "status": "partial"},
	}
	b.Personnel = []map[string]any{
		{"id": 20, "name": "Terry Teacher", "email": "terry@school.test", "roles": []string{"TEACHER"}},
	}
	b.Announcements = []map[string]any{
		{"id": 30, "title": "Sports day", "message": "Friday", "audience": "ALL", "publishedAt": "2024-10-01T08:00:00Z"},
	}
	b.Timetables[3] = []map[string]any{
		{"id": 40, "day": "Monday", "startTime": "08:00", "endTime": "09:00", "subject": "Maths", "teacher": "Terry Teacher", "room": "B12"},
	}

	return &cli{t: t, home: t.TempDir(), apiURL: testbackend.Start(t, b), backend: b}
}

// run executes one invocation and returns stdout and stderr.
func (c *cli) run(args ...string) (string, string, error) {
	return c.runWithInput("", args...)
}

func (c *cli) runWithInput(stdin string, args ...string) (string, string, error) {
	c.t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--home", c.home, "--api-url", c.apiURL}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// mustRun fails the test when the invocation fails.
func (c *cli) mustRun(args ...string) (string, string) {
	c.t.Helper()
	out, errOut, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("schoolctl %s: %v\nstderr:\n%s", strings.Join(args, " "), err, errOut)
	}
	return out, errOut
}

// loginBursar logs in the year-scoped bursar and selects year 7.
func (c *cli) loginBursar() {
	c.t.Helper()
	c.mustRun("auth", "login", "--id", "bursar@school.test", "--password", "secret", "--year", "7")
}
