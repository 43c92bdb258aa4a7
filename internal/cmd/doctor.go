package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/health"
	"github.com/felixgeelhaar/schoolctl/internal/session"
)

// tokenExpiryWarning marks a token as about to expire.
const tokenExpiryWarning = 10 * time.Minute

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backend, storage and session health",
		Long: `Probe the configured backend, read the session storage and inspect the
stored session. Exits non-zero when a check is unhealthy.

The backend probe is an anonymous GET on the API URL, so it never logs you out.`,
		Args: cobra.NoArgs,
		RunE: withApp(runDoctor),
	}
	cmd.Flags().Duration("timeout", health.DefaultTimeout, "timeout for each check")
	return cmd
}

type doctorReport struct {
	Profile string          `json:"profile" yaml:"profile"`
	Overall health.Status   `json:"overall" yaml:"overall"`
	Checks  []health.Report `json:"checks" yaml:"checks"`
}

func (r doctorReport) Header() []string {
	return []string{"", "CHECK", "STATUS", "LATENCY", "MESSAGE"}
}

func (r doctorReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		rows = append(rows, []string{
			c.Status.Symbol(), c.Name, c.Status.String(),
			c.Latency.Round(time.Millisecond).String(), c.Message,
		})
	}
	return rows
}

func runDoctor(cmd *cobra.Command, app *App, _ []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	manager := health.NewManager(
		health.NewAPIChecker(app.Profile.APIURL, nil),
		health.NewStorageChecker(app.Profile.Storage.Driver, app.Storage),
		health.CheckFunc{Label: "session", Fn: func(ctx context.Context) *health.Result {
			return checkSession(app.Session.State(), app.Session.Token(ctx), time.Now())
		}},
	).WithTimeout(timeout)

	report := doctorReport{Profile: app.Profile.Name}
	report.Checks = manager.Check(cmd.Context())
	report.Overall = health.Overall(report.Checks)
	app.Logger.Debug("health checks finished", "overall", report.Overall.String(), "checks", strings.Join(manager.Names(), ","))

	if err := app.render(report, report); err != nil {
		return err
	}
	app.printf("\nOverall: %s %s\n", report.Overall.Symbol(), report.Overall)

	for _, c := range report.Checks {
		if c.Status == health.StatusUnhealthy {
			return errors.New(failedCheckCode[c.Name], fmt.Sprintf("%s check failed: %s", c.Name, c.Message))
		}
	}
	return nil
}

var failedCheckCode = map[string]errors.ErrorCode{
	"api":     errors.ErrCodeGatewayNetwork,
	"storage": errors.ErrCodeStorageRead,
	"session": errors.ErrCodeSessionInvalid,
}

// checkSession reports whether the stored session can be used as is.
func checkSession(state session.State, token string, now time.Time) *health.Result {
	if !state.Authenticated() {
		return health.Degraded("not logged in").WithDetail("phase", state.Phase.String())
	}

	var result *health.Result
	switch state.Phase {
	case session.Ready, session.RoleReady:
		result = health.Healthy(fmt.Sprintf("acting as %s", state.Role().Label()))
	case session.RoleUnresolved:
		result = health.Degraded("no role chosen; run schoolctl role select")
	default:
		result = health.Degraded("no academic year chosen; run schoolctl year select")
	}
	result.WithDetail("phase", state.Phase.String())

	exp, ok := tokenExpiry(token)
	if !ok {
		return result
	}
	result.WithDetail("expires_at", exp.Format(time.RFC3339))
	switch {
	case !exp.After(now):
		result.Status = health.StatusUnhealthy
		result.Message = "token expired; run schoolctl auth login"
	case exp.Sub(now) < tokenExpiryWarning:
		result.Status = health.StatusDegraded
		result.Message += fmt.Sprintf("; token expires in %s", exp.Sub(now).Round(time.Second))
	}
	return result
}
