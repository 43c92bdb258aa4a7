package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/ux"
)

// NewRootCommand builds the schoolctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "schoolctl",
		Short: "Terminal client for the school management API",
		Long: `schoolctl talks to the school management backend the way the web client does:
log in with an email or matricule, pick one of your roles, pick an academic year
when the role needs one, then work with students, fees, personnel, timetables,
announcements and exports.

Configuration lives in ~/.schoolctl/config.yaml (one entry per profile) and can be
overridden with SCHOOLCTL_* environment variables or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("profile", "", "config profile (default: current_profile or \"default\")")
	flags.String("api-url", "", "backend base URL (overrides SCHOOLCTL_API_URL)")
	flags.String("home", "", "config directory (default: $SCHOOLCTL_HOME or ~/.schoolctl)")
	flags.StringP("output", "o", "text", "output format: text, json, yaml")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")

	root.AddCommand(
		newAuthCmd(),
		newRoleCmd(),
		newYearCmd(),
		newRequestCmd(),
		newStudentsCmd(),
		newFeesCmd(),
		newPersonnelCmd(),
		newAnnouncementsCmd(),
		newTimetableCmd(),
		newExportCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newVersionCmd(),
		newCompletionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. Errors the user has already
// been notified about come back as *ReportedError.
func ExecuteContext(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if r := reported(err); AlreadyReported(r) {
		return r
	}
	return ux.EnhanceError(err)
}
