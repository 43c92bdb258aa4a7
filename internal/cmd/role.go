package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/session"
	"github.com/felixgeelhaar/schoolctl/internal/tui"
)

func newRoleCmd() *cobra.Command {
	roleCmd := &cobra.Command{
		Use:   "role",
		Short: "List and select your roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the roles granted to you",
		RunE:  withApp(runRoleList),
	}

	selectCmd := &cobra.Command{
		Use:   "select [ROLE]",
		Short: "Select the role to act as",
		Long: `Select one of your roles. Year-scoped roles reload the academic years they may
access and always ask for the year again, even when the same role is re-selected.

Without ROLE a chooser is shown in a terminal.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: roleNames(),
		RunE:      withApp(runRoleSelect),
	}
	selectCmd.Flags().String("year", "", "academic year id or name to select afterwards")

	roleCmd.AddCommand(listCmd, selectCmd)
	return roleCmd
}

func roleNames() []string {
	names := make([]string, len(session.AllRoles))
	for i, r := range session.AllRoles {
		names[i] = string(r)
	}
	return names
}

type roleRow struct {
	Role       session.Role `json:"role" yaml:"role"`
	Label      string       `json:"label" yaml:"label"`
	YearScoped bool         `json:"year_scoped" yaml:"year_scoped"`
	Dashboard  string       `json:"dashboard" yaml:"dashboard"`
	Selected   bool         `json:"selected" yaml:"selected"`
}

type roleTable []roleRow

func (t roleTable) Header() []string {
	return []string{"", "ROLE", "NAME", "ACADEMIC YEAR", "DASHBOARD"}
}

func (t roleTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		marker, scoped := "", "-"
		if r.Selected {
			marker = "*"
		}
		if r.YearScoped {
			scoped = "required"
		}
		rows = append(rows, []string{marker, string(r.Role), r.Label, scoped, r.Dashboard})
	}
	return rows
}

func runRoleList(cmd *cobra.Command, app *App, args []string) error {
	state := app.Session.State()
	if !state.Authenticated() {
		return errors.NewSessionMissingError()
	}
	table := make(roleTable, 0, len(state.UserRoles))
	for _, role := range state.UserRoles {
		table = append(table, roleRow{
			Role:       role,
			Label:      role.Label(),
			YearScoped: session.RequiresAcademicYear(role),
			Dashboard:  session.DashboardPath(role),
			Selected:   state.Role() == role,
		})
	}
	return app.render(table, table)
}

func runRoleSelect(cmd *cobra.Command, app *App, args []string) error {
	ctx := cmd.Context()
	state := app.Session.State()
	if !state.Authenticated() {
		return errors.NewSessionMissingError()
	}

	var role session.Role
	switch {
	case len(args) == 1:
		parsed, err := session.ParseRole(args[0])
		if err != nil {
			return err
		}
		role = parsed
	case tui.ShouldPrompt():
		choices := make([]tui.Choice[session.Role], 0, len(state.UserRoles))
		for _, r := range state.UserRoles {
			choices = append(choices, tui.Choice[session.Role]{Label: r.Label(), Value: r})
		}
		picked, err := tui.PromptForChoice("Select your role", choices)
		if err != nil {
			return err
		}
		role = picked
	default:
		return usageError("a role is required when not running in a terminal",
			"List your roles: schoolctl role list")
	}

	if err := app.Session.SelectRole(ctx, role); err != nil {
		return reported(err)
	}
	app.Notifier.Success("Acting as " + role.Label())

	if !session.RequiresAcademicYear(role) {
		app.Navigator.Navigate(session.DashboardPath(role))
		return app.render(newStatusView(ctx, app), nil)
	}

	yearFlag, _ := cmd.Flags().GetString("year")
	if err := chooseYear(ctx, app, yearFlag); err != nil {
		return reported(err)
	}
	return app.render(newStatusView(ctx, app), nil)
}
