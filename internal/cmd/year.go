package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/session"
	"github.com/felixgeelhaar/schoolctl/internal/tui"
)

func newYearCmd() *cobra.Command {
	yearCmd := &cobra.Command{
		Use:     "year",
		Aliases: []string{"years"},
		Short:   "List and select academic years",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the academic years offered to the selected role",
		RunE:  withApp(runYearList),
	}

	selectCmd := &cobra.Command{
		Use:   "select [ID|NAME]",
		Short: "Select the academic year to work in",
		Args:  cobra.MaximumNArgs(1),
		RunE:  withApp(runYearSelect),
	}

	yearCmd.AddCommand(listCmd, selectCmd)
	return yearCmd
}

// restoreYearScoped refreshes the session and checks that the selected role
// works with academic years.
func restoreYearScoped(cmd *cobra.Command, app *App) (session.State, error) {
	state, err := app.Session.Restore(cmd.Context())
	if err != nil {
		return state, reported(err)
	}
	if !state.Authenticated() {
		return state, errors.NewSessionMissingError()
	}
	if state.SelectedRole == nil {
		return state, errors.NewRoleNotChosenError()
	}
	if !session.RequiresAcademicYear(*state.SelectedRole) {
		return state, errors.New(errors.ErrCodeYearNotRequired,
			"role "+string(*state.SelectedRole)+" does not use academic years")
	}
	return state, nil
}

type yearTable struct {
	Years      []session.AcademicYear `json:"academic_years" yaml:"academic_years"`
	CurrentID  *int                   `json:"current_academic_year_id,omitempty" yaml:"current_academic_year_id,omitempty"`
	SelectedID *int                   `json:"selected_academic_year_id,omitempty" yaml:"selected_academic_year_id,omitempty"`
}

func (t yearTable) Header() []string {
	return []string{"", "ID", "NAME", "START", "END", "STATUS"}
}

func (t yearTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Years))
	for _, y := range t.Years {
		marker := ""
		if t.SelectedID != nil && *t.SelectedID == y.ID {
			marker = "*"
		}
		status := y.Status
		if y.IsCurrent || (t.CurrentID != nil && *t.CurrentID == y.ID) {
			status = "current"
		}
		rows = append(rows, []string{marker, strconv.Itoa(y.ID), y.Name, y.StartDate, y.EndDate, status})
	}
	return rows
}

func runYearList(cmd *cobra.Command, app *App, args []string) error {
	state, err := restoreYearScoped(cmd, app)
	if err != nil {
		return err
	}
	table := yearTable{Years: state.AvailableAcademicYears, CurrentID: state.CurrentAcademicYearID}
	if state.SelectedAcademicYear != nil {
		id := state.SelectedAcademicYear.ID
		table.SelectedID = &id
	}
	return app.render(table, table)
}

func runYearSelect(cmd *cobra.Command, app *App, args []string) error {
	ctx := cmd.Context()
	state, err := restoreYearScoped(cmd, app)
	if err != nil {
		return err
	}

	switch {
	case len(args) == 1:
		year, err := findYear(state, args[0])
		if err != nil {
			return err
		}
		if err := app.Session.SelectAcademicYear(ctx, year); err != nil {
			return reported(err)
		}
	case tui.ShouldPrompt():
		if err := promptYear(ctx, app); err != nil {
			return reported(err)
		}
	default:
		return usageError("an academic year is required when not running in a terminal",
			"List the years: schoolctl year list")
	}
	return app.render(newStatusView(ctx, app), nil)
}
