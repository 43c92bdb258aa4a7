package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/config"
	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/session"
	"github.com/felixgeelhaar/schoolctl/internal/tui"
)

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, log out and inspect the session",
		Long: `Manage the session with the school backend.

Subcommands:
  login   Log in with an email or matricule
  logout  Clear the session
  status  Show the stored session without contacting the backend
  me      Refresh the profile from the backend

Examples:
  schoolctl auth login
  schoolctl auth login --id T0042 --password-stdin < password.txt
  schoolctl auth login --id principal@school.test --role PRINCIPAL --year 7
  schoolctl auth status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with an email or matricule",
		Long: `Log in to the backend. An identifier containing "@" is sent as an email,
anything else as a matricule.

With a single role the role is selected right away. With several roles a chooser
is shown in a terminal; otherwise pass --role. Year-scoped roles (teacher, bursar,
principal, ...) then need an academic year: pick it in the chooser or pass --year.`,
		RunE: withApp(runAuthLogin),
	}
	loginCmd.Flags().String("id", "", "email address or matricule")
	loginCmd.Flags().String("password", "", "password (prefer --password-stdin)")
	loginCmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	loginCmd.Flags().String("role", "", "role to select after login")
	loginCmd.Flags().String("year", "", "academic year id or name to select after login")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the session",
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			return app.Session.Logout(cmd.Context())
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			return app.render(newStatusView(cmd.Context(), app), nil)
		}),
	}

	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Refresh the profile from the backend",
		Long: `Fetch the profile from the backend and rebuild the session, the same way a page
reload does. The stored role is kept when it is still granted, otherwise the first
role is selected; the stored academic year is kept only while it is still offered.`,
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.Session.Restore(cmd.Context()); err != nil {
				return reported(err)
			}
			return app.render(newStatusView(cmd.Context(), app), nil)
		}),
	}

	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd, meCmd)
	return authCmd
}

func runAuthLogin(cmd *cobra.Command, app *App, args []string) error {
	ctx := cmd.Context()
	identifier, _ := cmd.Flags().GetString("id")
	password, _ := cmd.Flags().GetString("password")
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")

	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return usageError("--password-stdin given but nothing was read from stdin")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if identifier == "" || password == "" {
		if !tui.ShouldPrompt() {
			return CredentialsRequiredError()
		}
		def := identifier
		if def == "" {
			def = app.Profile.Identifier
		}
		creds, err := tui.PromptForCredentials(def)
		if err != nil {
			return err
		}
		identifier, password = creds.Identifier, creds.Password
	}

	if _, err := app.Session.Login(ctx, identifier, password); err != nil {
		return &ReportedError{Err: err}
	}
	if err := app.Loader.Save(app.Profile.Name, func(p *config.Profile) { p.Identifier = identifier }); err != nil {
		app.Logger.Warn("failed to remember identifier", "error", err.Error())
	}

	roleFlag, _ := cmd.Flags().GetString("role")
	yearFlag, _ := cmd.Flags().GetString("year")
	if err := chooseRole(ctx, app, roleFlag); err != nil {
		return reported(err)
	}
	if err := chooseYear(ctx, app, yearFlag); err != nil {
		return reported(err)
	}

	return app.render(newStatusView(ctx, app), nil)
}

// chooseRole selects roleFlag, or asks when several roles are held and none
// is selected yet.
func chooseRole(ctx context.Context, app *App, roleFlag string) error {
	state := app.Session.State()
	if roleFlag != "" {
		role, err := session.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		if state.SelectedRole != nil && *state.SelectedRole == role {
			return nil
		}
		return app.Session.SelectRole(ctx, role)
	}

	if state.Phase != session.RoleUnresolved || len(state.UserRoles) == 0 {
		return nil
	}
	if !tui.ShouldPrompt() {
		app.Notifier.Info("Choose a role: schoolctl role select <ROLE>")
		return nil
	}

	choices := make([]tui.Choice[session.Role], 0, len(state.UserRoles))
	for _, role := range state.UserRoles {
		choices = append(choices, tui.Choice[session.Role]{Label: role.Label(), Value: role})
	}
	role, err := tui.PromptForChoice("Select your role", choices)
	if err != nil {
		return err
	}
	return app.Session.SelectRole(ctx, role)
}

// chooseYear selects yearFlag, or asks when the selected role needs a year.
func chooseYear(ctx context.Context, app *App, yearFlag string) error {
	state := app.Session.State()
	if yearFlag != "" {
		year, err := findYear(state, yearFlag)
		if err != nil {
			return err
		}
		return app.Session.SelectAcademicYear(ctx, year)
	}

	if state.Phase != session.YearUnresolved || len(state.AvailableAcademicYears) == 0 {
		return nil
	}
	if !tui.ShouldPrompt() {
		app.Notifier.Info("Choose an academic year: schoolctl year select <ID>")
		return nil
	}
	return promptYear(ctx, app)
}

// promptYear asks for one of the offered years and selects it.
func promptYear(ctx context.Context, app *App) error {
	state := app.Session.State()
	if len(state.AvailableAcademicYears) == 0 {
		return errors.New(errors.ErrCodeYearNoneOffered, "no academic years are available for this role")
	}
	choices := make([]tui.Choice[int], 0, len(state.AvailableAcademicYears))
	for _, y := range state.AvailableAcademicYears {
		label := y.Name
		if state.CurrentAcademicYearID != nil && *state.CurrentAcademicYearID == y.ID {
			label += " (current)"
		}
		choices = append(choices, tui.Choice[int]{Label: label, Value: y.ID})
	}
	id, err := tui.PromptForChoice("Select the academic year", choices)
	if err != nil {
		return err
	}
	year, _ := state.FindAcademicYear(id)
	return app.Session.SelectAcademicYear(ctx, year)
}

// findYear resolves an id or a name among the offered years.
func findYear(state session.State, ref string) (session.AcademicYear, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		if year, ok := state.FindAcademicYear(id); ok {
			return year, nil
		}
	}
	for _, y := range state.AvailableAcademicYears {
		if strings.EqualFold(y.Name, ref) {
			return y, nil
		}
	}
	return session.AcademicYear{}, errors.NewYearUnavailableError(ref)
}

// statusView is the printable session.
type statusView struct {
	Profile      string                `json:"profile" yaml:"profile"`
	APIURL       string                `json:"api_url" yaml:"api_url"`
	Storage      string                `json:"storage" yaml:"storage"`
	Phase        session.Phase         `json:"phase" yaml:"phase"`
	User         *session.User         `json:"user,omitempty" yaml:"user,omitempty"`
	Roles        []session.Role        `json:"roles,omitempty" yaml:"roles,omitempty"`
	Role         string                `json:"role,omitempty" yaml:"role,omitempty"`
	AcademicYear *session.AcademicYear `json:"academic_year,omitempty" yaml:"academic_year,omitempty"`
	ExpiresAt    *time.Time            `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func newStatusView(ctx context.Context, app *App) statusView {
	state := app.Session.State()
	v := statusView{
		Profile:      app.Profile.Name,
		APIURL:       app.Profile.APIURL,
		Storage:      app.Profile.Storage.Driver,
		Phase:        state.Phase,
		User:         state.User,
		Roles:        state.UserRoles,
		Role:         string(state.Role()),
		AcademicYear: state.SelectedAcademicYear,
	}
	if exp, ok := tokenExpiry(app.Session.Token(ctx)); ok {
		v.ExpiresAt = &exp
	}
	return v
}

func (v statusView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile:  %s (%s)\n", v.Profile, v.APIURL)
	if v.User == nil {
		b.WriteString("Session:  not logged in")
		return b.String()
	}

	who := v.User.Name
	switch {
	case v.User.Email != "":
		who += " <" + v.User.Email + ">"
	case v.User.Matricule != "":
		who += " [" + v.User.Matricule + "]"
	}
	fmt.Fprintf(&b, "User:     %s\n", who)

	labels := make([]string, len(v.Roles))
	for i, r := range v.Roles {
		labels[i] = r.Label()
	}
	fmt.Fprintf(&b, "Roles:    %s\n", strings.Join(labels, ", "))

	role := "-"
	if v.Role != "" {
		role = session.Role(v.Role).Label()
	}
	fmt.Fprintf(&b, "Role:     %s\n", role)
	if v.AcademicYear != nil {
		fmt.Fprintf(&b, "Year:     %s\n", v.AcademicYear.Name)
	}
	if v.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires:  %s\n", v.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(&b, "Phase:    %s", v.Phase)
	return b.String()
}

// tokenExpiry reads the exp claim of a JWT without verifying it. The value
// is informational only.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
