package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/school"
	"github.com/felixgeelhaar/schoolctl/internal/tui"
)

func addListFlags(c *cobra.Command, withClass bool) {
	c.Flags().Int("page", 0, "page number (1-based)")
	c.Flags().Int("limit", 0, "items per page")
	c.Flags().String("search", "", "search text")
	if withClass {
		c.Flags().Int("class", 0, "class id")
	}
}

func listParams(cmd *cobra.Command) (school.ListParams, error) {
	var p school.ListParams
	p.Page, _ = cmd.Flags().GetInt("page")
	p.Limit, _ = cmd.Flags().GetInt("limit")
	p.Search, _ = cmd.Flags().GetString("search")
	if cmd.Flags().Lookup("class") != nil {
		p.ClassID, _ = cmd.Flags().GetInt("class")
	}
	if p.Page < 0 || p.Limit < 0 || p.ClassID < 0 {
		return p, usageError("--page, --limit and --class must not be negative")
	}
	return p, nil
}

// footer prints the pagination line under a table.
func footer[T any](app *App, page *school.Page[T]) {
	m := page.Meta
	if m.TotalPages > 1 {
		app.printf("Page %d of %d (%d total)\n", m.Page, m.TotalPages, m.Total)
	}
}

func positiveID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, usageError(fmt.Sprintf("%s must be a positive number, got %q", what, arg))
	}
	return id, nil
}

// Students

type studentTable []school.Student

func (t studentTable) Header() []string {
	return []string{"ID", "NAME", "MATRICULE", "CLASS", "STATUS"}
}

func (t studentTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{strconv.Itoa(s.ID), s.Name, s.Matricule, s.DisplayClass(), s.Status})
	}
	return rows
}

func newStudentsCmd() *cobra.Command {
	studentsCmd := &cobra.Command{
		Use:   "students",
		Short: "List and manage students of the selected academic year",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List students",
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			p, err := listParams(cmd)
			if err != nil {
				return err
			}
			page, err := app.School.Students(cmd.Context(), p)
			if err != nil {
				return reported(err)
			}
			if err := app.render(page, studentTable(page.Items)); err != nil {
				return err
			}
			footer(app, page)
			return nil
		}),
	}
	addListFlags(listCmd, true)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			id, err := positiveID(args[0], "student id")
			if err != nil {
				return err
			}

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				if !tui.ShouldPrompt() {
					return usageError("deleting needs confirmation", "Pass --yes to confirm")
				}
				ok, err := tui.PromptForConfirmation(fmt.Sprintf("Delete student %d?", id), false)
				if err != nil {
					return err
				}
				if !ok {
					app.Notifier.Info("Nothing deleted")
					return nil
				}
			}

			if err := app.School.DeleteStudent(cmd.Context(), id); err != nil {
				return reported(err)
			}
			app.Notifier.Success(fmt.Sprintf("Student %d deleted", id))
			return nil
		}),
	}
	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	studentsCmd.AddCommand(listCmd, deleteCmd)
	return studentsCmd
}

// Fees

type feeTable []school.Fee

func (t feeTable) Header() []string {
	return []string{"ID", "STUDENT", "AMOUNT", "PAID", "BALANCE", "STATUS", "DUE"}
}

func (t feeTable) Rows() [][]string {
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	rows := make([][]string, 0, len(t))
	for _, f := range t {
		rows = append(rows, []string{
			strconv.Itoa(f.ID), f.StudentName, money(f.Amount), money(f.AmountPaid),
			money(f.Balance()), f.Status, f.DueDate,
		})
	}
	return rows
}

func newFeesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "fees",
		Short: "List fees of the selected academic year",
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			p, err := listParams(cmd)
			if err != nil {
				return err
			}
			page, err := app.School.Fees(cmd.Context(), p)
			if err != nil {
				return reported(err)
			}
			if err := app.render(page, feeTable(page.Items)); err != nil {
				return err
			}
			footer(app, page)
			return nil
		}),
	}
	addListFlags(c, true)
	return c
}

// Personnel

type personnelTable []school.Personnel

func (t personnelTable) Header() []string {
	return []string{"ID", "NAME", "EMAIL", "MATRICULE", "ROLES"}
}

func (t personnelTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{strconv.Itoa(p.ID), p.Name, p.Email, p.Matricule, strings.Join(p.Roles, ", ")})
	}
	return rows
}

func newPersonnelCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "personnel",
		Aliases: []string{"staff"},
		Short:   "List staff members",
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			p, err := listParams(cmd)
			if err != nil {
				return err
			}
			page, err := app.School.Personnel(cmd.Context(), p)
			if err != nil {
				return reported(err)
			}
			if err := app.render(page, personnelTable(page.Items)); err != nil {
				return err
			}
			footer(app, page)
			return nil
		}),
	}
	addListFlags(c, false)
	return c
}

// Announcements

type announcementTable []school.Announcement

func (t announcementTable) Header() []string {
	return []string{"ID", "TITLE", "AUDIENCE", "PUBLISHED"}
}

func (t announcementTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, a := range t {
		published := a.PublishedAt
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			published = ts.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{strconv.Itoa(a.ID), a.Title, a.Audience, published})
	}
	return rows
}

func newAnnouncementsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "announcements",
		Short: "List announcements",
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			p, err := listParams(cmd)
			if err != nil {
				return err
			}
			page, err := app.School.Announcements(cmd.Context(), p)
			if err != nil {
				return reported(err)
			}
			if err := app.render(page, announcementTable(page.Items)); err != nil {
				return err
			}
			footer(app, page)
			return nil
		}),
	}
	addListFlags(c, false)
	return c
}

// Timetables

type timetableTable []school.TimetableSlot

func (t timetableTable) Header() []string {
	return []string{"DAY", "START", "END", "SUBJECT", "TEACHER", "ROOM"}
}

func (t timetableTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{s.Day, s.StartTime, s.EndTime, s.Subject, s.Teacher, s.Room})
	}
	return rows
}

func newTimetableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timetable <class-id>",
		Short: "Show the timetable of a class",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			classID, err := positiveID(args[0], "class id")
			if err != nil {
				return err
			}
			slots, err := app.School.Timetable(cmd.Context(), classID)
			if err != nil {
				return reported(err)
			}
			return app.render(slots, timetableTable(slots))
		}),
	}
}

// Exports

type exportView struct {
	Kind        string                `json:"kind" yaml:"kind"`
	File        string                `json:"file" yaml:"file"`
	ContentType string                `json:"content_type" yaml:"content_type"`
	Size        int                   `json:"size" yaml:"size"`
	Sheets      []school.SheetSummary `json:"sheets,omitempty" yaml:"sheets,omitempty"`
}

func (v exportView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Saved %s export to %s (%d bytes)", v.Kind, v.File, v.Size)
	for _, s := range v.Sheets {
		fmt.Fprintf(&b, "\n  sheet %q: %d rows", s.Name, s.Rows)
		if len(s.Header) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(s.Header, ", "))
		}
	}
	return b.String()
}

func newExportCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "export <kind>",
		Short: "Download an export (students, fees, personnel, ...)",
		Long: `Download an export of the selected academic year and save it to --dir.
The file name sent by the backend is used when there is one. Spreadsheet
exports are opened afterwards to report their sheets and row counts.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			if err := app.Session.RequireReady(); err != nil {
				return err
			}
			kind := args[0]
			format, _ := cmd.Flags().GetString("format")
			dir, _ := cmd.Flags().GetString("dir")
			switch format {
			case "xlsx", "csv", "pdf":
			default:
				return usageError(fmt.Sprintf("unsupported --format %q", format), "Valid values: xlsx, csv, pdf")
			}
			p, err := listParams(cmd)
			if err != nil {
				return err
			}

			done := app.Notifier.Loading(fmt.Sprintf("Exporting %s...", kind))
			blob, err := app.School.Export(cmd.Context(), kind, format, p)
			done()
			if err != nil {
				return reported(err)
			}
			if blob.Size() == 0 {
				app.Notifier.Info("The export is empty")
				return nil
			}

			path, err := school.SaveExport(blob, dir, kind+"."+format)
			if err != nil {
				return err
			}
			view := exportView{Kind: kind, File: path, ContentType: blob.ContentType, Size: blob.Size()}
			if school.IsSpreadsheet(blob) {
				sheets, err := school.SummarizeWorkbook(blob.Data)
				if err != nil {
					app.Logger.Warn("could not read exported workbook", "file", path, "error", err.Error())
				}
				view.Sheets = sheets
			}
			return app.render(view, nil)
		}),
	}
	c.Flags().StringP("format", "f", "xlsx", "export format: xlsx, csv, pdf")
	c.Flags().String("dir", ".", "directory to save the export in")
	addListFlags(c, true)
	return c
}
