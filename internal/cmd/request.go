package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/gateway"
	"github.com/felixgeelhaar/schoolctl/internal/school"
)

func newRequestCmd() *cobra.Command {
	requestCmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"req"},
		Short:   "Send a raw request through the gateway",
		Long: `Send any request to the backend with the stored token attached. Responses go
through the same handling as every other command: a 401 ends the session, other
failures are reported with the backend's message.

Examples:
  schoolctl request get /students --query classId=3
  schoolctl request post /announcements --data '{"title":"Sports day"}'
  schoolctl request post /students/import --file file=students.xlsx
  schoolctl request get /students/export --query format=xlsx --type blob --out students.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		requestCmd.AddCommand(newMethodCmd(method))
	}
	return requestCmd
}

func newMethodCmd(method string) *cobra.Command {
	c := &cobra.Command{
		Use:   strings.ToLower(method) + " <endpoint>",
		Short: "Send a " + method + " request",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *App, args []string) error {
			return runRequest(cmd, app, method, args[0])
		}),
	}

	flags := c.Flags()
	flags.StringArrayP("query", "q", nil, "query parameter key=value (repeatable)")
	flags.StringArrayP("header", "H", nil, "request header \"Name: value\" (repeatable)")
	flags.StringP("type", "t", "json", "response type: json, text, blob, bytes")
	flags.String("out", "", "write blob and byte responses to this file")
	flags.Bool("scoped", false, "add academicYearId of the selected academic year")
	if method != http.MethodGet && method != http.MethodDelete {
		flags.StringP("data", "d", "", "JSON body, or @file to read it from a file")
		flags.StringArrayP("form", "F", nil, "multipart field key=value (repeatable)")
		flags.StringArray("file", nil, "multipart file field=path (repeatable)")
	}
	return c
}

// requestOptions turns the flags into gateway options.
func requestOptions(cmd *cobra.Command, app *App) (gateway.Options, error) {
	var opts gateway.Options
	flags := cmd.Flags()

	queries, _ := flags.GetStringArray("query")
	if len(queries) > 0 {
		opts.Query = url.Values{}
	}
	for _, q := range queries {
		k, v, ok := strings.Cut(q, "=")
		if !ok || k == "" {
			return opts, usageError(fmt.Sprintf("--query %q must be key=value", q))
		}
		opts.Query.Add(k, v)
	}
	if scoped, _ := flags.GetBool("scoped"); scoped {
		if err := app.Session.RequireReady(); err != nil {
			return opts, err
		}
		if id := app.Session.AcademicYearQuery(); id != "" {
			if opts.Query == nil {
				opts.Query = url.Values{}
			}
			opts.Query.Set(school.AcademicYearParam, id)
		}
	}

	headers, _ := flags.GetStringArray("header")
	if len(headers) > 0 {
		opts.Header = http.Header{}
	}
	for _, h := range headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return opts, usageError(fmt.Sprintf("--header %q must be \"Name: value\"", h))
		}
		opts.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}

	if flags.Lookup("data") == nil {
		return opts, nil
	}
	data, _ := flags.GetString("data")
	fields, _ := flags.GetStringArray("form")
	files, _ := flags.GetStringArray("file")

	if data != "" && (len(fields) > 0 || len(files) > 0) {
		return opts, usageError("--data cannot be combined with --form or --file")
	}
	if data != "" {
		raw := []byte(data)
		if path, ok := strings.CutPrefix(data, "@"); ok {
			content, err := os.ReadFile(path)
			if err != nil {
				return opts, usageError(fmt.Sprintf("cannot read --data file: %v", err))
			}
			raw = bytes.TrimSpace(content)
		}
		if !json.Valid(raw) {
			return opts, usageError("--data is not valid JSON")
		}
		opts.Body = json.RawMessage(raw)
		return opts, nil
	}

	if len(fields) == 0 && len(files) == 0 {
		return opts, nil
	}
	form := gateway.NewFormData()
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return opts, usageError(fmt.Sprintf("--form %q must be key=value", f))
		}
		form.Set(k, v)
	}
	for _, f := range files {
		field, path, ok := strings.Cut(f, "=")
		if !ok || field == "" || path == "" {
			return opts, usageError(fmt.Sprintf("--file %q must be field=path", f))
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return opts, usageError(fmt.Sprintf("cannot read --file: %v", err))
		}
		form.AddFile(field, filepath.Base(path), bytes.NewReader(content))
	}
	opts.Body = form
	return opts, nil
}

// responseView is the structured rendering of a Result.
type responseView struct {
	Status      int             `json:"status" yaml:"status"`
	Empty       bool            `json:"empty,omitempty" yaml:"empty,omitempty"`
	ContentType string          `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	JSON        json.RawMessage `json:"body,omitempty" yaml:"-"`
	Body        any             `json:"-" yaml:"body,omitempty"`
	Text        string          `json:"text,omitempty" yaml:"text,omitempty"`
	Size        int             `json:"size,omitempty" yaml:"size,omitempty"`
	File        string          `json:"file,omitempty" yaml:"file,omitempty"`
}

func runRequest(cmd *cobra.Command, app *App, method, endpoint string) error {
	typeName, _ := cmd.Flags().GetString("type")
	rt, err := gateway.ParseResponseType(typeName)
	if err != nil {
		return usageError(err.Error())
	}
	opts, err := requestOptions(cmd, app)
	if err != nil {
		return err
	}
	opts.Method = method

	res, err := app.Gateway.Request(cmd.Context(), endpoint, opts, rt)
	if err != nil {
		return reported(err)
	}

	view := responseView{Status: res.Status, Empty: res.Empty, ContentType: res.Header.Get("Content-Type")}
	out, _ := cmd.Flags().GetString("out")

	switch {
	case res.Empty:
	case res.JSON != nil:
		view.JSON = res.JSON
		var decoded any
		if json.Unmarshal(res.JSON, &decoded) == nil {
			view.Body = decoded
		}
	case res.Blob != nil || res.Bytes != nil:
		data, name := res.Bytes, ""
		if res.Blob != nil {
			data, name = res.Blob.Data, res.Blob.Filename
		}
		view.Size = len(data)
		if out != "" {
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			view.File = out
		} else if name != "" {
			view.File = name
		}
	default:
		view.Text = res.Text
	}

	if !textOutput(app.Context) {
		return app.render(view, nil)
	}

	w := app.Out
	switch {
	case view.Empty:
		fmt.Fprintf(w, "%d (no content)\n", view.Status)
	case view.JSON != nil:
		var pretty bytes.Buffer
		if json.Indent(&pretty, view.JSON, "", "  ") != nil {
			pretty.Reset()
			pretty.Write(view.JSON)
		}
		fmt.Fprintln(w, pretty.String())
	case view.Size > 0 || view.File != "":
		if out != "" {
			fmt.Fprintf(w, "✓ Saved %d bytes to %s\n", view.Size, out)
		} else {
			fmt.Fprintf(w, "%d bytes (%s); use --out to save them\n", view.Size, view.ContentType)
		}
	default:
		fmt.Fprintln(w, view.Text)
	}
	return nil
}
