package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/config"
	"github.com/felixgeelhaar/schoolctl/internal/fetch"
	"github.com/felixgeelhaar/schoolctl/internal/gateway"
	"github.com/felixgeelhaar/schoolctl/internal/log"
	"github.com/felixgeelhaar/schoolctl/internal/navigate"
	"github.com/felixgeelhaar/schoolctl/internal/notify"
	"github.com/felixgeelhaar/schoolctl/internal/school"
	"github.com/felixgeelhaar/schoolctl/internal/session"
	"github.com/felixgeelhaar/schoolctl/internal/storage"
	"github.com/felixgeelhaar/schoolctl/internal/tui"
	"github.com/felixgeelhaar/schoolctl/internal/ux"
	"github.com/felixgeelhaar/schoolctl/internal/version"
)

// App wires one invocation: profile, storage, gateway, session and the
// resource clients all share the same storage and navigator.
type App struct {
	Context *CommandContext
	Loader  *config.Loader
	Profile *config.Profile
	Logger  *log.Logger

	Storage   storage.Storage
	Notifier  notify.Notifier
	Navigator *navigate.Printer
	Gateway   *gateway.Client
	Session   *session.Manager
	Cache     *fetch.Cache
	School    *school.Client

	Out io.Writer
	Err io.Writer

	closers []func() error
}

// newApp builds the App for cmd and restores the persisted session without
// touching the network.
func newApp(cmd *cobra.Command) (*App, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var loaderOpts []config.LoaderOption
	if cc.Home != "" {
		loaderOpts = append(loaderOpts, config.WithDir(cc.Home))
	}
	loader := config.NewLoader(loaderOpts...)
	profile, err := loader.Load(cc.Profile)
	if err != nil {
		return nil, err
	}
	if cc.APIURL != "" {
		profile.APIURL = cc.APIURL
	}
	if cc.LogLevel != "" {
		profile.Log.Level = cc.LogLevel
	}
	if cc.LogFormat != "" {
		profile.Log.Format = cc.LogFormat
	}

	logCfg, err := profile.LogConfig()
	if err != nil {
		return nil, err
	}
	logCfg.Output = log.NewOutput(errOut)
	logCfg.ServiceVersion = version.Version
	logger := log.New(logCfg).With("profile", profile.Name)
	log.SetDefaultLogger(logger)

	app := &App{
		Context: cc,
		Loader:  loader,
		Profile: profile,
		Logger:  logger,
		Out:     out,
		Err:     errOut,
	}

	st, closer, err := openStorage(ctx, profile, logger)
	if err != nil {
		return nil, err
	}
	app.Storage = st
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	styles := tui.DefaultStyles()
	terminal := errOut == io.Writer(os.Stderr) && tui.StderrIsTerminal()
	if cc.NoColor || !terminal || os.Getenv("NO_COLOR") != "" {
		styles = tui.PlainStyles()
	}
	app.Notifier = notify.NewTerminal(errOut, styles, terminal)
	app.Navigator = navigate.NewPrinter(errOut)

	gwOpts := []gateway.Option{
		gateway.WithLogger(logger.With("component", "gateway")),
	}
	if profile.Timeout > 0 {
		gwOpts = append(gwOpts, gateway.WithTimeout(profile.Timeout))
	}
	if profile.OpenAPI != "" {
		contract, err := gateway.LoadContract(ctx, profile.OpenAPI, profile.APIURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		gwOpts = append(gwOpts, gateway.WithContract(contract))
	}
	app.Gateway = gateway.New(profile.APIURL, st, app.Notifier, app.Navigator, gwOpts...)

	store := session.NewStore()
	app.Cache = fetch.New(fetch.WithTTL(profile.Cache.TTL), fetch.WithLogger(logger))
	app.Navigator.OnReset(store.Reset)
	app.Navigator.OnReset(app.Cache.Reset)

	app.Session = session.NewManager(store, app.Gateway, st, app.Notifier, app.Navigator,
		session.WithManagerLogger(logger.With("component", "session")))
	app.Session.Load(ctx)
	app.School = school.New(app.Gateway, app.Session, app.Cache)

	return app, nil
}

func openStorage(ctx context.Context, profile *config.Profile, logger *log.Logger) (storage.Storage, func() error, error) {
	switch profile.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), nil, nil
	case config.DriverRedis:
		r, err := storage.OpenRedis(ctx, profile.Storage.RedisURL, profile.Name, profile.Storage.TTL)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		opts := []storage.FileOption{storage.WithFileLogger(logger)}
		if profile.Storage.Encrypted() {
			opts = append(opts, storage.WithPassphrase(profile.Storage.Passphrase))
		}
		return storage.NewFile(profile.Storage.Path, opts...), nil, nil
	}
}

// Close records the last destination in the profile and releases storage.
func (a *App) Close() {
	if last := a.Navigator.Last(); last != "" && last != a.Profile.LastPath {
		if err := a.Loader.Save(a.Profile.Name, func(p *config.Profile) { p.LastPath = last }); err != nil {
			a.Logger.Warn("failed to record last destination", "error", err.Error())
		}
	}
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.Logger.Warn("failed to close storage", "error", err.Error())
		}
	}
}

// render writes data in the selected output format. In text mode a table
// is printed when one is given.
func (a *App) render(data any, table ux.Tabular) error {
	return renderOutput(a.Context, a.Out, data, table)
}

// printf writes a text-mode line; structured formats stay machine readable.
func (a *App) printf(format string, args ...any) {
	if textOutput(a.Context) {
		fmt.Fprintf(a.Out, format, args...)
	}
}

func renderOutput(cc *CommandContext, w io.Writer, data any, table ux.Tabular) error {
	formatter, err := ux.NewFormatter(cc.Output, &ux.FormatterOptions{
		Writer:  w,
		NoColor: cc.NoColor,
	})
	if err != nil {
		return usageError(err.Error(), "Valid values: text, json, yaml")
	}
	if table != nil && textOutput(cc) {
		return formatter.Format(table)
	}
	return formatter.Format(data)
}

func textOutput(cc *CommandContext) bool {
	return cc.Output == "" || cc.Output == "text"
}

// withApp adapts a RunE that needs the wired App.
func withApp(run func(cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(cmd, app, args)
	}
}
