package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/schoolctl/internal/config"
	"github.com/felixgeelhaar/schoolctl/internal/ux"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit schoolctl configuration",
		Long: `Manage profiles stored in ~/.schoolctl/config.yaml

Each profile names one backend and says where its session is kept:
  • api_url and timeout of the backend
  • storage driver (file, memory or redis) and its settings
  • log level and format
  • read cache lifetime

Values resolve in this order: built-in defaults, the profile entry, a .env
file in the working directory, SCHOOLCTL_* environment variables, then flags.

Examples:
  # View the resolved profile
  schoolctl config view

  # Point the default profile at another backend
  schoolctl config set api_url https://school.example.com/api

  # Keep the session in redis for the staging profile
  schoolctl --profile staging config set storage.driver redis
  schoolctl --profile staging config set storage.redis_url redis://localhost:6379/0

  # Switch profiles
  schoolctl config use staging
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Display the resolved profile",
		RunE:  runConfigView,
	}

	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		Long:  `Open the configuration file in your default editor (from $EDITOR environment variable).`,
		RunE:  runConfigEdit,
	}

	getCmd := &cobra.Command{
		Use:       "get <key>",
		Short:     "Get a configuration value",
		Long:      `Print one value of the resolved profile using dot notation (e.g. storage.driver).`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys,
		RunE:      runConfigGet,
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Store one value in the selected profile using dot notation (e.g. log.level debug).`,
		Args:  cobra.ExactArgs(2),
		RunE:  runConfigSet,
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, loader, err := configLoader(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
			return nil
		},
	}

	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "List profiles",
		RunE:  runConfigProfiles,
	}

	useCmd := &cobra.Command{
		Use:   "use <profile>",
		Short: "Make a profile the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, loader, err := configLoader(cmd)
			if err != nil {
				return err
			}
			if err := loader.Use(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Using profile %s\n", args[0])
			return nil
		},
	}

	configCmd.AddCommand(viewCmd, editCmd, getCmd, setCmd, pathCmd, profilesCmd, useCmd)
	return configCmd
}

// configLoader builds the loader without opening the session.
func configLoader(cmd *cobra.Command) (*CommandContext, *config.Loader, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	var opts []config.LoaderOption
	if cc.Home != "" {
		opts = append(opts, config.WithDir(cc.Home))
	}
	return cc, config.NewLoader(opts...), nil
}

// profileName is the profile the command targets.
func profileName(cc *CommandContext, loader *config.Loader) (string, error) {
	if cc.Profile != "" {
		return cc.Profile, nil
	}
	if v := os.Getenv(config.EnvProfile); v != "" {
		return v, nil
	}
	return loader.Current()
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cc, loader, err := configLoader(cmd)
	if err != nil {
		return err
	}
	profile, err := loader.Load(cc.Profile)
	if err != nil {
		return err
	}
	if cc.APIURL != "" {
		profile.APIURL = cc.APIURL
	}

	if !textOutput(cc) {
		return renderOutput(cc, cmd.OutOrStdout(), profile, nil)
	}

	data, err := yaml.Marshal(profile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", loader.Path())
	fmt.Fprintf(out, "Profile: %s\n\n", profile.Name)
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	cc, loader, err := configLoader(cmd)
	if err != nil {
		return err
	}

	// Make sure the file exists so the editor opens something useful.
	name, err := profileName(cc, loader)
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	if _, statErr := os.Stat(loader.Path()); os.IsNotExist(statErr) {
		if err := loader.Save(name, func(*config.Profile) {}); err != nil {
			return ux.FormatError(err, "creating configuration")
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.CommandContext(cmd.Context(), editor, loader.Path())
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	if _, err := loader.Load(cc.Profile); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Configuration may contain errors: %v\n", err)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration updated successfully")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc, loader, err := configLoader(cmd)
	if err != nil {
		return err
	}
	profile, err := loader.Load(cc.Profile)
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}
	value, err := profile.Field(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc, loader, err := configLoader(cmd)
	if err != nil {
		return err
	}
	name, err := profileName(cc, loader)
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}

	if err := loader.Set(name, args[0], args[1]); err != nil {
		return err
	}
	// Report a stored value that leaves the profile unresolvable.
	if _, err := loader.Load(name); err != nil {
		return ux.FormatError(err, "validating configuration")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s (profile %s)\n", args[0], args[1], name)
	return nil
}

type profileList struct {
	Current  string   `json:"current" yaml:"current"`
	Profiles []string `json:"profiles" yaml:"profiles"`
}

func (l profileList) Header() []string { return []string{"", "PROFILE"} }

func (l profileList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Profiles))
	for _, name := range l.Profiles {
		marker := ""
		if name == l.Current {
			marker = "*"
		}
		rows = append(rows, []string{marker, name})
	}
	return rows
}

func runConfigProfiles(cmd *cobra.Command, args []string) error {
	cc, loader, err := configLoader(cmd)
	if err != nil {
		return err
	}
	names, err := loader.Profiles()
	if err != nil {
		return err
	}
	current, err := profileName(cc, loader)
	if err != nil {
		return err
	}
	list := profileList{Current: current, Profiles: names}
	return renderOutput(cc, cmd.OutOrStdout(), list, list)
}
