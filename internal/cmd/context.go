package cmd

import (
	"github.com/spf13/cobra"
)

// CommandContext holds the persistent flags of one invocation. Commands
// read it instead of package globals so that tests can run several command
// trees side by side.
type CommandContext struct {
	// Backend selection
	Profile string
	APIURL  string
	Home    string

	// Output control
	Output  string
	NoColor bool

	// Diagnostics
	LogLevel  string
	LogFormat string
}

// NewCommandContext extracts command context from cobra.Command flags.
// Commands should call this in their RunE function to get their configuration:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cc, err := NewCommandContext(cmd)
//		if err != nil {
//			return err
//		}
//		// Use cc.Profile, cc.Output, etc.
//	}
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	profile, err := cmd.Flags().GetString("profile")
	if err != nil {
		return nil, err
	}

	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	home, err := cmd.Flags().GetString("home")
	if err != nil {
		return nil, err
	}

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	logFormat, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Profile:   profile,
		APIURL:    apiURL,
		Home:      home,
		Output:    output,
		NoColor:   noColor,
		LogLevel:  logLevel,
		LogFormat: logFormat,
	}, nil
}
