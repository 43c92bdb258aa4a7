package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/schoolctl/internal/version"
)

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		RunE: runVersion,
	}
	versionCmd.Flags().BoolP("verbose", "v", false, "show detailed version information")
	return versionCmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	info := version.GetInfo()

	if !textOutput(cc) {
		return renderOutput(cc, cmd.OutOrStdout(), info, nil)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		fmt.Fprintf(cmd.OutOrStdout(), "user agent: %s\n", version.UserAgent())
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "schoolctl %s\n", info.Short())
	return nil
}
