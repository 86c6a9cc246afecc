// File: cmd/version.go
package cmd

import "github.com/spf13/cobra"

// Version is the application version, set at build time with
// -ldflags "-X github.com/annonymususer90/my99exch/cmd.Version=1.0.0".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Printing the version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("my99exch %s\n", Version)
		},
	}
}
