package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/steward/cmd/server"
)

var stewardCmd = &cobra.Command{
	Use:   "steward",
	Short: "Steward provisions tenant-scoped administrative boundaries in a directory service",
	Long: `Steward provisions administrative units in Microsoft Entra ID, together with
security groups bound to them and least-privilege application identities.
Every mutation of an existing unit is gated on the caller being a registered
scoped administrator of that unit.`,
}

func Execute() {
	if err := stewardCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	stewardCmd.AddCommand(server.ServerCmd)
}
