package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrwilson/substrate/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "substrate",
	Short: "An RFB (VNC) server and client",
	Long: `An RFB (VNC) server and client

substrate serves a synthetic desktop over RFB 3.3, 3.7 and 3.8 on TCP and
WebSocket, and can connect to any RFB server to take a snapshot of its
framebuffer.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(ConnectCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
