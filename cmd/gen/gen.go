package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation",
	Long:  `Generate man pages or markdown reference docs for substrate`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
	RootCmd.AddCommand(MarkdownCmd)
}
