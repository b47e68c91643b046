package gen

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/jrwilson/substrate/internal/meta"
)

var (
	docDir  string
	section string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for every substrate command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		header := &doc.GenManHeader{
			Section: section,
			Manual:  "substrate Manual",
			Source:  "substrate " + meta.GetInfo().Version,
		}

		return generate(cmd, "man pages", func(root *cobra.Command) error {
			return doc.GenManTree(root, header, docDir)
		})
	},
}

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate markdown reference docs for every substrate command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(cmd, "markdown docs", func(root *cobra.Command) error {
			return doc.GenMarkdownTree(root, docDir)
		})
	},
}

// generate writes one kind of documentation for the whole command tree into
// docDir, creating it when missing.
func generate(cmd *cobra.Command, kind string, write func(root *cobra.Command) error) error {
	out := cmd.OutOrStdout()

	if err := ensureDir(out, docDir); err != nil {
		return err
	}

	root := cmd.Root()
	root.DisableAutoGenTag = true

	fmt.Fprintf(out, "Generating %s in %s\n", kind, docDir)
	if err := write(root); err != nil {
		return fmt.Errorf("Failed to generate %s in '%s': %w", kind, docDir, err)
	}

	return nil
}

func ensureDir(out io.Writer, dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		fmt.Fprintf(out, "Creating %s\n", dir)
		return os.MkdirAll(dir, 0750)

	case err != nil:
		return err

	case !info.IsDir():
		return fmt.Errorf("Failed to use '%s': not a directory", dir)
	}

	return nil
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&docDir, "dir", "man", "the directory to write into")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}

	ManPagesCmd.Flags().StringVar(&section, "section", "1", "the man page section")
}
