package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool

	logger = log.New(os.Stderr)

	rootCmd = &cobra.Command{
		Use:   "epubfile",
		Short: "Inspect and edit EPUB packages",
		Long: `epubfile inspects and edits EPUB packages.

Examples:
  epubfile info book.epub                 # Show package contents
  epubfile add book.epub notes.xhtml      # Add a file to the package
  epubfile rename book.epub ch1 intro     # Rename a file, repairing links
  epubfile normalize book.epub            # Move files into standard folders
  epubfile toc book.epub                  # Regenerate the table of contents
  epubfile merge -o all.epub a.epub b.epub`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
}

// Execute runs the root command, logging any error it returns.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		return err
	}
	return nil
}
