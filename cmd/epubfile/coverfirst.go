package main

import (
	"github.com/spf13/cobra"
)

var coverFirstOutput string

var coverFirstCmd = &cobra.Command{
	Use:   "covercomesfirst <book.epub>",
	Short: "Rename images so the cover sorts first",
	Long: `Covercomesfirst renames image files so the cover image sorts first
alphabetically. Some readers thumbnail the first image in the archive
regardless of the declared cover.`,
	Args: cobra.ExactArgs(1),
	RunE: runCoverFirst,
}

func init() {
	coverFirstCmd.Flags().StringVarP(&coverFirstOutput, "output", "o", "", "write result to this path instead of overwriting")
	rootCmd.AddCommand(coverFirstCmd)
}

func runCoverFirst(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.CoverComesFirst(); err != nil {
		return err
	}
	return saveBook(book, args[0], coverFirstOutput)
}
