package main

import (
	"github.com/spf13/cobra"
)

var (
	tocOutput   string
	tocMaxLevel int
)

var tocCmd = &cobra.Command{
	Use:   "toc <book.epub>",
	Short: "Regenerate the table of contents from document headings",
	Args:  cobra.ExactArgs(1),
	RunE:  runTOC,
}

func init() {
	tocCmd.Flags().StringVarP(&tocOutput, "output", "o", "", "write result to this path instead of overwriting")
	tocCmd.Flags().IntVarP(&tocMaxLevel, "max-level", "l", 2, "deepest heading level to include (1-6)")
	rootCmd.AddCommand(tocCmd)
}

func runTOC(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.GenerateTOC(tocMaxLevel); err != nil {
		return err
	}
	return saveBook(book, args[0], tocOutput)
}
