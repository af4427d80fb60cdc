package main

import (
	"github.com/spf13/cobra"
)

var normalizeOutput string

var normalizeCmd = &cobra.Command{
	Use:   "normalize <book.epub>",
	Short: "Move files into standard folders",
	Long: `Normalize moves every file into the conventional folder for its media
type (Text, Images, Styles, Fonts) and repairs all links to match.`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeOutput, "output", "o", "", "write result to this path instead of overwriting")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.Normalize(); err != nil {
		return err
	}
	return saveBook(book, args[0], normalizeOutput)
}
