package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var setfontOutput string

var setfontCmd = &cobra.Command{
	Use:   "setfont <book.epub> <font-file>",
	Short: "Apply a font to the whole book",
	Long: `Setfont embeds a font file and forces its family onto every element
through an injected stylesheet. Running it again with a different font
replaces the stylesheet.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetfont,
}

func init() {
	setfontCmd.Flags().StringVarP(&setfontOutput, "output", "o", "", "write result to this path instead of overwriting")
	rootCmd.AddCommand(setfontCmd)
}

func runSetfont(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if err := book.SetFont(filepath.Base(args[1]), data); err != nil {
		return err
	}
	return saveBook(book, args[0], setfontOutput)
}
