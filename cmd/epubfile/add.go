package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var addOutput string

var addCmd = &cobra.Command{
	Use:   "add <book.epub> <file>...",
	Short: "Add files to the package",
	Long: `Add copies local files into the package. Each file is placed in the
folder matching its media type, and text documents are appended to the
reading order.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addOutput, "output", "o", "", "write result to this path instead of overwriting")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	for _, name := range args[1:] {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		id, err := book.AddFile(filepath.Base(name), data)
		if err != nil {
			return err
		}
		logger.Info("added", "id", id, "source", name)
	}
	return saveBook(book, args[0], addOutput)
}
