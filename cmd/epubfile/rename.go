package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameOutput string

var renameCmd = &cobra.Command{
	Use:   "rename <book.epub> <id> <newname> [<id> <newname>...]",
	Short: "Rename files, repairing every link to them",
	Long: `Rename changes the basename of one or more files. All internal links,
the table of contents, and the reading guide are updated to match. When
the new name has no extension the old one is kept.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(3)(cmd, args); err != nil {
			return err
		}
		if len(args)%2 != 1 {
			return fmt.Errorf("expected <id> <newname> pairs after the book path, got %d arguments", len(args)-1)
		}
		return nil
	},
	RunE: runRename,
}

func init() {
	renameCmd.Flags().StringVarP(&renameOutput, "output", "o", "", "write result to this path instead of overwriting")
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	names := make(map[string]string)
	for i := 1; i+1 < len(args); i += 2 {
		names[args[i]] = args[i+1]
	}
	if err := book.RenameFiles(names); err != nil {
		return err
	}
	for id, name := range names {
		logger.Info("renamed", "id", id, "name", name)
	}
	return saveBook(book, args[0], renameOutput)
}
