package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/voussoir/epubfile"
)

var (
	mergeOutput  string
	mergeHeaders bool
	mergeDemote  bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge -o <out.epub> <book.epub>...",
	Short: "Combine several books into one",
	Long: `Merge copies the contents of each book into a new package, concatenating
their reading orders. File names are prefixed per source book so they
never collide, and all internal links are repaired.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "path for the merged book (required)")
	mergeCmd.Flags().BoolVar(&mergeHeaders, "header-pages", false, "insert a title page before each book")
	mergeCmd.Flags().BoolVar(&mergeDemote, "demote-headings", false, "shift headings down one level in merged documents")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	if mergeOutput == "" {
		return errors.New("merge requires --output")
	}

	var books []*epubfile.Book
	defer func() {
		for _, b := range books {
			b.Close()
		}
	}()
	for _, name := range args {
		book, err := openBook(name)
		if err != nil {
			return err
		}
		books = append(books, book)
	}

	merged, err := epubfile.Merge(books, epubfile.MergeOptions{
		HeaderPages:    mergeHeaders,
		DemoteHeadings: mergeDemote,
	})
	if err != nil {
		return err
	}
	if err := merged.Save(mergeOutput); err != nil {
		return err
	}
	logger.Info("merged", "books", len(books), "output", mergeOutput)
	return nil
}
