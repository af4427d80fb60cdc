package main

import (
	"github.com/voussoir/epubfile"
)

// openBook opens an EPUB and surfaces any structural warnings on the logger.
func openBook(name string) (*epubfile.Book, error) {
	book, err := epubfile.Open(name)
	if err != nil {
		return nil, err
	}
	for _, w := range book.Warnings() {
		logger.Warn("package issue", "file", name, "detail", w)
	}
	return book, nil
}

// saveBook writes the book to the --output path, or back over the input when
// no output path was given.
func saveBook(book *epubfile.Book, input, output string) error {
	if output == "" {
		output = input
	}
	if err := book.Save(output); err != nil {
		return err
	}
	logger.Info("saved", "path", output)
	return nil
}
