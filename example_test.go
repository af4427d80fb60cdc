package epubfile_test

import (
	"fmt"
	"log"

	"github.com/voussoir/epubfile"
)

func ExampleOpen() {
	book, err := epubfile.Open("testbook.epub")
	if err != nil {
		log.Fatal(err)
	}
	defer book.Close()

	for _, id := range book.Texts() {
		entry, _ := book.Entry(id)
		fmt.Println(entry.Path)
	}
}

func ExampleBook_AddFile() {
	book, err := epubfile.Open("testbook.epub")
	if err != nil {
		log.Fatal(err)
	}
	defer book.Close()

	content := []byte(`<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>Afterword</h1></body></html>`)
	id, err := book.AddFile("afterword.xhtml", content)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("added", id)

	if err := book.Save("testbook-edited.epub"); err != nil {
		log.Fatal(err)
	}
}

func ExampleBook_RenameFile() {
	book, err := epubfile.Open("testbook.epub")
	if err != nil {
		log.Fatal(err)
	}
	defer book.Close()

	// Every link to the old name is repaired across the package.
	if err := book.RenameFile("cover-image", "cover.jpg"); err != nil {
		log.Fatal(err)
	}
}

func ExampleMerge() {
	first, err := epubfile.Open("one.epub")
	if err != nil {
		log.Fatal(err)
	}
	defer first.Close()
	second, err := epubfile.Open("two.epub")
	if err != nil {
		log.Fatal(err)
	}
	defer second.Close()

	merged, err := epubfile.Merge([]*epubfile.Book{first, second}, epubfile.MergeOptions{
		HeaderPages: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := merged.Save("combined.epub"); err != nil {
		log.Fatal(err)
	}
}
