package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <book.epub>",
	Short: "Show package metadata and contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	book, err := openBook(args[0])
	if err != nil {
		return err
	}
	defer book.Close()

	meta := book.Metadata()
	fmt.Printf("Version:  %s\n", meta.Version)
	fmt.Printf("Title:    %s\n", strings.Join(meta.Titles, "; "))
	var authors []string
	for _, a := range meta.Authors {
		authors = append(authors, a.Name)
	}
	fmt.Printf("Author:   %s\n", strings.Join(authors, "; "))
	if len(meta.Language) > 0 {
		fmt.Printf("Language: %s\n", strings.Join(meta.Language, "; "))
	}

	if cover, err := book.Cover(); err == nil {
		fmt.Printf("Cover:    %s\n", cover.Path)
	}

	sections := []struct {
		label string
		ids   []string
	}{
		{"Text", book.Texts()},
		{"Images", book.Images()},
		{"Styles", book.Styles()},
		{"Fonts", book.Fonts()},
		{"Other", book.Others()},
	}
	for _, s := range sections {
		if len(s.ids) == 0 {
			continue
		}
		fmt.Printf("\n%s (%d):\n", s.label, len(s.ids))
		for _, id := range s.ids {
			entry, err := book.Entry(id)
			if err != nil {
				return err
			}
			fmt.Printf("  %-20s %s\n", id, entry.Path)
		}
	}

	fmt.Printf("\nSpine:\n")
	linear := make(map[string]bool)
	for _, id := range book.LinearSpineOrder() {
		linear[id] = true
	}
	for _, id := range book.SpineOrder() {
		marker := ""
		if !linear[id] {
			marker = "  (non-linear)"
		}
		fmt.Printf("  %s%s\n", id, marker)
	}
	return nil
}
