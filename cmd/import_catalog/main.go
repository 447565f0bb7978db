package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"library-circulation/config"
	"library-circulation/internal/logging"
	"library-circulation/library"
	"library-circulation/store"
)

// Columns, in order: id,title,author,isbn,year,copies[,category].
// A first row starting with "id" is treated as a header.
func main() {
	cfgPath := flag.String("config", "", "path to config file (default library.yaml)")
	file := flag.String("file", "catalog.csv", "CSV file to import")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel, os.Stderr)
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	manager, err := library.NewLibraryManager(ctx, library.Options{Store: st, Policy: cfg.Policy(), Logger: log})
	if err != nil {
		st.Close()
		fmt.Fprintf(os.Stderr, "Error loading library: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *file, err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("Importing books from %s...\n", *file)
	res := importCatalog(library.WithActor(ctx, "import"), manager, f)

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", res.imported)
	fmt.Printf("Skipped (already present): %d\n", res.skipped)
	fmt.Printf("Errors: %d\n", res.failed)

	if res.imported > 0 {
		fmt.Println("\nCatalog:")
		fmt.Printf("%-8s %-50s %-30s %s\n", "ID", "Title", "Author", "Copies")
		fmt.Println(strings.Repeat("-", 100))
		for _, book := range manager.ListBooks() {
			fmt.Printf("%-8s %-50s %-30s %d\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30), book.TotalCopies)
		}
	}
}

type result struct {
	imported, skipped, failed int
}

// importCatalog adds every row as a book, creating categories on first use.
// Bad rows are reported and skipped; the import keeps going.
func importCatalog(ctx context.Context, mgr *library.LibraryManager, r io.Reader) result {
	var res result
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			fmt.Printf("line %d: ERROR - %v\n", line, err)
			res.failed++
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "id") {
			continue
		}

		book, err := parseRow(rec)
		if err != nil {
			fmt.Printf("line %d: ERROR - %v\n", line, err)
			res.failed++
			continue
		}
		if book.CategoryID != "" {
			err := mgr.AddCategory(ctx, library.Category{ID: book.CategoryID, Name: book.CategoryID})
			if err != nil && !errors.Is(err, library.ErrDuplicateID) {
				fmt.Printf("line %d: ERROR - %v\n", line, err)
				res.failed++
				continue
			}
		}

		fmt.Printf("Importing: %s by %s... ", book.Title, book.Author)
		switch err := mgr.AddBook(ctx, book); {
		case errors.Is(err, library.ErrDuplicateID):
			fmt.Println("SKIPPED (exists)")
			res.skipped++
		case err != nil:
			fmt.Printf("ERROR - %v\n", err)
			res.failed++
		default:
			fmt.Printf("SUCCESS (ID: %s)\n", book.ID)
			res.imported++
		}
	}
	return res
}

func parseRow(rec []string) (library.Book, error) {
	if len(rec) < 6 {
		return library.Book{}, fmt.Errorf("want at least 6 columns, got %d", len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	year, err := strconv.Atoi(rec[4])
	if err != nil {
		return library.Book{}, fmt.Errorf("invalid year %q", rec[4])
	}
	copies, err := strconv.Atoi(rec[5])
	if err != nil {
		return library.Book{}, fmt.Errorf("invalid copies %q", rec[5])
	}
	b := library.Book{
		ID:              rec[0],
		Title:           rec[1],
		Author:          rec[2],
		ISBN:            rec[3],
		PublicationYear: year,
		TotalCopies:     copies,
	}
	if len(rec) > 6 {
		b.CategoryID = rec[6]
	}
	return b, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
