package library

import (
	"errors"
	"testing"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
func rolePtr(r Role) *Role    { return &r }
func boolPtr(b bool) *bool    { return &b }

func TestAddBookValidation(t *testing.T) {
	c := NewCatalog()
	if err := c.AddCategory(Category{ID: "C1", Name: "Fiction"}); err != nil {
		t.Fatalf("add category: %v", err)
	}
	tests := []struct {
		name string
		book Book
		want error
	}{
		{"ok", Book{ID: "B1", Title: "Dune", TotalCopies: 3, CategoryID: "C1"}, nil},
		{"available defaults to total", Book{ID: "B2", Title: "Emma", TotalCopies: 2, AvailableCopies: 2}, nil},
		{"duplicate", Book{ID: "B1", Title: "Again", TotalCopies: 1}, ErrDuplicateID},
		{"missing title", Book{ID: "B3", TotalCopies: 1}, ErrValidation},
		{"negative total", Book{ID: "B4", Title: "Neg", TotalCopies: -1}, ErrValidation},
		{"available mismatch", Book{ID: "B5", Title: "Odd", TotalCopies: 3, AvailableCopies: 1}, ErrValidation},
		{"unknown category", Book{ID: "B6", Title: "Lost", TotalCopies: 1, CategoryID: "C9"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.AddBook(tt.book)
			if tt.want == nil && err != nil {
				t.Fatalf("add: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
	b, _ := c.Book("B1")
	if b.AvailableCopies != 3 {
		t.Fatalf("available: want 3, got %d", b.AvailableCopies)
	}
	checkCopies(t, c)
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	f := newFixture(t)
	before, _ := f.catalog.Book("B1")
	loan := Loan{ID: "L1", UserID: "U1", BookID: "B1"}
	if err := f.catalog.BorrowCopy("B1", loan); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	mid, _ := f.catalog.Book("B1")
	if mid.AvailableCopies != before.AvailableCopies-1 || mid.ActiveLoans["L1"] != "U1" {
		t.Fatalf("borrow did not take a copy: %+v", mid)
	}
	checkCopies(t, f.catalog)
	if !f.catalog.ReturnCopy("B1", "L1") {
		t.Fatalf("return copy failed")
	}
	after, _ := f.catalog.Book("B1")
	if after.AvailableCopies != before.AvailableCopies || len(after.ActiveLoans) != 0 {
		t.Fatalf("round trip: want %d available, got %d", before.AvailableCopies, after.AvailableCopies)
	}
	if f.catalog.ReturnCopy("B1", "L1") {
		t.Fatalf("second return should report false")
	}
}

func TestBorrowCopyErrors(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.BorrowCopy("B9", Loan{ID: "L1", BookID: "B9"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown book: got %v", err)
	}
	if err := f.catalog.BorrowCopy("B1", Loan{ID: "L1", BookID: "B2"}); !errors.Is(err, ErrMismatch) {
		t.Fatalf("mismatch: got %v", err)
	}
	if err := f.catalog.BorrowCopy("B2", Loan{ID: "L1", UserID: "U1", BookID: "B2"}); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.catalog.BorrowCopy("B2", Loan{ID: "L1", UserID: "U1", BookID: "B2"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("same loan twice: got %v", err)
	}
	if err := f.catalog.BorrowCopy("B2", Loan{ID: "L2", UserID: "U2", BookID: "B2"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("no copies: got %v", err)
	}
	checkCopies(t, f.catalog)
}

func TestUpdateBookCopies(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.BorrowCopy("B1", Loan{ID: "L1", UserID: "U1", BookID: "B1"}); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	tests := []struct {
		name      string
		update    BookUpdate
		want      error
		wantTotal int
		wantAvail int
	}{
		{"raise total", BookUpdate{TotalCopies: intPtr(5)}, nil, 5, 4},
		{"set available", BookUpdate{AvailableCopies: intPtr(1)}, nil, 2, 1},
		{"both consistent", BookUpdate{TotalCopies: intPtr(3), AvailableCopies: intPtr(2)}, nil, 3, 2},
		{"below lent", BookUpdate{TotalCopies: intPtr(0)}, ErrValidation, 3, 2},
		{"inconsistent pair", BookUpdate{TotalCopies: intPtr(4), AvailableCopies: intPtr(4)}, ErrValidation, 3, 2},
		{"negative", BookUpdate{AvailableCopies: intPtr(-1)}, ErrValidation, 3, 2},
		{"empty title", BookUpdate{Title: strPtr("  ")}, ErrValidation, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.catalog.UpdateBook("B1", tt.update)
			if tt.want == nil && err != nil {
				t.Fatalf("update: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			b, _ := f.catalog.Book("B1")
			if b.TotalCopies != tt.wantTotal || b.AvailableCopies != tt.wantAvail {
				t.Fatalf("copies: want %d/%d, got %d/%d", tt.wantTotal, tt.wantAvail, b.TotalCopies, b.AvailableCopies)
			}
			checkCopies(t, f.catalog)
		})
	}
}

func TestRemoveBook(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.BorrowCopy("B2", Loan{ID: "L1", UserID: "U1", BookID: "B2"}); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.catalog.RemoveBook("B2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("remove lent book: got %v", err)
	}
	if err := f.catalog.RemoveBook("B1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.catalog.Book("B1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removed book still present: %v", err)
	}
	if n := len(f.catalog.Books()); n != 1 {
		t.Fatalf("want 1 book left, got %d", n)
	}
}

func TestSearchBooks(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		q    string
		want int
	}{
		{"dune", 1},
		{"AUSTEN", 1},
		{"978", 2},
		{"tolkien", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			if got := len(f.catalog.Search(tt.q)); got != tt.want {
				t.Fatalf("search %q: want %d, got %d", tt.q, tt.want, got)
			}
		})
	}
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	f := newFixture(t)
	f.catalog.BorrowCopy("B1", Loan{ID: "L1", UserID: "U1", BookID: "B1"})
	b, _ := f.catalog.Book("B1")
	delete(b.ActiveLoans, "L1")
	b.AvailableCopies = 99
	again, _ := f.catalog.Book("B1")
	if again.AvailableCopies != 1 || len(again.ActiveLoans) != 1 {
		t.Fatalf("snapshot mutation leaked into catalog: %+v", again)
	}
}

func TestReservations(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.Reserve("B1", "U2"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.catalog.Reserve("B1", "U1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	b, _ := f.catalog.Book("B1")
	if got := b.Reservers(); len(got) != 2 || got[0] != "U1" {
		t.Fatalf("reservers: %v", got)
	}
	if err := f.catalog.Unreserve("B1", "U1"); err != nil {
		t.Fatalf("unreserve: %v", err)
	}
	if err := f.catalog.Reserve("B9", "U1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reserve unknown book: got %v", err)
	}
	// Reservations never block lending.
	if err := f.catalog.BorrowCopy("B1", Loan{ID: "L1", UserID: "U1", BookID: "B1"}); err != nil {
		t.Fatalf("borrow reserved book: %v", err)
	}
}

func TestCategories(t *testing.T) {
	c := NewCatalog()
	if err := c.AddCategory(Category{ID: "C1", Name: "Fiction"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddCategory(Category{ID: "C1", Name: "Again"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate: got %v", err)
	}
	c.AddBook(Book{ID: "B1", Title: "Dune", TotalCopies: 1, CategoryID: "C1"})
	c.AddBook(Book{ID: "B2", Title: "Atlas", TotalCopies: 1})
	books, err := c.BooksInCategory("C1")
	if err != nil || len(books) != 1 || books[0].ID != "B1" {
		t.Fatalf("books in category: %v %v", books, err)
	}
	if _, err := c.BooksInCategory("C2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown category: got %v", err)
	}
}
