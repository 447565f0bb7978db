package library

import (
	"fmt"
	"strings"
)

// Catalog owns book records and their copy counts.
//
// Catalog is not safe for concurrent use; LibraryManager serializes access.
type Catalog struct {
	books      map[string]*Book
	order      []string
	categories map[string]*Category
	catOrder   []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		books:      make(map[string]*Book),
		categories: make(map[string]*Category),
	}
}

// ------------------ Categories ------------------

// AddCategory registers a category under a caller-assigned ID.
func (c *Catalog) AddCategory(cat Category) error {
	cat.ID = strings.TrimSpace(cat.ID)
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.ID == "" || cat.Name == "" {
		return fmt.Errorf("%w: category id and name are required", ErrValidation)
	}
	if _, ok := c.categories[cat.ID]; ok {
		return fmt.Errorf("%w: category %s", ErrDuplicateID, cat.ID)
	}
	c.categories[cat.ID] = &cat
	c.catOrder = append(c.catOrder, cat.ID)
	return nil
}

// Category fetches a single category.
func (c *Catalog) Category(id string) (Category, error) {
	cat, ok := c.categories[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	return *cat, nil
}

// Categories returns all categories in insertion order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, 0, len(c.catOrder))
	for _, id := range c.catOrder {
		out = append(out, *c.categories[id])
	}
	return out
}

// BooksInCategory lists the books filed under a category.
func (c *Catalog) BooksInCategory(id string) ([]Book, error) {
	if _, ok := c.categories[id]; !ok {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	return c.filter(func(b *Book) bool { return b.CategoryID == id }), nil
}

// ------------------ Books ------------------

// AddBook registers a new title. A fresh book has no loans against it, so
// AvailableCopies is set to TotalCopies; any other non-zero value is rejected.
func (c *Catalog) AddBook(b Book) error {
	b.ID = strings.TrimSpace(b.ID)
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	if b.ID == "" || b.Title == "" {
		return fmt.Errorf("%w: book id and title are required", ErrValidation)
	}
	if _, ok := c.books[b.ID]; ok {
		return fmt.Errorf("%w: book %s", ErrDuplicateID, b.ID)
	}
	if b.TotalCopies < 0 || b.AvailableCopies < 0 {
		return fmt.Errorf("%w: copy counts cannot be negative", ErrValidation)
	}
	if b.AvailableCopies != 0 && b.AvailableCopies != b.TotalCopies {
		return fmt.Errorf("%w: a new book must have all %d copies available", ErrValidation, b.TotalCopies)
	}
	if b.PublicationYear < 0 {
		return fmt.Errorf("%w: invalid publication year %d", ErrValidation, b.PublicationYear)
	}
	if b.CategoryID != "" {
		if _, ok := c.categories[b.CategoryID]; !ok {
			return fmt.Errorf("%w: category %s", ErrNotFound, b.CategoryID)
		}
	}
	b.AvailableCopies = b.TotalCopies
	b.ActiveLoans = make(map[string]string)
	b.Reservations = nil
	c.books[b.ID] = &b
	c.order = append(c.order, b.ID)
	return nil
}

// UpdateBook applies an administrative edit. Copy counts must stay
// consistent with the loans already out: TotalCopies cannot drop below the
// lent copies, and AvailableCopies must equal TotalCopies minus lent copies.
// Setting only one of the two derives the other.
func (c *Catalog) UpdateBook(id string, u BookUpdate) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	lent := len(b.ActiveLoans)
	total, avail := b.TotalCopies, b.AvailableCopies
	switch {
	case u.TotalCopies != nil && u.AvailableCopies != nil:
		total, avail = *u.TotalCopies, *u.AvailableCopies
	case u.TotalCopies != nil:
		total = *u.TotalCopies
		avail = total - lent
	case u.AvailableCopies != nil:
		avail = *u.AvailableCopies
		total = avail + lent
	}
	if total < 0 || avail < 0 {
		return fmt.Errorf("%w: copy counts cannot be negative", ErrValidation)
	}
	if avail > total {
		return fmt.Errorf("%w: available copies %d exceed total %d", ErrValidation, avail, total)
	}
	if total < lent {
		return fmt.Errorf("%w: %d copies are on loan, total cannot be %d", ErrValidation, lent, total)
	}
	if avail+lent != total {
		return fmt.Errorf("%w: available copies must be %d with %d on loan", ErrValidation, total-lent, lent)
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if u.PublicationYear != nil && *u.PublicationYear < 0 {
		return fmt.Errorf("%w: invalid publication year %d", ErrValidation, *u.PublicationYear)
	}
	if u.CategoryID != nil && *u.CategoryID != "" {
		if _, ok := c.categories[*u.CategoryID]; !ok {
			return fmt.Errorf("%w: category %s", ErrNotFound, *u.CategoryID)
		}
	}

	if u.Title != nil {
		b.Title = strings.TrimSpace(*u.Title)
	}
	if u.Author != nil {
		b.Author = strings.TrimSpace(*u.Author)
	}
	if u.ISBN != nil {
		b.ISBN = strings.TrimSpace(*u.ISBN)
	}
	if u.PublicationYear != nil {
		b.PublicationYear = *u.PublicationYear
	}
	if u.CategoryID != nil {
		b.CategoryID = *u.CategoryID
	}
	b.TotalCopies, b.AvailableCopies = total, avail
	return nil
}

// RemoveBook deletes a title that has no copies out on loan.
func (c *Catalog) RemoveBook(id string) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	if len(b.ActiveLoans) > 0 {
		return fmt.Errorf("%w: book %s has %d open loans", ErrConflict, id, len(b.ActiveLoans))
	}
	delete(c.books, id)
	filtered := c.order[:0]
	for _, item := range c.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	c.order = filtered
	return nil
}

// Reserve adds userID to the book's reservation set. Reservations are
// advisory and never block lending.
func (c *Catalog) Reserve(id, userID string) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	if b.Reservations == nil {
		b.Reservations = make(map[string]bool)
	}
	b.Reservations[userID] = true
	return nil
}

// Unreserve removes userID from the book's reservation set.
func (c *Catalog) Unreserve(id, userID string) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	delete(b.Reservations, userID)
	return nil
}

// ------------------ Copies ------------------

// BorrowCopy takes one available copy for loan. Every successful call must be
// paired with exactly one ReturnCopy (or a write-off) for the same loan ID.
func (c *Catalog) BorrowCopy(id string, loan Loan) error {
	b, ok := c.books[id]
	if !ok {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	if loan.BookID != id {
		return fmt.Errorf("%w: loan %s is for book %s, not %s", ErrMismatch, loan.ID, loan.BookID, id)
	}
	if _, ok := b.ActiveLoans[loan.ID]; ok {
		return fmt.Errorf("%w: loan %s already holds a copy", ErrDuplicateID, loan.ID)
	}
	if b.AvailableCopies == 0 {
		return fmt.Errorf("%w: book %s", ErrUnavailable, id)
	}
	b.AvailableCopies--
	b.ActiveLoans[loan.ID] = loan.UserID
	return nil
}

// ReturnCopy puts the copy held by loanID back on the shelf. It returns false
// when the loan holds no copy of this book.
func (c *Catalog) ReturnCopy(id, loanID string) bool {
	b, ok := c.books[id]
	if !ok {
		return false
	}
	if _, ok := b.ActiveLoans[loanID]; !ok {
		return false
	}
	delete(b.ActiveLoans, loanID)
	b.AvailableCopies++
	return true
}

// writeOff drops the copy held by loanID from the collection entirely.
func (c *Catalog) writeOff(id, loanID string) bool {
	b, ok := c.books[id]
	if !ok {
		return false
	}
	if _, ok := b.ActiveLoans[loanID]; !ok {
		return false
	}
	delete(b.ActiveLoans, loanID)
	b.TotalCopies--
	return true
}

// restoreCopy undoes ReturnCopy or writeOff during a rolled back operation.
func (c *Catalog) restoreCopy(id, loanID, userID string, writtenOff bool) {
	b, ok := c.books[id]
	if !ok {
		return
	}
	b.ActiveLoans[loanID] = userID
	if writtenOff {
		b.TotalCopies++
	} else {
		b.AvailableCopies--
	}
}

// ------------------ Queries ------------------

// Book returns a snapshot of a single book.
func (c *Catalog) Book(id string) (Book, error) {
	b, ok := c.books[id]
	if !ok {
		return Book{}, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	return b.clone(), nil
}

// Books returns snapshots of every book in insertion order.
func (c *Catalog) Books() []Book {
	return c.filter(func(*Book) bool { return true })
}

// Search matches q case-insensitively against title, author and ISBN.
func (c *Catalog) Search(q string) []Book {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []Book{}
	}
	return c.filter(func(b *Book) bool {
		return strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.ISBN), q)
	})
}

func (c *Catalog) filter(keep func(*Book) bool) []Book {
	out := make([]Book, 0, len(c.order))
	for _, id := range c.order {
		if b := c.books[id]; keep(b) {
			out = append(out, b.clone())
		}
	}
	return out
}

// load inserts a persisted book as-is.
func (c *Catalog) load(b Book) {
	if b.ActiveLoans == nil {
		b.ActiveLoans = make(map[string]string)
	}
	if _, ok := c.books[b.ID]; !ok {
		c.order = append(c.order, b.ID)
	}
	c.books[b.ID] = &b
}

func (c *Catalog) loadCategory(cat Category) {
	if _, ok := c.categories[cat.ID]; !ok {
		c.catOrder = append(c.catOrder, cat.ID)
	}
	c.categories[cat.ID] = &cat
}
