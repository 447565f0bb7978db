package library

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"library-circulation/store"
)

var base = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

var perDay = money("0.50")

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func checkMoney(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(money(want)) {
		t.Fatalf("%s: want %s, got %s", what, want, got.StringFixed(2))
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newDirectory(t *testing.T) *Directory {
	t.Helper()
	d := NewDirectory(0)
	d.hashCost = bcrypt.MinCost
	return d
}

// fixture is a ledger with two books and two members:
// B1 "Dune" (2 copies), B2 "Emma" (1 copy), U1 alice, U2 bob.
type fixture struct {
	catalog *Catalog
	dir     *Directory
	ledger  *Ledger
	board   *RequestBoard
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	c := NewCatalog()
	d := newDirectory(t)
	lg := NewLedger(c, d, DefaultPolicy())
	f := fixture{catalog: c, dir: d, ledger: lg, board: NewRequestBoard(lg, c, d)}
	for _, b := range []Book{
		{ID: "B1", Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", TotalCopies: 2},
		{ID: "B2", Title: "Emma", Author: "Jane Austen", ISBN: "9780141439587", TotalCopies: 1},
	} {
		if err := c.AddBook(b); err != nil {
			t.Fatalf("add book %s: %v", b.ID, err)
		}
	}
	for _, u := range []User{
		{ID: "U1", Name: "Alice", Username: "alice", Email: "alice@example.com"},
		{ID: "U2", Name: "Bob", Username: "bob", Email: "bob@example.com"},
	} {
		if err := d.Register(u, base); err != nil {
			t.Fatalf("register %s: %v", u.ID, err)
		}
	}
	return f
}

// checkCopies asserts available + lent == total for every book.
func checkCopies(t *testing.T, c *Catalog) {
	t.Helper()
	for _, b := range c.Books() {
		if b.AvailableCopies+b.LentCopies() != b.TotalCopies {
			t.Fatalf("book %s: available %d + lent %d != total %d",
				b.ID, b.AvailableCopies, b.LentCopies(), b.TotalCopies)
		}
	}
}

func newManager(t *testing.T, clk *clock, s store.Store) *LibraryManager {
	t.Helper()
	if s == nil {
		s = store.NewMemoryStore()
	}
	mgr, err := NewLibraryManager(context.Background(), Options{Store: s, Now: clk.now})
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	mgr.dir.hashCost = bcrypt.MinCost
	t.Cleanup(func() { mgr.Close() })
	return mgr
}
