package library

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger owns loan records and drives their state machine. Issuing and
// closing loans also updates the Catalog copy counts and the Directory
// borrow counters, all or nothing.
//
// Ledger is not safe for concurrent use; LibraryManager serializes access.
type Ledger struct {
	loans   map[string]*Loan
	order   []string
	catalog *Catalog
	dir     *Directory
	policy  Policy
}

// NewLedger wires a ledger to the catalog and directory it keeps in step.
func NewLedger(c *Catalog, d *Directory, p Policy) *Ledger {
	return &Ledger{
		loans:   make(map[string]*Loan),
		catalog: c,
		dir:     d,
		policy:  p,
	}
}

// Issue lends one copy of bookID to userID. A zero due date means the
// policy's default loan period. Nothing is recorded unless the copy, the
// loan and the user's counters can all be updated.
func (lg *Ledger) Issue(id, userID, bookID string, due time.Time, notes string, now time.Time) (Loan, error) {
	id = strings.TrimSpace(id)
	if id == "" || userID == "" || bookID == "" {
		return Loan{}, fmt.Errorf("%w: loan id, user id and book id are required", ErrValidation)
	}
	if _, ok := lg.loans[id]; ok {
		return Loan{}, fmt.Errorf("%w: loan %s", ErrDuplicateID, id)
	}
	ok, err := lg.dir.CanBorrowMore(userID)
	if err != nil {
		return Loan{}, err
	}
	if !ok {
		return Loan{}, fmt.Errorf("%w: user %s", ErrBorrowLimit, userID)
	}
	if due.IsZero() {
		due = now.AddDate(0, 0, lg.policy.DefaultLoanDays)
	}

	loan := Loan{
		ID:       id,
		UserID:   userID,
		BookID:   bookID,
		LoanDate: now,
		DueDate:  due,
		Status:   LoanActive,
		Notes:    notes,
	}
	if err := lg.catalog.BorrowCopy(bookID, loan); err != nil {
		return Loan{}, err
	}
	if err := lg.dir.recordBorrow(userID, id, bookID); err != nil {
		lg.catalog.ReturnCopy(bookID, id)
		return Loan{}, err
	}
	lg.loans[id] = &loan
	lg.order = append(lg.order, id)
	return loan.clone(), nil
}

// Return closes an open loan, puts the copy back and releases the user's
// slot. It returns false, nil when the loan is already closed.
func (lg *Ledger) Return(id string, now time.Time) (bool, error) {
	return lg.close(id, func(l *Loan) bool { return l.Return(now, lg.policy.FinePerDay) }, false)
}

// MarkLost closes an open loan with a replacement fine and writes the copy
// off the book's total.
func (lg *Ledger) MarkLost(id string, replacementFine decimal.Decimal, now time.Time) (bool, error) {
	if replacementFine.IsNegative() {
		return false, fmt.Errorf("%w: fine cannot be negative", ErrValidation)
	}
	return lg.close(id, func(l *Loan) bool { return l.MarkLost(now, replacementFine) }, true)
}

func (lg *Ledger) close(id string, transition func(*Loan) bool, writeOff bool) (bool, error) {
	l, ok := lg.loans[id]
	if !ok {
		return false, fmt.Errorf("%w: loan %s", ErrNotFound, id)
	}
	before := l.clone()
	if !transition(l) {
		return false, nil
	}

	var released bool
	if writeOff {
		released = lg.catalog.writeOff(l.BookID, l.ID)
	} else {
		released = lg.catalog.ReturnCopy(l.BookID, l.ID)
	}
	if !released {
		*l = before
		return false, fmt.Errorf("%w: book %s holds no copy for loan %s", ErrInvalidState, l.BookID, l.ID)
	}
	if !lg.dir.recordReturn(l.UserID, l.ID) {
		lg.catalog.restoreCopy(l.BookID, l.ID, l.UserID, writeOff)
		*l = before
		return false, fmt.Errorf("%w: user %s holds no loan %s", ErrInvalidState, l.UserID, l.ID)
	}
	return true, nil
}

// Extend pushes an open loan's due date out by days. It returns false, nil
// for non-positive days or a closed loan.
func (lg *Ledger) Extend(id string, days int, now time.Time) (bool, error) {
	l, ok := lg.loans[id]
	if !ok {
		return false, fmt.Errorf("%w: loan %s", ErrNotFound, id)
	}
	return l.ExtendDueDate(days, now, lg.policy.FinePerDay), nil
}

// CalculateFine returns the fine owed on a loan at now, storing it on open loans.
func (lg *Ledger) CalculateFine(id string, now time.Time) (decimal.Decimal, error) {
	l, ok := lg.loans[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: loan %s", ErrNotFound, id)
	}
	return l.CalculateFine(now, lg.policy.FinePerDay), nil
}

// RefreshStatus re-derives status and fine for one loan and reports whether
// the stored record changed.
func (lg *Ledger) RefreshStatus(id string, now time.Time) (Loan, bool, error) {
	l, ok := lg.loans[id]
	if !ok {
		return Loan{}, false, fmt.Errorf("%w: loan %s", ErrNotFound, id)
	}
	changed := l.RefreshStatus(now, lg.policy.FinePerDay)
	return l.clone(), changed, nil
}

// RefreshAll refreshes every open loan and returns those that changed.
func (lg *Ledger) RefreshAll(now time.Time) []Loan {
	var changed []Loan
	for _, id := range lg.order {
		l := lg.loans[id]
		if l.RefreshStatus(now, lg.policy.FinePerDay) {
			changed = append(changed, l.clone())
		}
	}
	return changed
}

// NextID returns the first free loan ID of the form L001.
func (lg *Ledger) NextID() string {
	for n := len(lg.loans) + 1; ; n++ {
		id := fmt.Sprintf("L%03d", n)
		if _, ok := lg.loans[id]; !ok {
			return id
		}
	}
}

// Loan returns a snapshot of a single loan as stored.
func (lg *Ledger) Loan(id string) (Loan, error) {
	l, ok := lg.loans[id]
	if !ok {
		return Loan{}, fmt.Errorf("%w: loan %s", ErrNotFound, id)
	}
	return l.clone(), nil
}

// Loans returns snapshots of the loans matching f in issue order.
func (lg *Ledger) Loans(f LoanFilter) []Loan {
	out := make([]Loan, 0, len(lg.order))
	for _, id := range lg.order {
		if l := lg.loans[id]; f.match(l) {
			out = append(out, l.clone())
		}
	}
	return out
}

// OutstandingFines sums the fines owed at now on open loans.
func (lg *Ledger) OutstandingFines(now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lg.loans {
		if l.Status.IsOpen() {
			total = total.Add(l.FineAt(now, lg.policy.FinePerDay))
		}
	}
	return total
}

func (lg *Ledger) load(l Loan) {
	if _, ok := lg.loans[l.ID]; !ok {
		lg.order = append(lg.order, l.ID)
	}
	lg.loans[l.ID] = &l
}
