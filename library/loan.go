package library

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Policy holds the circulation rules that are configurable per deployment.
type Policy struct {
	FinePerDay      decimal.Decimal
	DefaultLoanDays int
	BorrowLimit     int
}

// DefaultPolicy matches the library's historical settings: 0.50 per overdue
// day, two-week loans, five books per user.
func DefaultPolicy() Policy {
	return Policy{
		FinePerDay:      decimal.RequireFromString("0.50"),
		DefaultLoanDays: 14,
		BorrowLimit:     5,
	}
}

// withDefaults fills every unset field from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.FinePerDay.IsZero() {
		p.FinePerDay = d.FinePerDay
	}
	if p.DefaultLoanDays <= 0 {
		p.DefaultLoanDays = d.DefaultLoanDays
	}
	if p.BorrowLimit <= 0 {
		p.BorrowLimit = d.BorrowLimit
	}
	return p
}

// daysBetween counts whole calendar days from a to b on the wall clock of a's
// location, truncated toward zero. A 23h or 25h day around a DST change still
// counts as one day.
func daysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	return int(wallClock(b).Sub(wallClock(a)) / day)
}

func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC)
}

func fineFor(days int, perDay decimal.Decimal) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(days)).Mul(perDay)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// IsOverdue reports whether an open loan is past its due date at now.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status.IsOpen() && now.After(l.DueDate)
}

// DaysUntilDue is negative once the loan is overdue.
func (l *Loan) DaysUntilDue(now time.Time) int {
	return daysBetween(now, l.DueDate)
}

// DaysBorrowed counts days from the loan date to the return date, or to now
// while the loan is open.
func (l *Loan) DaysBorrowed(now time.Time) int {
	ref := now
	if l.ReturnDate != nil {
		ref = *l.ReturnDate
	}
	return daysBetween(l.LoanDate, ref)
}

// FineAt computes the fine owed at now without touching the loan. Terminal
// loans report their frozen fine.
func (l *Loan) FineAt(now time.Time, perDay decimal.Decimal) decimal.Decimal {
	if l.Status.IsTerminal() {
		return l.FineAmount
	}
	ref := now
	if l.ReturnDate != nil {
		ref = *l.ReturnDate
	}
	return fineFor(daysBetween(l.DueDate, ref), perDay)
}

// CalculateFine stores and returns the fine owed at now. Repeated calls on an
// open overdue loan yield non-decreasing values; terminal loans keep the fine
// fixed at the time they closed.
func (l *Loan) CalculateFine(now time.Time, perDay decimal.Decimal) decimal.Decimal {
	l.FineAmount = l.FineAt(now, perDay)
	return l.FineAmount
}

// RefreshStatus re-derives ACTIVE/OVERDUE and the running fine from the due
// date. It reports whether anything stored on the loan changed.
func (l *Loan) RefreshStatus(now time.Time, perDay decimal.Decimal) bool {
	if l.Status.IsTerminal() {
		return false
	}
	status := LoanActive
	if now.After(l.DueDate) {
		status = LoanOverdue
	}
	fine := l.FineAt(now, perDay)
	changed := status != l.Status || !fine.Equal(l.FineAmount)
	l.Status = status
	l.FineAmount = fine
	return changed
}

// Return closes the loan at now. It is a no-op returning false once the loan
// is terminal.
func (l *Loan) Return(now time.Time, perDay decimal.Decimal) bool {
	if l.Status.IsTerminal() {
		return false
	}
	overdue := now.After(l.DueDate)
	returned := now
	l.ReturnDate = &returned
	l.Status = LoanReturned
	l.FineAmount = decimal.Zero
	if overdue {
		l.FineAmount = fineFor(daysBetween(l.DueDate, returned), perDay)
	}
	return true
}

// MarkLost closes the loan with a caller-supplied replacement fine.
func (l *Loan) MarkLost(now time.Time, replacementFine decimal.Decimal) bool {
	if l.Status.IsTerminal() {
		return false
	}
	lost := now
	l.ReturnDate = &lost
	l.Status = LoanLost
	l.FineAmount = replacementFine.Round(2)
	return true
}

// ExtendDueDate pushes the due date out by days calendar days and re-derives
// the status. It returns false for non-positive days or a terminal loan.
func (l *Loan) ExtendDueDate(days int, now time.Time, perDay decimal.Decimal) bool {
	if days <= 0 || l.Status.IsTerminal() {
		return false
	}
	l.DueDate = l.DueDate.AddDate(0, 0, days)
	l.RefreshStatus(now, perDay)
	return true
}
