package library

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func openLoan(due time.Time) *Loan {
	return &Loan{ID: "L1", UserID: "U1", BookID: "B1", LoanDate: base, DueDate: due, Status: LoanActive}
}

func TestFineAt(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before due", base.Add(-time.Hour), "0"},
		{"at due", base, "0"},
		{"partial day", base.Add(20 * time.Hour), "0"},
		{"one and a half days", base.Add(36 * time.Hour), "0.50"},
		{"three days", base.Add(3 * day), "1.50"},
		{"thirty days", base.Add(30 * day), "15.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := openLoan(base)
			checkMoney(t, "fine", l.FineAt(tt.now, perDay), tt.want)
		})
	}
}

func TestFineMonotonic(t *testing.T) {
	l := openLoan(base.Add(-2 * day))
	prev := decimal.Zero
	for h := 0; h < 24*20; h += 7 {
		fine := l.CalculateFine(base.Add(time.Duration(h)*time.Hour), perDay)
		if fine.LessThan(prev) {
			t.Fatalf("fine decreased at +%dh: %s < %s", h, fine, prev)
		}
		prev = fine
	}
}

func TestRefreshStatus(t *testing.T) {
	l := openLoan(base.Add(2 * day))
	if l.RefreshStatus(base, perDay) {
		t.Fatalf("refresh before due should not change anything")
	}
	if !l.RefreshStatus(base.Add(5*day), perDay) {
		t.Fatalf("expected change once overdue")
	}
	if l.Status != LoanOverdue {
		t.Fatalf("want OVERDUE, got %s", l.Status)
	}
	checkMoney(t, "fine", l.FineAmount, "1.50")
	if l.RefreshStatus(base.Add(5*day), perDay) {
		t.Fatalf("second refresh at same instant should be a no-op")
	}
}

func TestReturnFreezesFine(t *testing.T) {
	l := openLoan(base)
	returned := base.Add(4 * day)
	if !l.Return(returned, perDay) {
		t.Fatalf("return failed")
	}
	if l.Status != LoanReturned {
		t.Fatalf("want RETURNED, got %s", l.Status)
	}
	checkMoney(t, "fine", l.FineAmount, "2.00")
	if l.ReturnDate == nil || !l.ReturnDate.Equal(returned) {
		t.Fatalf("return date not set")
	}
	if l.Return(returned.Add(day), perDay) {
		t.Fatalf("second return should be a no-op")
	}
	for _, later := range []time.Time{returned.Add(day), returned.Add(365 * day)} {
		checkMoney(t, "terminal fine", l.CalculateFine(later, perDay), "2.00")
		if l.RefreshStatus(later, perDay) {
			t.Fatalf("terminal loan changed on refresh")
		}
	}
}

func TestReturnOnTime(t *testing.T) {
	l := openLoan(base.Add(day))
	l.Return(base, perDay)
	checkMoney(t, "on-time fine", l.FineAmount, "0")
}

func TestMarkLost(t *testing.T) {
	l := openLoan(base.Add(day))
	if !l.MarkLost(base, money("25")) {
		t.Fatalf("mark lost failed")
	}
	if l.Status != LoanLost || !l.FineAmount.Equal(money("25.00")) || l.ReturnDate == nil {
		t.Fatalf("unexpected loan after loss: %+v", l)
	}
	if l.Return(base.Add(day), perDay) || l.MarkLost(base, money("30")) {
		t.Fatalf("lost loan accepted another transition")
	}
}

func TestExtendDueDate(t *testing.T) {
	l := openLoan(base.Add(-3 * day))
	l.RefreshStatus(base, perDay)
	if l.Status != LoanOverdue {
		t.Fatalf("setup: want OVERDUE, got %s", l.Status)
	}
	if l.ExtendDueDate(0, base, perDay) || l.ExtendDueDate(-1, base, perDay) {
		t.Fatalf("non-positive extension accepted")
	}
	if !l.ExtendDueDate(7, base, perDay) {
		t.Fatalf("extend failed")
	}
	if l.Status != LoanActive || !l.FineAmount.IsZero() {
		t.Fatalf("want ACTIVE 0.00 after extension, got %s %s", l.Status, l.FineAmount)
	}
	if want := base.Add(4 * day); !l.DueDate.Equal(want) {
		t.Fatalf("due: want %v, got %v", want, l.DueDate)
	}
	if l.DaysUntilDue(base) != 4 {
		t.Fatalf("days until due: got %d", l.DaysUntilDue(base))
	}

	l.Return(base, perDay)
	if l.ExtendDueDate(7, base, perDay) {
		t.Fatalf("extended a returned loan")
	}
}

func TestDaysBorrowed(t *testing.T) {
	l := openLoan(base.Add(14 * day))
	if got := l.DaysBorrowed(base.Add(3*day + time.Hour)); got != 3 {
		t.Fatalf("days borrowed: want 3, got %d", got)
	}
	l.Return(base.Add(5*day), perDay)
	if got := l.DaysBorrowed(base.Add(50 * day)); got != 5 {
		t.Fatalf("days borrowed after return: want 5, got %d", got)
	}
}

// Days are counted on the wall clock, so the short day at the start of
// daylight saving time still counts as a full day.
func TestFineAcrossDSTChange(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tz database: %v", err)
	}
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, ny)
	l := openLoan(now.AddDate(0, 0, -3))
	checkMoney(t, "fine", l.FineAt(now, perDay), "1.50")
	if got := l.DaysUntilDue(now); got != -3 {
		t.Fatalf("days until due: want -3, got %d", got)
	}

	fall := time.Date(2026, time.November, 2, 12, 0, 0, 0, ny)
	l = openLoan(fall.AddDate(0, 0, -2))
	checkMoney(t, "fine", l.FineAt(fall.Add(-time.Hour), perDay), "0.50")
	checkMoney(t, "fine", l.FineAt(fall, perDay), "1.00")
}

func TestDaysBetween(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tz database: %v", err)
	}
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same instant", base, base, 0},
		{"23h", base, base.Add(23 * time.Hour), 0},
		{"two days", base, base.Add(2 * day), 2},
		{"backwards", base.Add(2 * day), base, -2},
		{"spring forward", time.Date(2026, time.March, 7, 9, 0, 0, 0, ny), time.Date(2026, time.March, 9, 9, 0, 0, 0, ny), 2},
		{"mixed zones", time.Date(2026, time.March, 7, 9, 0, 0, 0, ny), time.Date(2026, time.March, 9, 13, 0, 0, 0, time.UTC), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysBetween(tt.a, tt.b); got != tt.want {
				t.Fatalf("daysBetween: want %d, got %d", tt.want, got)
			}
		})
	}
}
