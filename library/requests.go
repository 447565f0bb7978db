package library

import (
	"fmt"
	"strings"
	"time"
)

// RequestBoard owns borrow requests and turns approved ones into loans.
//
// RequestBoard is not safe for concurrent use; LibraryManager serializes access.
type RequestBoard struct {
	requests map[string]*BorrowRequest
	order    []string
	ledger   *Ledger
	catalog  *Catalog
	dir      *Directory
}

// NewRequestBoard wires the board to the components an approval touches.
func NewRequestBoard(lg *Ledger, c *Catalog, d *Directory) *RequestBoard {
	return &RequestBoard{
		requests: make(map[string]*BorrowRequest),
		ledger:   lg,
		catalog:  c,
		dir:      d,
	}
}

// Create files a pending request for the account matching username. The
// desired return date must fall on a day after tomorrow.
func (rb *RequestBoard) Create(username, bookID string, desiredReturn, now time.Time) (BorrowRequest, error) {
	username = strings.TrimSpace(username)
	if username == "" || bookID == "" {
		return BorrowRequest{}, fmt.Errorf("%w: username and book id are required", ErrValidation)
	}
	if _, err := rb.catalog.Book(bookID); err != nil {
		return BorrowRequest{}, err
	}
	userID, err := rb.dir.ResolveUsername(username)
	if err != nil {
		return BorrowRequest{}, err
	}
	desiredDay := startOfDay(desiredReturn.In(now.Location()))
	tomorrow := startOfDay(now).AddDate(0, 0, 1)
	if !desiredDay.After(tomorrow) {
		return BorrowRequest{}, fmt.Errorf("%w: return date %s must be after %s",
			ErrValidation, desiredDay.Format(time.DateOnly), tomorrow.Format(time.DateOnly))
	}

	r := BorrowRequest{
		ID:                rb.nextID(),
		Username:          username,
		UserID:            userID,
		BookID:            bookID,
		RequestDate:       now,
		DesiredReturnDate: desiredDay,
		Status:            RequestPending,
	}
	rb.requests[r.ID] = &r
	rb.order = append(rb.order, r.ID)
	return r.clone(), nil
}

func (rb *RequestBoard) pending(id string) (*BorrowRequest, error) {
	r, ok := rb.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	if r.Status != RequestPending {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidState, id, r.Status)
	}
	return r, nil
}

// Approve issues a loan due at the end of the desired return day and marks the
// request approved. The request is only marked once the loan exists.
func (rb *RequestBoard) Approve(id, adminID string, now time.Time) (BorrowRequest, Loan, error) {
	r, err := rb.pending(id)
	if err != nil {
		return BorrowRequest{}, Loan{}, err
	}
	book, err := rb.catalog.Book(r.BookID)
	if err != nil {
		return BorrowRequest{}, Loan{}, err
	}
	if book.AvailableCopies == 0 {
		return BorrowRequest{}, Loan{}, fmt.Errorf("%w: book %s", ErrUnavailable, r.BookID)
	}
	userID := r.UserID
	if userID == "" {
		if userID, err = rb.dir.ResolveUsername(r.Username); err != nil {
			return BorrowRequest{}, Loan{}, err
		}
	}

	notes := fmt.Sprintf("approved from request %s", r.ID)
	loan, err := rb.ledger.Issue(rb.ledger.NextID(), userID, r.BookID, endOfDay(r.DesiredReturnDate), notes, now)
	if err != nil {
		return BorrowRequest{}, Loan{}, err
	}
	responded := now
	r.Status = RequestApproved
	r.UserID = userID
	r.LoanID = loan.ID
	r.RespondedBy = adminID
	r.ResponseDate = &responded
	return r.clone(), loan, nil
}

// Deny rejects a pending request, keeping the optional reason as notes.
func (rb *RequestBoard) Deny(id, adminID, reason string, now time.Time) (BorrowRequest, error) {
	r, err := rb.pending(id)
	if err != nil {
		return BorrowRequest{}, err
	}
	responded := now
	r.Status = RequestDenied
	r.RespondedBy = adminID
	r.ResponseDate = &responded
	r.Notes = strings.TrimSpace(reason)
	return r.clone(), nil
}

// Request returns a snapshot of a single request.
func (rb *RequestBoard) Request(id string) (BorrowRequest, error) {
	r, ok := rb.requests[id]
	if !ok {
		return BorrowRequest{}, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return r.clone(), nil
}

// Requests returns snapshots of the requests matching f in filing order.
func (rb *RequestBoard) Requests(f RequestFilter) []BorrowRequest {
	out := make([]BorrowRequest, 0, len(rb.order))
	for _, id := range rb.order {
		if r := rb.requests[id]; f.match(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

func (rb *RequestBoard) nextID() string {
	for n := len(rb.requests) + 1; ; n++ {
		id := fmt.Sprintf("R%03d", n)
		if _, ok := rb.requests[id]; !ok {
			return id
		}
	}
}

func (rb *RequestBoard) load(r BorrowRequest) {
	if _, ok := rb.requests[r.ID]; !ok {
		rb.order = append(rb.order, r.ID)
	}
	rb.requests[r.ID] = &r
}
