package library

import "errors"

var (
	// ErrNotFound indicates an unknown book, loan, request, user or category ID.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID indicates an ID collision on create.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates the operation is illegal for the entity's current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable indicates a book has no copies left to lend.
	ErrUnavailable = errors.New("no copies available")
	// ErrConflict indicates a delete blocked by open loans.
	ErrConflict = errors.New("conflict")
	// ErrUnresolvedUser indicates a borrow request whose username matches no account.
	ErrUnresolvedUser = errors.New("unresolved user")
	// ErrMismatch indicates a loan presented against a different book.
	ErrMismatch = errors.New("loan does not belong to book")
	// ErrBorrowLimit indicates the user is inactive or already holds the maximum number of loans.
	ErrBorrowLimit = errors.New("borrow limit reached")
	// ErrAuth indicates bad credentials.
	ErrAuth = errors.New("invalid credentials")
)
