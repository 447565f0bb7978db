package library

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"library-circulation/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ------------------ Actor ------------------

type actorKey struct{}

// SystemActor is recorded on audit entries when no actor is set on the context.
const SystemActor = "system"

// WithActor returns a context whose audit entries name userID as the performer.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the actor set by WithActor, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return SystemActor
}

// ------------------ Write-through ------------------

// write is one store mutation, built from the in-memory state at commit time.
type write func(ctx context.Context) error

type change struct {
	entity   string
	entityID string
	action   string
	detail   string
}

// commit persists writes and appends an audit entry for c. The in-memory
// change has already happened; a store failure is logged and returned so the
// caller knows the stored record is stale.
func (lm *LibraryManager) commit(ctx context.Context, c change, writes ...write) error {
	lm.auditSeq++
	entry := AuditEntry{
		ID:          uuid.NewString(),
		Seq:         lm.auditSeq,
		Timestamp:   lm.now(),
		Entity:      c.entity,
		EntityID:    c.entityID,
		Action:      c.action,
		PerformedBy: ActorFrom(ctx),
		Detail:      c.detail,
	}
	return lm.persist(ctx, append(writes, lm.putDoc(store.TableAudit, entry.ID, entry))...)
}

func (lm *LibraryManager) persist(ctx context.Context, writes ...write) error {
	var errs []error
	for _, w := range writes {
		if err := w(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		lm.log.Error("persist failed", "error", err)
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (lm *LibraryManager) putDoc(table, id string, v any) write {
	return func(ctx context.Context) error {
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", table, id, err)
		}
		return lm.store.Put(ctx, table, id, doc)
	}
}

func (lm *LibraryManager) putBook(id string) write {
	b, err := lm.catalog.Book(id)
	if err != nil {
		return failed(err)
	}
	return lm.putDoc(store.TableBooks, id, b)
}

func (lm *LibraryManager) putCategory(id string) write {
	cat, err := lm.catalog.Category(id)
	if err != nil {
		return failed(err)
	}
	return lm.putDoc(store.TableCategories, id, cat)
}

func (lm *LibraryManager) putLoan(id string) write {
	l, err := lm.ledger.Loan(id)
	if err != nil {
		return failed(err)
	}
	return lm.putDoc(store.TableLoans, id, l)
}

func (lm *LibraryManager) putRequest(id string) write {
	r, err := lm.board.Request(id)
	if err != nil {
		return failed(err)
	}
	return lm.putDoc(store.TableRequests, id, r)
}

func (lm *LibraryManager) putUser(id string) write {
	u, err := lm.dir.User(id)
	if err != nil {
		return failed(err)
	}
	return lm.putDoc(store.TableUsers, id, u)
}

// patchDecision writes only the fields a decision changes. A request missing
// from the store is written whole.
func (lm *LibraryManager) patchDecision(r BorrowRequest) write {
	return func(ctx context.Context) error {
		fields := map[string]any{
			"status":        r.Status,
			"responded_by":  r.RespondedBy,
			"response_date": r.ResponseDate,
			"user_id":       r.UserID,
			"loan_id":       r.LoanID,
			"notes":         r.Notes,
		}
		err := lm.store.Patch(ctx, store.TableRequests, r.ID, fields)
		if errors.Is(err, store.ErrNotFound) {
			return lm.putDoc(store.TableRequests, r.ID, r)(ctx)
		}
		return err
	}
}

func (lm *LibraryManager) deleteRecord(table, id string) write {
	return func(ctx context.Context) error {
		err := lm.store.Delete(ctx, table, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
}

func failed(err error) write {
	return func(context.Context) error { return err }
}

// ------------------ Load ------------------

// load rebuilds the components from the store. Records are applied directly,
// so counters and copy maps come back exactly as they were written.
func (lm *LibraryManager) load(ctx context.Context) error {
	if err := loadTable(ctx, lm.store, store.TableCategories, lm.catalog.loadCategory); err != nil {
		return err
	}
	if err := loadTable(ctx, lm.store, store.TableBooks, lm.catalog.load); err != nil {
		return err
	}
	if err := loadTable(ctx, lm.store, store.TableUsers, lm.dir.load); err != nil {
		return err
	}
	if err := loadTable(ctx, lm.store, store.TableLoans, lm.ledger.load); err != nil {
		return err
	}
	if err := loadTable(ctx, lm.store, store.TableRequests, lm.board.load); err != nil {
		return err
	}
	err := loadTable(ctx, lm.store, store.TableAudit, func(e AuditEntry) {
		lm.auditSeq = max(lm.auditSeq, e.Seq)
	})
	if err != nil {
		return err
	}
	lm.log.Debug("library loaded",
		"books", len(lm.catalog.order), "users", len(lm.dir.order),
		"loans", len(lm.ledger.order), "requests", len(lm.board.order))
	return nil
}

func loadTable[T any](ctx context.Context, s store.Store, table string, apply func(T)) error {
	docs, err := s.GetAll(ctx, table, nil)
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return fmt.Errorf("decode %s: %w", table, err)
		}
		apply(v)
	}
	return nil
}

// ------------------ Audit ------------------

// AuditTrail returns the audit entries for one entity in the order they were
// written, by timestamp and then by sequence number. An empty
// entityID returns every entry for the entity kind; an empty entity returns
// everything.
func (lm *LibraryManager) AuditTrail(ctx context.Context, entity, entityID string) ([]AuditEntry, error) {
	filter := store.Filter{}
	if entity != "" {
		filter["entity"] = entity
	}
	if entityID != "" {
		filter["entity_id"] = entityID
	}
	docs, err := lm.store.GetAll(ctx, store.TableAudit, filter)
	if err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	entries := make([]AuditEntry, 0, len(docs))
	for _, doc := range docs {
		var e AuditEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decode audit: %w", err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
	return entries, nil
}
