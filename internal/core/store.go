package core

import "context"

// Store persists records of any registered type. Implementations pick up the
// ambient transaction from ctx (see Transactor) and translate driver errors
// into ErrNotFound, ErrDuplicateKey, ErrValidation or ErrStorage.
type Store interface {
	// Insert persists rec and returns the stored row, generated values included.
	Insert(ctx context.Context, rt *RecordType, rec Record) (Record, error)

	// Update overwrites the given fields of the row with primary key id.
	Update(ctx context.Context, rt *RecordType, id any, changes Record) (Record, error)

	// Delete removes the row with primary key id.
	Delete(ctx context.Context, rt *RecordType, id any) error

	// DeleteAll removes every row of rt and returns the count removed.
	DeleteAll(ctx context.Context, rt *RecordType) (int64, error)

	// Get loads one row by primary key.
	Get(ctx context.Context, rt *RecordType, id any) (Record, error)

	// FindOne returns the first row whose fields equal match.
	FindOne(ctx context.Context, rt *RecordType, match Record) (Record, error)

	// List returns rows ordered by primary key.
	List(ctx context.Context, rt *RecordType, opts ListOptions) ([]Record, error)
}

// Transactor scopes work to one transaction. fn receives a context carrying
// the transaction; the store uses it implicitly. A RunInTx nested inside
// another runs as a savepoint: its failure rolls back only its own work.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
