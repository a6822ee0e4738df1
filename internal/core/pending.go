package core

import "context"

// pendingEffects holds the audit entries and hooks of Mutator writes made
// while an import batch runs, typically by a preprocess step. They run once
// the batch commits. The effects of a row whose savepoint rolls back are
// dropped with it.
type pendingEffects struct {
	batchID string
	row     []func(ctx context.Context) error
	kept    []func(ctx context.Context) error
}

type pendingKey struct{}

type batchKey struct{}

func withPending(ctx context.Context, p *pendingEffects) context.Context {
	return context.WithValue(ctx, pendingKey{}, p)
}

// afterCommit runs effect now, or queues it when ctx belongs to an import
// batch.
func afterCommit(ctx context.Context, effect func(ctx context.Context) error) error {
	if p, ok := ctx.Value(pendingKey{}).(*pendingEffects); ok {
		p.row = append(p.row, effect)
		return nil
	}
	return effect(ctx)
}

// keepRow promotes the effects of a committed row.
func (p *pendingEffects) keepRow() {
	p.kept = append(p.kept, p.row...)
	p.row = nil
}

func (p *pendingEffects) dropRow() { p.row = nil }

// flush runs the kept effects in order. Audit entries written here carry the
// batch id.
func (p *pendingEffects) flush(ctx context.Context) []error {
	ctx = context.WithValue(ctx, batchKey{}, p.batchID)
	var errs []error
	for _, effect := range p.kept {
		if err := effect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.kept = nil
	return errs
}

func batchIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(batchKey{}).(string)
	return id
}
