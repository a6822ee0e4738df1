package core

import "context"

// DeleteEvent lists what a delete removed. IDs and Records share indexes.
type DeleteEvent struct {
	IDs     []any
	Records []Record
}

// Hooks are side effects run synchronously after a mutation commits, used to
// keep external systems (the credential directory) in step with the store.
// Any hook may be nil.
type Hooks struct {
	OnCreate func(ctx context.Context, rec Record) error
	OnUpdate func(ctx context.Context, rec Record) error
	OnDelete func(ctx context.Context, ev DeleteEvent) error
}

func (h Hooks) created(ctx context.Context, typ string, rec Record) error {
	if h.OnCreate == nil {
		return nil
	}
	if err := h.OnCreate(ctx, rec); err != nil {
		return &HookError{Event: "create", Type: typ, Err: err}
	}
	return nil
}

func (h Hooks) updated(ctx context.Context, typ string, rec Record) error {
	if h.OnUpdate == nil {
		return nil
	}
	if err := h.OnUpdate(ctx, rec); err != nil {
		return &HookError{Event: "update", Type: typ, Err: err}
	}
	return nil
}

func (h Hooks) deleted(ctx context.Context, typ string, ev DeleteEvent) error {
	if h.OnDelete == nil || len(ev.IDs) == 0 {
		return nil
	}
	if err := h.OnDelete(ctx, ev); err != nil {
		return &HookError{Event: "delete", Type: typ, Err: err}
	}
	return nil
}
