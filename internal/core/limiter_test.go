package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, 20*time.Millisecond)
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "products", "a.csv")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	releaseB, err := l.Acquire(ctx, "stocks", "")
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if _, err := l.Acquire(ctx, "products", "c.csv"); !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("Acquire() on a full limiter = %v, want ErrTooManyImports", err)
	}

	st := l.Status()
	if st.Active != 2 || st.Available != 0 || st.MaxConcurrent != 2 {
		t.Errorf("Status() = %+v", st)
	}
	if len(st.Imports) != 2 || st.Imports[0].Target != "products" || st.Imports[0].Source != "a.csv" ||
		st.Imports[1].Target != "stocks" {
		t.Errorf("Status().Imports = %+v", st.Imports)
	}

	releaseA()
	releaseA()
	st = l.Status()
	if st.Active != 1 || st.Available != 1 || st.Imports[0].Target != "stocks" {
		t.Errorf("Status() after release = %+v", st)
	}
	releaseB()
	if st := l.Status(); st.Active != 0 || len(st.Imports) != 0 {
		t.Errorf("Status() after both releases = %+v", st)
	}
}

func TestImportLimiter_ContextCancelled(t *testing.T) {
	l := NewImportLimiter(1, time.Minute)
	release, err := l.Acquire(context.Background(), "products", "")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "products", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() = %v, want context.Canceled", err)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	if err := l.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("WaitForDrain() on an idle limiter = %v", err)
	}

	release1, err := l.Acquire(context.Background(), "products", "")
	if err != nil {
		t.Fatal(err)
	}
	release2, err := l.Acquire(context.Background(), "stocks", "")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		release1()
		time.Sleep(10 * time.Millisecond)
		release2()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain() error = %v", err)
	}
	if st := l.Status(); st.Active != 0 {
		t.Errorf("Active = %d after drain", st.Active)
	}
}

func TestImportLimiter_WaitForDrainTimeout(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	release, err := l.Acquire(context.Background(), "products", "")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain() = %v, want DeadlineExceeded", err)
	}
}

func TestNewImportLimiter_Defaults(t *testing.T) {
	l := NewImportLimiter(0, 0)
	if got := l.Status().MaxConcurrent; got != DefaultMaxConcurrentImports {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentImports)
	}
}
