package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func record(sender, receiver string, state State) Transaction {
	return Transaction{
		ID:            uuid.NewString(),
		SenderPhone:   sender,
		ReceiverPhone: receiver,
		Method:        MethodCashOut,
		Amount:        1_000,
		Fee:           15,
		State:         state,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInMemoryAppendAndGet(t *testing.T) {
	repo := NewInMemory()
	ctx := context.Background()

	tx := record("01711111111", "01733333333", StatePending)
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != tx.ID || got.Amount != tx.Amount || got.Fee != tx.Fee {
		t.Fatalf("stored record differs: %+v", got)
	}

	if err := repo.Append(ctx, tx); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemorySettleIsOneWay(t *testing.T) {
	repo := NewInMemory()
	ctx := context.Background()

	tx := record("01711111111", "01733333333", StatePending)
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}

	settled, err := repo.Settle(ctx, tx.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.State != StateSettled || settled.SettledAt == nil {
		t.Fatalf("expected settled record, got %+v", settled)
	}

	if _, err := repo.Settle(ctx, tx.ID); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	if _, err := repo.Settle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryConcurrentSettleFlipsOnce(t *testing.T) {
	repo := NewInMemory()
	ctx := context.Background()

	tx := record("01711111111", "01733333333", StatePending)
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Settle(ctx, tx.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrAlreadySettled) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one settle must win, got %d", succeeded)
	}
}

func TestInMemoryDiscard(t *testing.T) {
	repo := NewInMemory()
	ctx := context.Background()

	tx := record("01711111111", "01733333333", StatePending)
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Discard(ctx, tx.ID); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := repo.Get(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after discard, got %v", err)
	}
	if all, _ := repo.ListAll(ctx); len(all) != 0 {
		t.Fatalf("listing must not contain discarded records, got %d", len(all))
	}
}

func TestInMemoryListings(t *testing.T) {
	repo := NewInMemory()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		tx := record("01711111111", fmt.Sprintf("0173%07d", i), StatePending)
		if err := repo.Append(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, tx.ID)
	}
	other := record("01788888888", "01799999999", StateSettled)
	if err := repo.Append(ctx, other); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 records, got %d", len(all))
	}
	if all[0].ID != other.ID {
		t.Fatal("listing must be most recent first")
	}

	mine, err := repo.ListByPhone(ctx, "01711111111")
	if err != nil {
		t.Fatalf("list by phone: %v", err)
	}
	if len(mine) != 5 {
		t.Fatalf("expected 5 records, got %d", len(mine))
	}
	for i, tx := range mine {
		if want := ids[len(ids)-1-i]; tx.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, tx.ID)
		}
	}
}
