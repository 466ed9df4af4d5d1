package mysql

import (
	"context"
	"testing"
	"time"

	eventDomain "collateral-loans/internal/domain/event"
)

func makeEvent(t *testing.T, typ eventDomain.Type, loanID uint64) *eventDomain.Event {
	t.Helper()
	e, err := eventDomain.New(typ, loanID, eventDomain.LoanRepaid{LoanID: loanID}, time.Now())
	if err != nil {
		t.Fatalf("event.New: %v", err)
	}
	return e
}

func TestEvent_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	first := makeEvent(t, eventDomain.TypeLoanRequested, 0)
	if err := repo.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.Seq == 0 {
		t.Fatalf("Append did not assign Seq")
	}
	if err := repo.Append(ctx, makeEvent(t, eventDomain.TypeLoanFunded, 0)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Append(ctx, makeEvent(t, eventDomain.TypeLoanRequested, 1)); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListByLoanID(ctx, 0)
	if err != nil {
		t.Fatalf("ListByLoanID: %v", err)
	}
	if len(got) != 2 || got[0].Type != eventDomain.TypeLoanRequested || got[1].Type != eventDomain.TypeLoanFunded {
		t.Fatalf("unexpected events: %+v", got)
	}
	if string(got[0].Payload) != `{"id":0}` {
		t.Fatalf("payload = %s", got[0].Payload)
	}
}

func TestEvent_UnpublishedAndMark(t *testing.T) {
	db := openTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	for i := uint64(0); i < 3; i++ {
		if err := repo.Append(ctx, makeEvent(t, eventDomain.TypeLoanRepaid, i)); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := repo.ListUnpublished(ctx, 2)
	if err != nil || len(pending) != 2 {
		t.Fatalf("ListUnpublished = %d err=%v", len(pending), err)
	}
	if err := repo.MarkPublished(ctx, pending[0].Seq, time.Now()); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}

	rest, err := repo.ListUnpublished(ctx, 10)
	if err != nil || len(rest) != 2 {
		t.Fatalf("remaining = %d err=%v", len(rest), err)
	}
	if rest[0].Seq == pending[0].Seq {
		t.Fatalf("published event still listed")
	}
}
