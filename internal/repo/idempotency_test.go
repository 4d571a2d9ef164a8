package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIdempotency_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "HELLO1", "key-1", "comp-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ComplimentID != "comp-1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "HELLO1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ComplimentID != "comp-1" {
		t.Fatalf("got %+v", got)
	}
}

func TestIdempotency_DuplicateKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "HELLO1", "key-1", "comp-1", 201, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateIdempotency(ctx, db, "HELLO1", "key-1", "comp-2", 201, time.Hour)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want ErrDuplicate", err)
	}

	// Same key under a different code is a distinct scope.
	if _, err := CreateIdempotency(ctx, db, "OTHER1", "key-1", "comp-3", 201, time.Hour); err != nil {
		t.Fatalf("create under other code: %v", err)
	}
}

func TestIdempotency_ExpiredAndMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "HELLO1", "key-old", "comp-1", 201, time.Nanosecond); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "HELLO1", "key-old", now.Add(time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired lookup err = %v; want ErrNotFound", err)
	}

	if _, err := GetIdempotency(ctx, db, "", "key", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank code err = %v; want ErrNotFound", err)
	}
	if _, err := GetIdempotency(ctx, db, "HELLO1", "nope", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key err = %v; want ErrNotFound", err)
	}
}
