package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kudobox/kudos-backend/internal/domain"
	"github.com/kudobox/kudos-backend/internal/repo"
)

// ----- Fake publisher -----

type fakePublisher struct {
	codes       []string
	compliments []*domain.Compliment
	delivered   int
}

func (p *fakePublisher) Publish(code string, c *domain.Compliment) int {
	p.codes = append(p.codes, code)
	p.compliments = append(p.compliments, c)
	return p.delivered
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ----- NormalizeCode -----

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"hello1":     "HELLO1",
		"  abc123  ": "ABC123",
		"MiXeD":      "MIXED",
		"ümlaut":     "ÜMLAUT",
	}
	for in, want := range cases {
		got, err := NormalizeCode(in)
		if err != nil {
			t.Errorf("NormalizeCode(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeCode(%q) = %q; want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := NormalizeCode(in); !errors.Is(err, ErrEmptyCode) {
			t.Errorf("NormalizeCode(%q) err = %v; want ErrEmptyCode", in, err)
		}
	}
}

// ----- Submit -----

func TestSubmit_PersistsThenPublishes(t *testing.T) {
	db := newServiceDB(t)
	pub := &fakePublisher{delivered: 1}
	s := &ComplimentService{DB: db, Publisher: pub}

	got, err := s.Submit(context.Background(), "hello1", "  you are great  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.RecipientCode != "HELLO1" {
		t.Fatalf("code = %q; want HELLO1", got.RecipientCode)
	}
	if got.Message != "you are great" {
		t.Fatalf("message = %q; want trimmed", got.Message)
	}
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("id/timestamp not assigned: %+v", got)
	}

	if len(pub.codes) != 1 || pub.codes[0] != "HELLO1" {
		t.Fatalf("publish codes = %v", pub.codes)
	}
	if pub.compliments[0].ID != got.ID {
		t.Fatalf("published a different record")
	}

	// Submit response and durable history agree.
	hist, err := s.History(context.Background(), "HELLO1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != got.ID {
		t.Fatalf("history = %+v", hist)
	}
}

func TestSubmit_ValidationProducesNoRowAndNoPublish(t *testing.T) {
	db := newServiceDB(t)
	pub := &fakePublisher{}
	s := &ComplimentService{DB: db, Publisher: pub}
	ctx := context.Background()

	tests := []struct {
		name    string
		code    string
		message string
		wantErr error
	}{
		{"empty code", "", "hi", ErrEmptyCode},
		{"blank code", "   ", "hi", ErrEmptyCode},
		{"empty message", "HELLO1", "", ErrEmptyMessage},
		{"whitespace message", "HELLO1", " \t\n ", ErrEmptyMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Submit(ctx, tc.code, tc.message); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v; want %v", err, tc.wantErr)
			}
		})
	}

	if len(pub.codes) != 0 {
		t.Fatalf("rejected submissions published: %v", pub.codes)
	}
	var n int64
	if err := db.Model(&domain.Compliment{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("store rows = %d (err %v); want 0", n, err)
	}
}

func TestSubmit_MessageLengthCap(t *testing.T) {
	db := newServiceDB(t)
	s := &ComplimentService{DB: db, MaxMessageRunes: 5}

	if _, err := s.Submit(context.Background(), "HELLO1", "☃☃☃☃☃☃"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("err = %v; want ErrMessageTooLong", err)
	}
	if _, err := s.Submit(context.Background(), "HELLO1", "☃☃☃☃☃"); err != nil {
		t.Fatalf("at-cap submit failed: %v", err)
	}
}

func TestSubmit_NilPublisherStillPersists(t *testing.T) {
	db := newServiceDB(t)
	s := &ComplimentService{DB: db}

	if _, err := s.Submit(context.Background(), "HELLO1", "hi"); err != nil {
		t.Fatalf("Submit without publisher: %v", err)
	}
}

func TestSubmit_ZeroSubscribersIsNotAnError(t *testing.T) {
	db := newServiceDB(t)
	s := &ComplimentService{DB: db, Publisher: &fakePublisher{delivered: 0}}

	if _, err := s.Submit(context.Background(), "HELLO1", "hi"); err != nil {
		t.Fatalf("Submit with empty room: %v", err)
	}
}

// ----- History -----

func TestHistory_NewestFirstOrdering(t *testing.T) {
	db := newServiceDB(t)
	s := &ComplimentService{DB: db}
	ctx := context.Background()

	a, err := s.Submit(ctx, "HELLO1", "A")
	if err != nil {
		t.Fatalf("submit A: %v", err)
	}
	b, err := s.Submit(ctx, "HELLO1", "B")
	if err != nil {
		t.Fatalf("submit B: %v", err)
	}
	db.Model(&domain.Compliment{}).Where("id = ?", b.ID).
		Update("created_at", a.CreatedAt.Add(time.Second))

	got, err := s.History(ctx, "HELLO1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 || got[0].Message != "B" || got[1].Message != "A" {
		var order []string
		for _, c := range got {
			order = append(order, c.Message)
		}
		t.Fatalf("order = [%s]; want [B A]", strings.Join(order, " "))
	}
}

func TestHistory_NormalizesCodeAndRejectsBlank(t *testing.T) {
	db := newServiceDB(t)
	s := &ComplimentService{DB: db}
	ctx := context.Background()

	if _, err := s.Submit(ctx, "HELLO1", "hi"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Lowercase lookup reaches the same partition.
	got, err := s.History(ctx, "hello1")
	if err != nil || len(got) != 1 {
		t.Fatalf("History(lowercase) = (%d records, %v)", len(got), err)
	}

	if _, err := s.History(ctx, "  "); !errors.Is(err, ErrEmptyCode) {
		t.Fatalf("blank code err = %v; want ErrEmptyCode", err)
	}
}

func TestHistory_EmptyCodeHistoryIsEmptySlice(t *testing.T) {
	db := newServiceDB(t)
	s := &ComplimentService{DB: db}

	got, err := s.History(context.Background(), "NOSUCH")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}
