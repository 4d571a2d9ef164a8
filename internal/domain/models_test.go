package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTableNames(t *testing.T) {
	if got := (Compliment{}).TableName(); got != "compliments" {
		t.Fatalf("Compliment.TableName() = %q; want %q", got, "compliments")
	}
	if got := (Idempotency{}).TableName(); got != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q; want %q", got, "idempotency")
	}
}

func TestComplimentJSONShape(t *testing.T) {
	c := Compliment{
		ID:            "11111111-2222-3333-4444-555555555555",
		RecipientCode: "HELLO1",
		Message:       "you are great",
		CreatedAt:     time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, key := range []string{`"id"`, `"recipient_code"`, `"message"`, `"created_at"`} {
		if !strings.Contains(s, key) {
			t.Errorf("JSON missing key %s: %s", key, s)
		}
	}
	if strings.Contains(s, `"RecipientCode"`) {
		t.Errorf("JSON leaked Go field name: %s", s)
	}
}
