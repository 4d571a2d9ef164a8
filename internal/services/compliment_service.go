// Package services – ComplimentService
//
// This file implements ComplimentService, the application-level component
// that owns compliment submission (the ingress path) and history retrieval.
// It validates inputs, normalizes recipient codes, persists via the repo
// layer, and hands accepted compliments to the live-delivery publisher.
//
// Ordering contract: a compliment is durable before it is published, so a
// history fetch racing with live delivery can never miss a record the
// submitter has already been told about. Publishing is fire-and-forget;
// nothing about delivery can fail the submission.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the recipient code and delivery counts.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/kudobox/kudos-backend/internal/domain"
	"github.com/kudobox/kudos-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Publisher delivers a persisted compliment to the live subscribers of a
// recipient code and reports how many were reached. Implementations must be
// safe for concurrent use and must not block on slow subscribers; delivery
// faults stay inside the implementation.
type Publisher interface {
	Publish(code string, compliment *domain.Compliment) int
}

// upperCaser performs Unicode-aware, locale-independent uppercasing of
// recipient codes.
var upperCaser = cases.Upper(language.Und)

// NormalizeCode trims and uppercases a recipient code. It returns
// ErrEmptyCode when nothing remains after trimming. Codes are not validated
// for format or uniqueness: they are client-generated capability tokens, and
// colliding codes intentionally merge their streams.
func NormalizeCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", ErrEmptyCode
	}
	return upperCaser.String(code), nil
}

// ComplimentService coordinates compliment persistence and live delivery.
type ComplimentService struct {
	DB *gorm.DB
	// Publisher receives every persisted compliment; nil disables live
	// delivery (useful in tests and one-shot tools).
	Publisher Publisher

	// MaxMessageRunes caps submissions by rune length; <= 0 disables the cap.
	MaxMessageRunes int
}

// Submit validates and persists a compliment for code, then publishes it to
// live subscribers. The returned record carries the server-assigned id and
// timestamp.
//
// Persistence failure aborts the submission and propagates the raw error.
// Publish happens strictly after the row is durable and its outcome is
// ignored apart from tracing: zero subscribers is normal, and subscriber
// faults are handled inside the Publisher.
func (s *ComplimentService) Submit(ctx context.Context, code, message string) (*domain.Compliment, error) {
	tr := otel.Tracer("services/ComplimentService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.String("recipient.code", code)),
	)
	defer span.End()

	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return nil, ErrMessageTooLong
	}

	compliment, err := repo.CreateCompliment(ctx, s.DB, code, message)
	if err != nil {
		return nil, err
	}

	if s.Publisher != nil {
		delivered := s.Publisher.Publish(code, compliment)
		span.SetAttributes(attribute.Int("delivered", delivered))
	}
	return compliment, nil
}

// History returns the full compliment history for code, newest first. A code
// with no compliments yields an empty slice, not an error; only a blank code
// is rejected.
func (s *ComplimentService) History(ctx context.Context, code string) ([]domain.Compliment, error) {
	tr := otel.Tracer("services/ComplimentService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(attribute.String("recipient.code", code)),
	)
	defer span.End()

	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	return repo.ListCompliments(ctx, s.DB, code)
}
