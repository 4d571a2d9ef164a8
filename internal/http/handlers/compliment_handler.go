// Compliment HTTP handlers.
//
// This file exposes REST endpoints for compliments:
//   - POST /compliments         (submit an anonymous compliment for a code)
//   - GET  /compliments/{code}  (full history for a code, newest first)
//
// Handlers are transport-thin:
//   - validate & normalize inputs
//   - delegate to application services (ComplimentService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the sender supplies an Idempotency-Key header and a previous successful
// result exists for (recipientCode, key), the handler returns that recorded
// compliment and sets `Idempotency-Replayed: true`. Retried submissions after
// a network failure therefore do not duplicate the compliment.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kudobox/kudos-backend/internal/domain"
	"github.com/kudobox/kudos-backend/internal/http/middleware"
	"github.com/kudobox/kudos-backend/internal/repo"
	"github.com/kudobox/kudos-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ComplimentService defines the compliment operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ComplimentService interface {
	// Submit validates and persists a compliment, then publishes it to live
	// subscribers of the recipient code.
	Submit(ctx context.Context, code, message string) (*domain.Compliment, error)
	// History returns every compliment for a code, newest first.
	History(ctx context.Context, code string) ([]domain.Compliment, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the compliments API. It depends on an
// abstract service interface to keep transport concerns separate from
// business logic.
type Handlers struct {
	svc ComplimentService

	// IdempotencyTTL bounds how long a recorded Idempotency-Key replay stays
	// valid; zero selects a 24h default.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given service.
func New(svc ComplimentService) *Handlers {
	return &Handlers{svc: svc}
}

//
// DTOs
//

// SubmitComplimentRequest is the JSON payload for submitting a compliment.
type SubmitComplimentRequest struct {
	// RecipientCode identifies the inbox the compliment is addressed to.
	RecipientCode string `json:"recipientCode" binding:"required,min=1" example:"HELLO1"`
	// Message is the compliment text. It must be non-empty after trimming.
	Message string `json:"message" binding:"required,min=1" example:"you are great"`
}

// ListComplimentsResponse wraps the full history of a recipient code.
type ListComplimentsResponse struct {
	Compliments []domain.Compliment `json:"compliments"`
}

//
// Helpers
//

// db exposes the concrete service's gorm handle for best-effort concerns
// (idempotency records, ETag stats). Returns nil when the service is a fake.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.svc.(*services.ComplimentService); ok {
		return svc.DB
	}
	return nil
}

//
// Handlers
//

// PostCompliment godoc
// @ID          postCompliment
// @Summary     Submit an anonymous compliment
// @Description Persists a compliment for the recipient code and pushes it to
// @Description every live session watching that code.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Compliments
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SubmitComplimentRequest  true  "Compliment payload"
//
// @Success     201  {object}  domain.Compliment
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /compliments [post]
func (h *Handlers) PostCompliment(c *gin.Context) {
	ctx := c.Request.Context()

	var req SubmitComplimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipientCode and message required")
		return
	}

	code, err := services.NormalizeCode(req.RecipientCode)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipientCode required")
		return
	}

	// Idempotency (replay path) – only when the validator flagged the key as
	// seen; a fresh key skips the extra lookups entirely.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && middleware.IsReplay(c) {
		if db := h.db(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, code, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetCompliment(ctx, db, rec.ComplimentID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, prev)
					return
				}
			}
		}
	}

	created, err := h.svc.Submit(ctx, req.RecipientCode, req.Message)
	if err != nil {
		switch err {
		case services.ErrEmptyCode:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipientCode required")
		case services.ErrEmptyMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		case services.ErrMessageTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if db := h.db(); db != nil {
			ttl := h.IdempotencyTTL
			if ttl <= 0 {
				ttl = 24 * time.Hour
			}
			_, _ = repo.CreateIdempotency(ctx, db, created.RecipientCode, idemKey, created.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, created)
}

// ListCompliments godoc
// @ID          listCompliments
// @Summary     List compliments for a recipient code
// @Description Returns the full compliment history for the code, newest first.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Compliments
// @Produce     json
//
// @Param       code           path    string  true  "Recipient code"              example(HELLO1)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object} handlers.ListComplimentsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /compliments/{code} [get]
func (h *Handlers) ListCompliments(c *gin.Context) {
	ctx := c.Request.Context()

	code, err := services.NormalizeCode(c.Param("code"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code required")
		return
	}

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.ComplimentStats(ctx, db, code)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"compliments:%s:%d:%d"`, code, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.svc.History(ctx, code)
	if err != nil {
		switch err {
		case services.ErrEmptyCode:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ListComplimentsResponse{Compliments: items})
}
