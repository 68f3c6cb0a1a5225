package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/bidworks/internal/service"
)

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{log: zerolog.Nop()}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"permission denied", service.ErrPermissionDenied, http.StatusForbidden},
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"lead limit", service.ErrLeadLimitExceeded, http.StatusPaymentRequired},
		{"job not open", service.ErrJobNotOpen, http.StatusConflict},
		{"duplicate bid", service.ErrDuplicateBid, http.StatusConflict},
		{"bid already decided", service.ErrBidAlreadyDecided, http.StatusConflict},
		{"job has accepted bid", service.ErrJobHasAcceptedBid, http.StatusConflict},
		{"decision conflict", service.ErrConflict, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)
			h.handleError(c, tc.err)
			if recorder.Code != tc.want {
				t.Fatalf("status = %d, want %d", recorder.Code, tc.want)
			}
		})
	}

	t.Run("wrapped errors keep their status", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(recorder)
		h.handleError(c, errors.Join(errors.New("context"), service.ErrNotFound))
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
		}
	})
}

func TestPaymentWebhookSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{webhookSecret: "gateway-secret", log: zerolog.Nop()}

	post := func(t *testing.T, secret string) *httptest.ResponseRecorder {
		t.Helper()
		recorder := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(recorder)
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set("X-Webhook-Secret", secret)
		}
		c.Request = req
		h.paymentWebhook(c)
		return recorder
	}

	t.Run("missing secret", func(t *testing.T) {
		if got := post(t, "").Code; got != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", got, http.StatusUnauthorized)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		if got := post(t, "not-the-secret").Code; got != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", got, http.StatusUnauthorized)
		}
	})

	t.Run("valid secret reaches body validation", func(t *testing.T) {
		if got := post(t, "gateway-secret").Code; got != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", got, http.StatusBadRequest)
		}
	})
}

func TestParseDate(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		parsed, err := parseDate("2026-08-10T15:04:05Z")
		if err != nil {
			t.Fatalf("parseDate: %v", err)
		}
		want := time.Date(2026, 8, 10, 15, 4, 5, 0, time.UTC)
		if !parsed.Equal(want) {
			t.Fatalf("parsed = %s, want %s", parsed, want)
		}
	})

	t.Run("date only", func(t *testing.T) {
		parsed, err := parseDate("2026-08-10")
		if err != nil {
			t.Fatalf("parseDate: %v", err)
		}
		want := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
		if !parsed.Equal(want) {
			t.Fatalf("parsed = %s, want %s", parsed, want)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, raw := range []string{"", "  ", "soon", "10/08/2026"} {
			if _, err := parseDate(raw); !errors.Is(err, service.ErrInvalidInput) {
				t.Fatalf("parseDate(%q): expected ErrInvalidInput, got %v", raw, err)
			}
		}
	})
}
