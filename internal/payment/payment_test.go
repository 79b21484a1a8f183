package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/platform/sentinel"
)

func TestRecorder_Check(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()
	rec.Settle("pay-1", 500)
	rec.MarkPending("pay-2")

	t.Run("settled reference confirms with amount", func(t *testing.T) {
		conf, err := rec.Check(ctx, "pay-1")
		require.NoError(t, err)
		assert.True(t, conf.Confirmed)
		assert.Equal(t, int64(500), conf.Amount)
	})

	t.Run("pending reference is known but unconfirmed", func(t *testing.T) {
		conf, err := rec.Check(ctx, "pay-2")
		require.NoError(t, err)
		assert.False(t, conf.Confirmed)
	})

	t.Run("unknown reference reports not found", func(t *testing.T) {
		_, err := rec.Check(ctx, "pay-missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("injected outage surfaces once", func(t *testing.T) {
		rec.FailWith(sentinel.ErrUnavailable)
		_, err := rec.Check(ctx, "pay-1")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)

		conf, err := rec.Check(ctx, "pay-1")
		require.NoError(t, err)
		assert.True(t, conf.Confirmed)
	})
}

func TestHTTPClient_Check(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payments/pay-1/status":
			_ = json.NewEncoder(w).Encode(Confirmation{Confirmed: true, Amount: 500})
		case "/v1/payments/pay-broken/status":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	ctx := context.Background()
	client := NewHTTPClient(server.URL, time.Second)

	t.Run("decodes a settled confirmation", func(t *testing.T) {
		conf, err := client.Check(ctx, "pay-1")
		require.NoError(t, err)
		assert.True(t, conf.Confirmed)
		assert.Equal(t, int64(500), conf.Amount)
	})

	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		_, err := client.Check(ctx, "pay-missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("5xx maps to ErrUnavailable", func(t *testing.T) {
		_, err := client.Check(ctx, "pay-broken")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
