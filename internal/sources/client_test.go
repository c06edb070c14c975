package sources

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-radar/internal/throttle"
)

func TestClient_GetJSON(t *testing.T) {
	srv, _ := serve(t, "application/json", `{"name":"acme"}`)
	client := NewClient("acme", throttle.NewPacer(0, 1, 0, 0), nil)

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "acme", out.Name)
	assert.Equal(t, "acme", client.Source())
}

func TestClient_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status     int
		retryAfter string
		kind       Kind
	}{
		{http.StatusServiceUnavailable, "", Transient},
		{http.StatusTooManyRequests, "5", RateLimited},
		{http.StatusForbidden, "", Permanent},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newStatusServer(t, tt.status, tt.retryAfter)
			client := NewClient("src", nil, nil)

			_, err := client.Get(context.Background(), srv.URL, nil)
			require.Error(t, err)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.status, se.StatusCode)
			if tt.retryAfter != "" {
				assert.Equal(t, 5*time.Second, se.RetryAfter)
			}
		})
	}
}

func TestClient_CancelledContext(t *testing.T) {
	srv, reqs := serve(t, "application/json", `{}`)
	client := NewClient("src", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Get(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reqs.URIs())
}

func TestClient_WaitsOnPacer(t *testing.T) {
	srv, reqs := serve(t, "application/json", `{}`)
	pacer := throttle.NewPacer(time.Hour, 1, 0, 0)
	client := NewClient("src", pacer, nil)

	_, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, reqs.URIs(), 1)
}
