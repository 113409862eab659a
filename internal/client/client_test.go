package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s1natex/todo-api-GO/internal/tasks"
)

type recorded struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorded) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func newAPI(t *testing.T) (*Client, *recorded) {
	t.Helper()
	reqIDs := &recorded{}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqIDs.mu.Lock()
			reqIDs.ids = append(reqIDs.ids, chimw.GetReqID(r.Context()))
			reqIDs.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	tasks.RegisterRoutes(r, tasks.NewManager(tasks.NewInMemoryRepo(), nil), slog.New(slog.NewJSONHandler(io.Discard, nil)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c, reqIDs
}

func TestClient_Lifecycle(t *testing.T) {
	c, reqIDs := newAPI(t)
	ctx := context.Background()

	items, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	created, err := c.Create(ctx, "renew passport")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.IsComplete)

	require.NoError(t, c.Update(ctx, created.ID, "renew passport and visa"))
	require.NoError(t, c.SetComplete(ctx, created.ID, true))

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "renew passport and visa", got.Description)
	assert.True(t, got.IsComplete)
	assert.False(t, got.ModifiedAt.IsZero())

	require.NoError(t, c.SetComplete(ctx, created.ID, false))
	require.NoError(t, c.Delete(ctx, created.ID))

	items, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	ids := reqIDs.all()
	require.NotEmpty(t, ids)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.Len(t, id, 36, "client sends a uuid request id")
		assert.False(t, seen[id], "request ids are unique")
		seen[id] = true
	}
}

func TestClient_NotFound(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	_, err := c.Get(ctx, 42)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
	assert.ErrorIs(t, c.Update(ctx, 42, "x"), tasks.ErrNotFound)
	assert.ErrorIs(t, c.SetComplete(ctx, 42, true), tasks.ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, 42), tasks.ErrNotFound)
}

func TestClient_ValidationError(t *testing.T) {
	c, _ := newAPI(t)

	_, err := c.Create(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, []string{"description: description is required"}, apiErr.Details)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080", nil)
	assert.Error(t, err)
}
