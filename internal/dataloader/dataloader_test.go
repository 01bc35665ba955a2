package dataloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts batch lookups.
type countingStore struct {
	storage.AccountStore
	calls atomic.Int32
}

func (c *countingStore) GetAccountsByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	c.calls.Add(1)
	return c.AccountStore.GetAccountsByIDs(ctx, ids)
}

func newTestStore(t *testing.T) (*countingStore, []string) {
	store := inmemory.New()
	var ids []string
	for _, name := range []string{"Ann", "Bob"} {
		a, err := store.CreateAccount(context.Background(), &domain.Account{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	return &countingStore{AccountStore: store}, ids
}

func TestResolver_WithoutLoaders(t *testing.T) {
	store, ids := newTestStore(t)
	r := NewResolver(store)

	names, err := r.Names(context.Background(), append(ids, "missing"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ids[0]: "Ann", ids[1]: "Bob"}, names)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestResolver_EmptyIDs(t *testing.T) {
	store, _ := newTestStore(t)

	names, err := NewResolver(store).Names(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, int32(0), store.calls.Load())
}

func TestMiddleware_BatchesAndCaches(t *testing.T) {
	store, ids := newTestStore(t)
	r := NewResolver(store)

	var first, second map[string]string
	handler := Middleware(store, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.NotNil(t, For(req.Context()))

		var err error
		first, err = r.Names(req.Context(), append(ids, "missing"))
		require.NoError(t, err)
		second, err = r.Names(req.Context(), ids)
		require.NoError(t, err)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, map[string]string{ids[0]: "Ann", ids[1]: "Bob"}, first)
	assert.Equal(t, first, second)
	// The second lookup is served from the request's cache.
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestFor_OutsideRequest(t *testing.T) {
	assert.Nil(t, For(context.Background()))
}
