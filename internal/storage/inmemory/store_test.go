package inmemory

import (
	"context"
	"testing"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage { return New() })
}

// newTestStore creates a store with one post for the tests below.
func newTestStore(t *testing.T) (*Store, *domain.Post) {
	store := New()
	post, err := store.CreatePost(context.Background(), &domain.Post{
		CreatorID: "user-1",
		Title:     "Test Post",
	})
	require.NoError(t, err)
	return store, post
}

func TestStore_CreatePost_AssignsIDAndTimestamps(t *testing.T) {
	_, post := newTestStore(t)

	assert.NotEmpty(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)
}

func TestStore_ReturnedPostsAreCopies(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	liked, err := store.AddLike(ctx, post.ID, "user-2")
	require.NoError(t, err)
	liked.Likes[0] = "tampered"
	liked.Title = "tampered"

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-2"}, got.Likes)
	assert.Equal(t, "Test Post", got.Title)
}

func TestStore_FailedMutationWritesNothing(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	before, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)

	_, err = store.UpdateCommentText(ctx, post.ID, "missing", "user-1", "text")
	require.ErrorIs(t, err, storage.ErrCommentNotFound)

	after, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestStore_MutationBumpsUpdatedAt(t *testing.T) {
	store, post := newTestStore(t)

	liked, err := store.AddLike(context.Background(), post.ID, "user-2")
	require.NoError(t, err)
	assert.False(t, liked.UpdatedAt.Before(post.UpdatedAt))
	assert.Equal(t, post.CreatedAt, liked.CreatedAt)
}
