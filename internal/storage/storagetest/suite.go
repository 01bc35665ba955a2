// Package storagetest holds the behavioural suite every storage backend must pass.
package storagetest

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/query"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Storage

var listConfig = query.Config{
	SearchableFields: []string{"title", "description"},
	FilterableFields: []string{"title", "creatorId"},
	SortableFields:   []string{"createdAt", "updatedAt", "title"},
	DefaultSort:      query.Sort{Field: "createdAt", Order: query.Desc},
	DefaultPage:      1,
	DefaultLimit:     10,
	MaxLimit:         100,
}

// Run executes the whole suite against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"Ping", testPing},
		{"CreateAndGetAccount", testCreateAndGetAccount},
		{"DuplicateEmail", testDuplicateEmail},
		{"UpdateAccount", testUpdateAccount},
		{"SetPasswordHash", testSetPasswordHash},
		{"GetAccountsByIDs", testGetAccountsByIDs},
		{"CreateAndGetPost", testCreateAndGetPost},
		{"UpdateAndDeletePost", testUpdateAndDeletePost},
		{"ListPosts", testListPosts},
		{"ListPostsTieOrder", testListPostsTieOrder},
		{"Likes", testLikes},
		{"ConcurrentLikes", testConcurrentLikes},
		{"Comments", testComments},
		{"ConcurrentComments", testConcurrentComments},
		{"Replies", testReplies},
		{"DeleteCommentRemovesReplies", testDeleteCommentRemovesReplies},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// === Fixtures ===

func newAccount(t *testing.T, s storage.Storage, name string) *domain.Account {
	t.Helper()
	a, err := s.CreateAccount(context.Background(), &domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return a
}

func newPost(t *testing.T, s storage.Storage, creatorID, title string) *domain.Post {
	t.Helper()
	p, err := s.CreatePost(context.Background(), &domain.Post{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Title:       title,
		ImageURL:    "https://img.example.com/1.png",
		Description: "description of " + title,
		Likes:       []string{},
		Comments:    []domain.Comment{},
	})
	require.NoError(t, err)
	return p
}

func newComment(authorID, text string) domain.Comment {
	return domain.Comment{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		Replies:   []domain.Reply{},
	}
}

func newReply(authorID, text string) domain.Reply {
	return domain.Reply{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// === Accounts ===

func testPing(t *testing.T, s storage.Storage) {
	assert.NoError(t, s.Ping(context.Background()))
}

func testCreateAndGetAccount(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	byID, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, byID.Email)
	assert.Equal(t, "hash", byID.PasswordHash)

	byEmail, err := s.GetAccountByEmail(ctx, a.Email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEmail.ID)

	_, err = s.GetAccountByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetAccountByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")

	_, err := s.CreateAccount(ctx, &domain.Account{ID: uuid.NewString(), Name: "clone", Email: a.Email, PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)

	got, err := s.GetAccountByEmail(ctx, a.Email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func testUpdateAccount(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")

	name := "Alice Liddell"
	email := "liddell-" + uuid.NewString()[:8] + "@example.com"
	updated, err := s.UpdateAccount(ctx, a.ID, domain.AccountPatch{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, email, updated.Email)

	_, err = s.GetAccountByEmail(ctx, a.Email)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Keeping one's own email is not a conflict.
	_, err = s.UpdateAccount(ctx, a.ID, domain.AccountPatch{Email: &email})
	require.NoError(t, err)

	_, err = s.UpdateAccount(ctx, b.ID, domain.AccountPatch{Email: &email})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)

	_, err = s.UpdateAccount(ctx, uuid.NewString(), domain.AccountPatch{Name: &name})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSetPasswordHash(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")

	require.NoError(t, s.SetPasswordHash(ctx, a.ID, "new-hash"))
	got, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	assert.ErrorIs(t, s.SetPasswordHash(ctx, uuid.NewString(), "x"), storage.ErrNotFound)
}

func testGetAccountsByIDs(t *testing.T, s storage.Storage) {
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")
	missing := uuid.NewString()

	got, err := s.GetAccountsByIDs(context.Background(), []string{a.ID, b.ID, missing})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "alice", got[a.ID].Name)
	assert.Equal(t, "bob", got[b.ID].Name)
	assert.NotContains(t, got, missing)
}

// === Posts ===

func testCreateAndGetPost(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	p := newPost(t, s, a.ID, "First")

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.CreatorID)
	assert.Equal(t, "First", got.Title)
	assert.Empty(t, got.Likes)
	assert.Empty(t, got.Comments)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetPostByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateAndDeletePost(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	p := newPost(t, s, a.ID, "Draft")

	title := "Final"
	updated, err := s.UpdatePost(ctx, p.ID, domain.PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, p.Description, updated.Description)
	assert.Equal(t, a.ID, updated.CreatorID)

	_, err = s.UpdatePost(ctx, uuid.NewString(), domain.PostPatch{Title: &title})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.AppendComment(ctx, p.ID, newComment(a.ID, "bye"))
	require.NoError(t, err)

	deleted, err := s.DeletePost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, deleted.ID)

	_, err = s.GetPostByID(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.DeletePost(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListPosts(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")

	newPost(t, s, a.ID, "Learning Go")
	newPost(t, s, a.ID, "Cooking pasta")
	newPost(t, s, b.ID, "GOLANG tips")
	newPost(t, s, b.ID, "Baking bread")

	posts, total, err := s.ListPosts(ctx, query.Build(url.Values{}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, posts, 4)

	posts, total, err = s.ListPosts(ctx, query.Build(url.Values{"searchTerm": {"go"}}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	titles := []string{posts[0].Title, posts[1].Title}
	assert.ElementsMatch(t, []string{"Learning Go", "GOLANG tips"}, titles)

	posts, total, err = s.ListPosts(ctx, query.Build(url.Values{"searchTerm": {"go"}, "creatorId": {b.ID}}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "GOLANG tips", posts[0].Title)

	// Description matches too ("description of Cooking pasta").
	_, total, err = s.ListPosts(ctx, query.Build(url.Values{"searchTerm": {"PASTA"}}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	posts, total, err = s.ListPosts(ctx, query.Build(url.Values{
		"sortBy": {"title"}, "sortOrder": {"asc"}, "limit": {"3"}, "page": {"1"},
	}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, posts, 3)
	assert.Equal(t, "Baking bread", posts[0].Title)
	assert.Equal(t, "Cooking pasta", posts[1].Title)
	assert.Equal(t, "GOLANG tips", posts[2].Title)

	posts, _, err = s.ListPosts(ctx, query.Build(url.Values{
		"sortBy": {"title"}, "sortOrder": {"asc"}, "limit": {"3"}, "page": {"2"},
	}, listConfig))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Learning Go", posts[0].Title)

	posts, total, err = s.ListPosts(ctx, query.Build(url.Values{"page": {"9"}}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, posts)

	posts, total, err = s.ListPosts(ctx, query.Build(url.Values{"page": {"100000000000000000"}, "limit": {"100"}}, listConfig))
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, posts)
}

// Equal sort keys fall back to the id in the requested direction.
func testListPostsTieOrder(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")

	ids := []string{
		newPost(t, s, a.ID, "Same title").ID,
		newPost(t, s, a.ID, "Same title").ID,
		newPost(t, s, a.ID, "Same title").ID,
	}
	slices.Sort(ids)

	for _, order := range []string{"asc", "desc"} {
		want := slices.Clone(ids)
		if order == "desc" {
			slices.Reverse(want)
		}
		posts, _, err := s.ListPosts(ctx, query.Build(url.Values{"sortBy": {"title"}, "sortOrder": {order}}, listConfig))
		require.NoError(t, err)
		got := make([]string, 0, len(posts))
		for _, p := range posts {
			got = append(got, p.ID)
		}
		assert.Equal(t, want, got, order)
	}
}

// === Likes ===

func testLikes(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")
	p := newPost(t, s, a.ID, "Likeable")

	_, err := s.RemoveLike(ctx, p.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrNotLiked)

	liked, err := s.AddLike(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, liked.Likes)

	_, err = s.AddLike(ctx, p.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrAlreadyLiked)

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.Likes)

	unliked, err := s.RemoveLike(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, unliked.Likes)

	_, err = s.AddLike(ctx, uuid.NewString(), b.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.RemoveLike(ctx, uuid.NewString(), b.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testConcurrentLikes(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	owner := newAccount(t, s, "owner")
	p := newPost(t, s, owner.ID, "Popular")

	const n = 16
	likers := make([]string, n)
	for i := range likers {
		likers[i] = newAccount(t, s, fmt.Sprintf("liker%d", i)).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*2)
	for _, id := range likers {
		wg.Add(2)
		// Each account likes twice at once: exactly one of the two must win.
		for j := 0; j < 2; j++ {
			go func(id string) {
				defer wg.Done()
				_, err := s.AddLike(ctx, p.ID, id)
				errs <- err
			}(id)
		}
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrAlreadyLiked)
		dup++
	}
	assert.Equal(t, n, ok)
	assert.Equal(t, n, dup)

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, likers, got.Likes)
}

// === Comments ===

func testComments(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")
	p := newPost(t, s, a.ID, "Discuss")

	c := newComment(a.ID, "hello")
	withComment, err := s.AppendComment(ctx, p.ID, c)
	require.NoError(t, err)
	require.Len(t, withComment.Comments, 1)
	assert.Equal(t, c.ID, withComment.Comments[0].ID)
	assert.Equal(t, "hello", withComment.Comments[0].Text)
	assert.Empty(t, withComment.Comments[0].Replies)

	_, err = s.AppendComment(ctx, uuid.NewString(), newComment(a.ID, "orphan"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Another account cannot address alice's comment.
	_, err = s.UpdateCommentText(ctx, p.ID, c.ID, b.ID, "hijacked")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)
	_, err = s.DeleteComment(ctx, p.ID, c.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "hello", got.Comments[0].Text)

	updated, err := s.UpdateCommentText(ctx, p.ID, c.ID, a.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", updated.Comments[0].Text)

	_, err = s.UpdateCommentText(ctx, p.ID, uuid.NewString(), a.ID, "nope")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)
	_, err = s.UpdateCommentText(ctx, uuid.NewString(), c.ID, a.ID, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	second := newComment(b.ID, "second")
	_, err = s.AppendComment(ctx, p.ID, second)
	require.NoError(t, err)

	afterDelete, err := s.DeleteComment(ctx, p.ID, c.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, afterDelete.Comments, 1)
	assert.Equal(t, second.ID, afterDelete.Comments[0].ID)
}

func testConcurrentComments(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	p := newPost(t, s, a.ID, "Busy thread")

	const n = 16
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		c := newComment(a.ID, fmt.Sprintf("comment %d", i))
		ids[i] = c.ID
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AppendComment(ctx, p.ID, c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	gotIDs := make([]string, 0, len(got.Comments))
	for _, c := range got.Comments {
		gotIDs = append(gotIDs, c.ID)
	}
	assert.ElementsMatch(t, ids, gotIDs)
}

// === Replies ===

func testReplies(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")
	p := newPost(t, s, a.ID, "Thread")

	c := newComment(a.ID, "root")
	_, err := s.AppendComment(ctx, p.ID, c)
	require.NoError(t, err)

	_, err = s.AppendReply(ctx, p.ID, uuid.NewString(), newReply(b.ID, "lost"))
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Empty(t, got.Comments[0].Replies)

	r1 := newReply(b.ID, "first reply")
	r2 := newReply(a.ID, "second reply")
	_, err = s.AppendReply(ctx, p.ID, c.ID, r1)
	require.NoError(t, err)
	withReplies, err := s.AppendReply(ctx, p.ID, c.ID, r2)
	require.NoError(t, err)
	require.Len(t, withReplies.Comments[0].Replies, 2)
	assert.Equal(t, r1.ID, withReplies.Comments[0].Replies[0].ID)
	assert.Equal(t, r2.ID, withReplies.Comments[0].Replies[1].ID)

	_, err = s.UpdateReplyText(ctx, p.ID, c.ID, r1.ID, a.ID, "not mine")
	assert.ErrorIs(t, err, storage.ErrReplyNotFound)
	_, err = s.UpdateReplyText(ctx, p.ID, uuid.NewString(), r1.ID, b.ID, "x")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)

	updated, err := s.UpdateReplyText(ctx, p.ID, c.ID, r1.ID, b.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Comments[0].Replies[0].Text)
	assert.Equal(t, "second reply", updated.Comments[0].Replies[1].Text)
	assert.Equal(t, "root", updated.Comments[0].Text)

	_, err = s.DeleteReply(ctx, p.ID, c.ID, r2.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrReplyNotFound)

	deleted, err := s.DeleteReply(ctx, p.ID, c.ID, r2.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, deleted.Comments[0].Replies, 1)
	assert.Equal(t, r1.ID, deleted.Comments[0].Replies[0].ID)

	_, err = s.DeleteReply(ctx, uuid.NewString(), c.ID, r1.ID, b.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDeleteCommentRemovesReplies(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := newAccount(t, s, "alice")
	b := newAccount(t, s, "bob")
	p := newPost(t, s, a.ID, "Cascade")

	c := newComment(a.ID, "parent")
	_, err := s.AppendComment(ctx, p.ID, c)
	require.NoError(t, err)
	r := newReply(b.ID, "child")
	_, err = s.AppendReply(ctx, p.ID, c.ID, r)
	require.NoError(t, err)

	_, err = s.DeleteComment(ctx, p.ID, c.ID, a.ID)
	require.NoError(t, err)

	got, err := s.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Comments)

	// The reply went with its comment, so it is no longer addressable.
	_, err = s.UpdateReplyText(ctx, p.ID, c.ID, r.ID, b.ID, "ghost")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)
}
