package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/query"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти.
// Все мутации идут под одной блокировкой, поэтому атомарны относительно друг друга.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	accountEmail map[string]string // map[email]accountID
	posts        map[string]*domain.Post
}

// New создает новое пустое хранилище в памяти.
func New() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		accountEmail: make(map[string]string),
		posts:        make(map[string]*domain.Post),
	}
}

func (s *Store) Ping(ctx context.Context) error  { return nil }
func (s *Store) Close(ctx context.Context) error { return nil }

// === Account Methods ===

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accountEmail[account.Email]; taken {
		return nil, fmt.Errorf("create account %q: %w", account.Email, storage.ErrDuplicateEmail)
	}

	a := *account
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	s.accounts[a.ID] = &a
	s.accountEmail[a.Email] = a.ID
	out := a
	return &out, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	out := *a
	return &out, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountEmail[email]
	if !ok {
		return nil, fmt.Errorf("account with email %q: %w", email, storage.ErrNotFound)
	}
	out := *s.accounts[id]
	return &out, nil
}

func (s *Store) GetAccountsByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out := *a
			result[id] = &out
		}
	}
	return result, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	if patch.Email != nil && *patch.Email != a.Email {
		if owner, taken := s.accountEmail[*patch.Email]; taken && owner != id {
			return nil, fmt.Errorf("update account %s: %w", id, storage.ErrDuplicateEmail)
		}
		delete(s.accountEmail, a.Email)
		a.Email = *patch.Email
		s.accountEmail[a.Email] = id
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	a.UpdatedAt = time.Now().UTC()

	out := *a
	return &out, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := post.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.posts[p.ID] = p
	return p.Clone(), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) ListPosts(ctx context.Context, q query.Query) ([]*domain.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if matches(p, q) {
			matched = append(matched, p)
		}
	}

	less := lessFunc(q.Sort.Field)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case less(a, b):
			return q.Sort.Order == query.Asc
		case less(b, a):
			return q.Sort.Order != query.Asc
		}
		if q.Sort.Order == query.Asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	total := int64(len(matched))
	start := q.Skip()
	if start < 0 || start >= len(matched) {
		return []*domain.Post{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.Post, 0, end-start)
	for _, p := range matched[start:end] {
		page = append(page, p.Clone())
	}
	return page, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (*domain.Post, error) {
	return s.mutate(id, func(p *domain.Post) error {
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.ImageURL != nil {
			p.ImageURL = *patch.ImageURL
		}
		return nil
	})
}

func (s *Store) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	delete(s.posts, id)
	return p, nil
}

// === Like Methods ===

func (s *Store) AddLike(ctx context.Context, postID, accountID string) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		if p.HasLike(accountID) {
			return storage.ErrAlreadyLiked
		}
		p.Likes = append(p.Likes, accountID)
		return nil
	})
}

func (s *Store) RemoveLike(ctx context.Context, postID, accountID string) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		i := slices.Index(p.Likes, accountID)
		if i < 0 {
			return storage.ErrNotLiked
		}
		p.Likes = slices.Delete(p.Likes, i, i+1)
		return nil
	})
}

// === Comment Methods ===

func (s *Store) AppendComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		comment.Replies = append([]domain.Reply{}, comment.Replies...)
		p.Comments = append(p.Comments, comment)
		return nil
	})
}

func (s *Store) UpdateCommentText(ctx context.Context, postID, commentID, authorID, text string) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		i := ownCommentIndex(p, commentID, authorID)
		if i < 0 {
			return storage.ErrCommentNotFound
		}
		p.Comments[i].Text = text
		return nil
	})
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID, authorID string) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		i := ownCommentIndex(p, commentID, authorID)
		if i < 0 {
			return storage.ErrCommentNotFound
		}
		p.Comments = slices.Delete(p.Comments, i, i+1)
		return nil
	})
}

// === Reply Methods ===

func (s *Store) AppendReply(ctx context.Context, postID, commentID string, reply domain.Reply) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		ci := commentIndex(p, commentID)
		if ci < 0 {
			return storage.ErrCommentNotFound
		}
		p.Comments[ci].Replies = append(p.Comments[ci].Replies, reply)
		return nil
	})
}

func (s *Store) UpdateReplyText(ctx context.Context, postID, commentID, replyID, authorID, text string) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		ci, ri, err := ownReplyIndex(p, commentID, replyID, authorID)
		if err != nil {
			return err
		}
		p.Comments[ci].Replies[ri].Text = text
		return nil
	})
}

func (s *Store) DeleteReply(ctx context.Context, postID, commentID, replyID, authorID string) (*domain.Post, error) {
	return s.mutate(postID, func(p *domain.Post) error {
		ci, ri, err := ownReplyIndex(p, commentID, replyID, authorID)
		if err != nil {
			return err
		}
		p.Comments[ci].Replies = slices.Delete(p.Comments[ci].Replies, ri, ri+1)
		return nil
	})
}

// mutate применяет fn к посту под блокировкой записи. fn работает с копией, и копия
// заменяет сохраненный пост только если fn вернула nil.
func (s *Store) mutate(postID string, fn func(p *domain.Post) error) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, fmt.Errorf("post %s: %w", postID, err)
	}
	next.UpdatedAt = time.Now().UTC()
	s.posts[postID] = next
	return next.Clone(), nil
}

// === Helpers ===

func commentIndex(p *domain.Post, commentID string) int {
	return slices.IndexFunc(p.Comments, func(c domain.Comment) bool { return c.ID == commentID })
}

func ownCommentIndex(p *domain.Post, commentID, authorID string) int {
	return slices.IndexFunc(p.Comments, func(c domain.Comment) bool {
		return c.ID == commentID && c.AuthorID == authorID
	})
}

func ownReplyIndex(p *domain.Post, commentID, replyID, authorID string) (int, int, error) {
	ci := commentIndex(p, commentID)
	if ci < 0 {
		return -1, -1, storage.ErrCommentNotFound
	}
	ri := slices.IndexFunc(p.Comments[ci].Replies, func(r domain.Reply) bool {
		return r.ID == replyID && r.AuthorID == authorID
	})
	if ri < 0 {
		return -1, -1, storage.ErrReplyNotFound
	}
	return ci, ri, nil
}

func fieldValue(p *domain.Post, field string) string {
	switch field {
	case "title":
		return p.Title
	case "description":
		return p.Description
	case "imageUrl":
		return p.ImageURL
	case "creatorId":
		return p.CreatorID
	case "id":
		return p.ID
	}
	return ""
}

func matches(p *domain.Post, q query.Query) bool {
	if q.SearchTerm != "" {
		term := strings.ToLower(q.SearchTerm)
		found := false
		for _, field := range q.SearchFields {
			if strings.Contains(strings.ToLower(fieldValue(p, field)), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, f := range q.Filters {
		if fieldValue(p, f.Field) != f.Value {
			return false
		}
	}
	return true
}

func lessFunc(field string) func(a, b *domain.Post) bool {
	switch field {
	case "updatedAt":
		return func(a, b *domain.Post) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "createdAt":
		return func(a, b *domain.Post) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return func(a, b *domain.Post) bool { return fieldValue(a, field) < fieldValue(b, field) }
	}
}
