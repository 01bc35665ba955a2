// Package blog implements posts, likes, comments and replies together with their ownership rules.
package blog

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/query"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/google/uuid"
)

// ListConfig is what GET /blog accepts.
var ListConfig = query.Config{
	SearchableFields: []string{"title", "description"},
	FilterableFields: []string{"title", "creatorId"},
	SortableFields:   []string{"createdAt", "updatedAt", "title"},
	DefaultSort:      query.Sort{Field: "createdAt", Order: query.Desc},
	DefaultPage:      1,
	DefaultLimit:     10,
	MaxLimit:         100,
}

// AuthorResolver maps account ids to display names; unknown ids are left out.
type AuthorResolver interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

type Service struct {
	posts    storage.PostStore
	accounts storage.AccountStore
	authors  AuthorResolver
	events   events.Publisher
	now      func() time.Time
	newID    func() string
}

// NewService wires the service. A nil publisher discards events.
func NewService(posts storage.PostStore, accounts storage.AccountStore, authors AuthorResolver, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Service{
		posts:    posts,
		accounts: accounts,
		authors:  authors,
		events:   publisher,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

type CreatePostInput struct {
	Title       string
	ImageURL    string
	Description string
}

// Page is one page of a post listing.
type Page struct {
	Posts []*domain.PostView `json:"posts"`
	Meta  domain.PageMeta    `json:"meta"`
}

// === Posts ===

func (s *Service) CreatePost(ctx context.Context, id domain.Identity, in CreatePostInput) (*domain.PostView, error) {
	actor, err := s.actor(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := s.posts.CreatePost(ctx, &domain.Post{
		ID:          s.newID(),
		CreatorID:   actor.ID,
		Title:       in.Title,
		ImageURL:    in.ImageURL,
		Description: in.Description,
		Likes:       []string{},
		Comments:    []domain.Comment{},
	})
	if err != nil {
		return nil, internal("failed to create post", err)
	}
	s.publish(ctx, events.Event{Type: events.PostCreated, PostID: p.ID, ActorID: actor.ID})
	return s.view(ctx, p)
}

func (s *Service) ListPosts(ctx context.Context, raw url.Values) (*Page, error) {
	q := query.Build(raw, ListConfig)

	posts, total, err := s.posts.ListPosts(ctx, q)
	if err != nil {
		return nil, internal("failed to list posts", err)
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, p := range posts {
		for _, id := range p.AuthorIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	names, err := s.authors.Names(ctx, ids)
	if err != nil {
		return nil, internal("failed to resolve authors", err)
	}

	page := &Page{
		Posts: make([]*domain.PostView, 0, len(posts)),
		Meta:  domain.PageMeta{Page: q.Page, Limit: q.Limit, TotalCount: total},
	}
	for _, p := range posts {
		page.Posts = append(page.Posts, domain.NewPostView(p, names))
	}
	return page, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (*domain.PostView, error) {
	p, err := s.fetch(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p)
}

func (s *Service) UpdatePost(ctx context.Context, id domain.Identity, postID string, patch domain.PostPatch) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(p, actor.ID); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, domain.BadRequest("nothing to update")
	}

	updated, err := s.posts.UpdatePost(ctx, postID, patch)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	s.publish(ctx, events.Event{Type: events.PostUpdated, PostID: postID, ActorID: actor.ID})
	return s.view(ctx, updated)
}

// DeletePost removes the post together with its likes, comments and replies.
func (s *Service) DeletePost(ctx context.Context, id domain.Identity, postID string) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if err := requireCreator(p, actor.ID); err != nil {
		return nil, err
	}

	deleted, err := s.posts.DeletePost(ctx, postID)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	s.publish(ctx, events.Event{Type: events.PostDeleted, PostID: postID, ActorID: actor.ID})
	return s.view(ctx, deleted)
}

// === Likes ===

func (s *Service) Like(ctx context.Context, id domain.Identity, postID string) (*domain.PostView, error) {
	actor, _, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}

	p, err := s.posts.AddLike(ctx, postID, actor.ID)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	s.publish(ctx, events.Event{Type: events.PostLiked, PostID: postID, ActorID: actor.ID})
	return s.view(ctx, p)
}

func (s *Service) Unlike(ctx context.Context, id domain.Identity, postID string) (*domain.PostView, error) {
	actor, _, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}

	p, err := s.posts.RemoveLike(ctx, postID, actor.ID)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	s.publish(ctx, events.Event{Type: events.PostUnliked, PostID: postID, ActorID: actor.ID})
	return s.view(ctx, p)
}

// === Comments ===

func (s *Service) AddComment(ctx context.Context, id domain.Identity, postID, text string) (*domain.PostView, error) {
	actor, _, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}

	comment := domain.Comment{
		ID:        s.newID(),
		AuthorID:  actor.ID,
		Text:      text,
		CreatedAt: s.now(),
		Replies:   []domain.Reply{},
	}
	p, err := s.posts.AppendComment(ctx, postID, comment)
	if err != nil {
		return nil, translate(err, msgCommentNotFound)
	}
	s.publish(ctx, events.Event{Type: events.CommentAdded, PostID: postID, ActorID: actor.ID, CommentID: comment.ID})
	return s.view(ctx, p)
}

func (s *Service) UpdateComment(ctx context.Context, id domain.Identity, postID, commentID, text string) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if _, err := findOwnComment(p, commentID, actor.ID); err != nil {
		return nil, err
	}

	updated, err := s.posts.UpdateCommentText(ctx, postID, commentID, actor.ID, text)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	s.publish(ctx, events.Event{Type: events.CommentUpdated, PostID: postID, ActorID: actor.ID, CommentID: commentID})
	return s.view(ctx, updated)
}

// DeleteComment removes the caller's comment and every reply under it.
func (s *Service) DeleteComment(ctx context.Context, id domain.Identity, postID, commentID string) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if _, err := findOwnComment(p, commentID, actor.ID); err != nil {
		return nil, err
	}

	updated, err := s.posts.DeleteComment(ctx, postID, commentID, actor.ID)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	s.publish(ctx, events.Event{Type: events.CommentDeleted, PostID: postID, ActorID: actor.ID, CommentID: commentID})
	return s.view(ctx, updated)
}

// === Replies ===

// AddReply appends a reply to any existing comment of the post.
func (s *Service) AddReply(ctx context.Context, id domain.Identity, postID, commentID, text string) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if _, err := findComment(p, commentID); err != nil {
		return nil, err
	}

	reply := domain.Reply{
		ID:        s.newID(),
		AuthorID:  actor.ID,
		Text:      text,
		CreatedAt: s.now(),
	}
	updated, err := s.posts.AppendReply(ctx, postID, commentID, reply)
	if err != nil {
		return nil, translate(err, msgCommentNotFound)
	}
	s.publish(ctx, events.Event{Type: events.ReplyAdded, PostID: postID, ActorID: actor.ID, CommentID: commentID, ReplyID: reply.ID})
	return s.view(ctx, updated)
}

func (s *Service) UpdateReply(ctx context.Context, id domain.Identity, postID, commentID, replyID, text string) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if err := ownReply(p, commentID, replyID, actor.ID); err != nil {
		return nil, err
	}

	updated, err := s.posts.UpdateReplyText(ctx, postID, commentID, replyID, actor.ID, text)
	if err != nil {
		return nil, translate(err, msgCommentNotFound)
	}
	s.publish(ctx, events.Event{Type: events.ReplyUpdated, PostID: postID, ActorID: actor.ID, CommentID: commentID, ReplyID: replyID})
	return s.view(ctx, updated)
}

func (s *Service) DeleteReply(ctx context.Context, id domain.Identity, postID, commentID, replyID string) (*domain.PostView, error) {
	actor, p, err := s.actorAndPost(ctx, id, postID)
	if err != nil {
		return nil, err
	}
	if err := ownReply(p, commentID, replyID, actor.ID); err != nil {
		return nil, err
	}

	updated, err := s.posts.DeleteReply(ctx, postID, commentID, replyID, actor.ID)
	if err != nil {
		return nil, translate(err, msgCommentNotFound)
	}
	s.publish(ctx, events.Event{Type: events.ReplyDeleted, PostID: postID, ActorID: actor.ID, CommentID: commentID, ReplyID: replyID})
	return s.view(ctx, updated)
}

// === Helpers ===

// actor resolves the acting account. A token for an account that no longer exists is NotFound.
func (s *Service) actor(ctx context.Context, id domain.Identity) (*domain.Account, error) {
	a, err := s.accounts.GetAccountByID(ctx, id.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound(msgAccountNotFound)
		}
		return nil, internal("failed to load account", err)
	}
	return a, nil
}

func (s *Service) fetch(ctx context.Context, postID string) (*domain.Post, error) {
	p, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, translate(err, msgNotYourComment)
	}
	return p, nil
}

func (s *Service) actorAndPost(ctx context.Context, id domain.Identity, postID string) (*domain.Account, *domain.Post, error) {
	actor, err := s.actor(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.fetch(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	return actor, p, nil
}

func (s *Service) view(ctx context.Context, p *domain.Post) (*domain.PostView, error) {
	names, err := s.authors.Names(ctx, p.AuthorIDs())
	if err != nil {
		return nil, internal("failed to resolve authors", err)
	}
	return domain.NewPostView(p, names), nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	e.At = s.now()
	events.BestEffort(ctx, s.events, e)
}

// translate maps a store error to its error kind. commentMsg is used when the store could not
// match the addressed comment, which for author-scoped writes also means "not yours".
func translate(err error, commentMsg string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.NotFound(msgPostNotFound)
	case errors.Is(err, storage.ErrAlreadyLiked):
		return domain.Conflict(msgAlreadyLiked)
	case errors.Is(err, storage.ErrNotLiked):
		return domain.Conflict(msgNotLiked)
	case errors.Is(err, storage.ErrCommentNotFound):
		return domain.BadRequest(commentMsg)
	case errors.Is(err, storage.ErrReplyNotFound):
		return domain.BadRequest(msgNotYourReply)
	default:
		return internal("post storage failure", err)
	}
}

func internal(message string, err error) error {
	log.Printf("[blog] %s: %v", message, err)
	return domain.Internal(message, err)
}
