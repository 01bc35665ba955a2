package storage

import (
	"context"
	"errors"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/query"
)

// Общие ошибки для всех хранилищ. Реализации оборачивают их через %w.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrAlreadyLiked    = errors.New("post already liked by account")
	ErrNotLiked        = errors.New("post not liked by account")
	ErrCommentNotFound = errors.New("comment not found")
	ErrReplyNotFound   = errors.New("reply not found")
)

// AccountStore хранит аккаунты.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error)
	SetPasswordHash(ctx context.Context, id, hash string) error

	// Используется дата-лоадером авторов. Ненайденных id просто нет в результате.
	GetAccountsByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error)
}

// PostStore хранит посты вместе с лайками, комментариями и ответами.
//
// Каждая адресная мутация - одна атомарная операция над одним постом с условием на весь
// путь id (и на authorID, если он передан). Если условие не выполнено, ничего не пишется,
// а ошибка называет первый уровень, который не совпал: ErrNotFound для поста, затем
// ErrCommentNotFound, затем ErrReplyNotFound. Мутации возвращают пост после записи.
type PostStore interface {
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	ListPosts(ctx context.Context, q query.Query) ([]*domain.Post, int64, error)
	UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) (*domain.Post, error)

	AddLike(ctx context.Context, postID, accountID string) (*domain.Post, error)
	RemoveLike(ctx context.Context, postID, accountID string) (*domain.Post, error)

	AppendComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error)
	UpdateCommentText(ctx context.Context, postID, commentID, authorID, text string) (*domain.Post, error)
	DeleteComment(ctx context.Context, postID, commentID, authorID string) (*domain.Post, error)

	AppendReply(ctx context.Context, postID, commentID string, reply domain.Reply) (*domain.Post, error)
	UpdateReplyText(ctx context.Context, postID, commentID, replyID, authorID, text string) (*domain.Post, error)
	DeleteReply(ctx context.Context, postID, commentID, replyID, authorID string) (*domain.Post, error)
}

// Storage - общий интерфейс для всех хранилищ.
type Storage interface {
	AccountStore
	PostStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
