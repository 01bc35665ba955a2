package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/query"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/google/uuid"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage для PostgreSQL.
//
// Каждая адресная мутация выполняется в транзакции, которая сначала обновляет строку поста
// (UPDATE posts SET updated_at). Так проверяется, что пост существует, и строка блокируется
// до коммита. Параллельные записи в один пост идут по очереди, а изменение дочерних строк -
// один условный запрос.
type Store struct {
	db *gorm.DB
}

// New подключается к PostgreSQL и выполняет миграцию схемы.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&accountRecord{}, &postRecord{}, &likeRecord{}, &commentRecord{}, &replyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === Account Methods ===

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	now := time.Now().UTC()
	rec := accountRecord{
		ID:           account.ID,
		Name:         account.Name,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create account %q: %w", account.Email, storage.ErrDuplicateEmail)
		}
		return nil, err
	}
	return accountFromRecord(&rec), nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	if !validID(id) {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return s.findAccount(ctx, "id = ?", id)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findAccount(ctx, "email = ?", email)
}

func (s *Store) findAccount(ctx context.Context, cond string, arg string) (*domain.Account, error) {
	var rec accountRecord
	if err := s.db.WithContext(ctx).First(&rec, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", arg, storage.ErrNotFound)
		}
		return nil, err
	}
	return accountFromRecord(&rec), nil
}

func (s *Store) GetAccountsByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	result := make(map[string]*domain.Account, len(valid))
	if len(valid) == 0 {
		return result, nil
	}

	var recs []accountRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", valid).Find(&recs).Error; err != nil {
		return nil, err
	}
	for i := range recs {
		result[recs[i].ID] = accountFromRecord(&recs[i])
	}
	return result, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	if !validID(id) {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}

	res := s.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("update account %s: %w", id, storage.ErrDuplicateEmail)
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return s.GetAccountByID(ctx, id)
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	if !validID(id) {
		return fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	res := s.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	now := time.Now().UTC()
	rec := postRecord{
		ID:          post.ID,
		CreatorID:   post.CreatorID,
		Title:       post.Title,
		ImageURL:    post.ImageURL,
		Description: post.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return postFromRecord(&rec), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	if !validID(id) {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return loadPost(s.db.WithContext(ctx), id)
}

func (s *Store) ListPosts(ctx context.Context, q query.Query) ([]*domain.Post, int64, error) {
	for _, f := range q.Filters {
		if (f.Field == "creatorId" || f.Field == "id") && !validID(f.Value) {
			return []*domain.Post{}, 0, nil
		}
	}

	// Count и Find нужен свой запрос с одинаковыми условиями.
	filtered := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&postRecord{})
		if q.SearchTerm != "" {
			var conds []string
			var args []any
			pattern := "%" + escapeLike(q.SearchTerm) + "%"
			for _, field := range q.SearchFields {
				if col, ok := columns[field]; ok {
					conds = append(conds, col+" ILIKE ?")
					args = append(args, pattern)
				}
			}
			if len(conds) > 0 {
				tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
			}
		}
		for _, f := range q.Filters {
			if col, ok := columns[f.Field]; ok {
				tx = tx.Where(col+" = ?", f.Value)
			}
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortCol, ok := columns[q.Sort.Field]
	if !ok {
		sortCol = "created_at"
	}
	var recs []postRecord
	err := preloadAggregate(filtered()).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortCol}, Desc: q.Sort.Order != query.Asc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Sort.Order != query.Asc}).
		Limit(q.Limit).
		Offset(q.Skip()).
		Find(&recs).Error
	if err != nil {
		return nil, 0, err
	}

	posts := make([]*domain.Post, 0, len(recs))
	for i := range recs {
		posts = append(posts, postFromRecord(&recs[i]))
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (*domain.Post, error) {
	if !validID(id) {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}

	var post *domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&postRecord{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		var err error
		post, err = loadPost(tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}
	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	if !validID(id) {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	var post *domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, id); err != nil {
			return err
		}
		var err error
		if post, err = loadPost(tx, id); err != nil {
			return err
		}
		// Лайки, комментарии и ответы удаляются вместе с постом через ON DELETE CASCADE.
		return tx.Where("id = ?", id).Delete(&postRecord{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}
	return post, nil
}

// === Like Methods ===

func (s *Store) AddLike(ctx context.Context, postID, accountID string) (*domain.Post, error) {
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&likeRecord{
			PostID:    postID,
			AccountID: accountID,
			CreatedAt: time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrAlreadyLiked
		}
		return nil
	})
}

func (s *Store) RemoveLike(ctx context.Context, postID, accountID string) (*domain.Post, error) {
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND account_id = ?", postID, accountID).Delete(&likeRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotLiked
		}
		return nil
	})
}

// === Comment Methods ===

func (s *Store) AppendComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error) {
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		return tx.Create(&commentRecord{
			ID:        comment.ID,
			PostID:    postID,
			AuthorID:  comment.AuthorID,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		}).Error
	})
}

func (s *Store) UpdateCommentText(ctx context.Context, postID, commentID, authorID, text string) (*domain.Post, error) {
	if !validID(commentID) {
		return s.failPath(ctx, postID, storage.ErrCommentNotFound)
	}
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		res := tx.Model(&commentRecord{}).
			Where("id = ? AND post_id = ? AND author_id = ?", commentID, postID, authorID).
			Update("text", text)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrCommentNotFound
		}
		return nil
	})
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID, authorID string) (*domain.Post, error) {
	if !validID(commentID) {
		return s.failPath(ctx, postID, storage.ErrCommentNotFound)
	}
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND post_id = ? AND author_id = ?", commentID, postID, authorID).Delete(&commentRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrCommentNotFound
		}
		return nil
	})
}

// === Reply Methods ===

func (s *Store) AppendReply(ctx context.Context, postID, commentID string, reply domain.Reply) (*domain.Post, error) {
	if !validID(commentID) {
		return s.failPath(ctx, postID, storage.ErrCommentNotFound)
	}
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		if err := requireComment(tx, postID, commentID); err != nil {
			return err
		}
		return tx.Create(&replyRecord{
			ID:        reply.ID,
			CommentID: commentID,
			PostID:    postID,
			AuthorID:  reply.AuthorID,
			Text:      reply.Text,
			CreatedAt: reply.CreatedAt,
		}).Error
	})
}

func (s *Store) UpdateReplyText(ctx context.Context, postID, commentID, replyID, authorID, text string) (*domain.Post, error) {
	if !validID(commentID) {
		return s.failPath(ctx, postID, storage.ErrCommentNotFound)
	}
	if !validID(replyID) {
		return s.failPath(ctx, postID, storage.ErrReplyNotFound)
	}
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		if err := requireComment(tx, postID, commentID); err != nil {
			return err
		}
		res := tx.Model(&replyRecord{}).
			Where("id = ? AND comment_id = ? AND post_id = ? AND author_id = ?", replyID, commentID, postID, authorID).
			Update("text", text)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrReplyNotFound
		}
		return nil
	})
}

func (s *Store) DeleteReply(ctx context.Context, postID, commentID, replyID, authorID string) (*domain.Post, error) {
	if !validID(commentID) {
		return s.failPath(ctx, postID, storage.ErrCommentNotFound)
	}
	if !validID(replyID) {
		return s.failPath(ctx, postID, storage.ErrReplyNotFound)
	}
	return s.mutate(ctx, postID, func(tx *gorm.DB) error {
		if err := requireComment(tx, postID, commentID); err != nil {
			return err
		}
		res := tx.Where("id = ? AND comment_id = ? AND post_id = ? AND author_id = ?", replyID, commentID, postID, authorID).
			Delete(&replyRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrReplyNotFound
		}
		return nil
	})
}

// === Helpers ===

// mutate блокирует строку поста, выполняет fn и возвращает пост после этой транзакции.
func (s *Store) mutate(ctx context.Context, postID string, fn func(tx *gorm.DB) error) (*domain.Post, error) {
	if !validID(postID) {
		return nil, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	var post *domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		var err error
		post, err = loadPost(tx, postID)
		return err
	})
	if err != nil {
		// Родитель, удаленный между блокировкой и вставкой, дает нарушение внешнего ключа.
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			err = storage.ErrCommentNotFound
		}
		return nil, fmt.Errorf("post %s: %w", postID, err)
	}
	return post, nil
}

// lockPost обновляет updated_at и держит блокировку строки до конца транзакции.
func lockPost(tx *gorm.DB, postID string) error {
	res := tx.Model(&postRecord{}).Where("id = ?", postID).Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// failPath возвращает err для некорректного id дочернего элемента, если сам пост существует.
func (s *Store) failPath(ctx context.Context, postID string, err error) (*domain.Post, error) {
	if _, getErr := s.GetPostByID(ctx, postID); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("post %s: %w", postID, err)
}

func requireComment(tx *gorm.DB, postID, commentID string) error {
	var n int64
	if err := tx.Model(&commentRecord{}).Where("id = ? AND post_id = ?", commentID, postID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrCommentNotFound
	}
	return nil
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

func preloadAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Likes", orderByCreated).
		Preload("Comments", orderByCreated).
		Preload("Comments.Replies", orderByCreated)
}

func loadPost(db *gorm.DB, id string) (*domain.Post, error) {
	var rec postRecord
	if err := preloadAggregate(db).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	return postFromRecord(&rec), nil
}

// validID проверяет id для uuid-колонок: некорректный id не может совпасть, а SQL вернул бы ошибку.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
