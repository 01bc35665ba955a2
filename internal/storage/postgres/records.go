package postgres

import (
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
)

// Каждая сущность хранится отдельной строкой. Лайки, комментарии и ответы ссылаются на пост
// через внешние ключи с ON DELETE CASCADE. Ссылки на аккаунты - обычные колонки.

type accountRecord struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Email        string    `gorm:"type:varchar(320);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (accountRecord) TableName() string { return "accounts" }

type postRecord struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	CreatorID   string          `gorm:"type:uuid;not null;index"`
	Title       string          `gorm:"type:varchar(255);not null"`
	ImageURL    string          `gorm:"type:text;not null"`
	Description string          `gorm:"type:text;not null"`
	CreatedAt   time.Time       `gorm:"not null;index"`
	UpdatedAt   time.Time       `gorm:"not null"`
	Likes       []likeRecord    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Comments    []commentRecord `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (postRecord) TableName() string { return "posts" }

// Составной первичный ключ likeRecord не дает лайкнуть пост дважды.
type likeRecord struct {
	PostID    string    `gorm:"type:uuid;primaryKey"`
	AccountID string    `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (likeRecord) TableName() string { return "post_likes" }

type commentRecord struct {
	ID        string        `gorm:"type:uuid;primaryKey"`
	PostID    string        `gorm:"type:uuid;not null;index"`
	AuthorID  string        `gorm:"type:uuid;not null"`
	Text      string        `gorm:"type:text;not null"`
	CreatedAt time.Time     `gorm:"not null"`
	Replies   []replyRecord `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE"`
}

func (commentRecord) TableName() string { return "comments" }

type replyRecord struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	CommentID string    `gorm:"type:uuid;not null;index"`
	PostID    string    `gorm:"type:uuid;not null;index"`
	AuthorID  string    `gorm:"type:uuid;not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (replyRecord) TableName() string { return "replies" }

// columns сопоставляет поля списка с колонками. По остальным полям фильтровать и сортировать нельзя.
var columns = map[string]string{
	"id":          "id",
	"title":       "title",
	"description": "description",
	"imageUrl":    "image_url",
	"creatorId":   "creator_id",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

func accountFromRecord(r *accountRecord) *domain.Account {
	return &domain.Account{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func postFromRecord(r *postRecord) *domain.Post {
	p := &domain.Post{
		ID:          r.ID,
		CreatorID:   r.CreatorID,
		Title:       r.Title,
		ImageURL:    r.ImageURL,
		Description: r.Description,
		Likes:       make([]string, 0, len(r.Likes)),
		Comments:    make([]domain.Comment, 0, len(r.Comments)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, l := range r.Likes {
		p.Likes = append(p.Likes, l.AccountID)
	}
	for _, c := range r.Comments {
		comment := domain.Comment{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
			Replies:   make([]domain.Reply, 0, len(c.Replies)),
		}
		for _, rp := range c.Replies {
			comment.Replies = append(comment.Replies, domain.Reply{
				ID:        rp.ID,
				AuthorID:  rp.AuthorID,
				Text:      rp.Text,
				CreatedAt: rp.CreatedAt,
			})
		}
		p.Comments = append(p.Comments, comment)
	}
	return p
}
