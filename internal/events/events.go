// Package events carries notifications about post mutations to interested parties.
package events

import (
	"context"
	"errors"
	"log"
	"time"
)

type Type string

const (
	PostCreated    Type = "post.created"
	PostUpdated    Type = "post.updated"
	PostDeleted    Type = "post.deleted"
	PostLiked      Type = "post.liked"
	PostUnliked    Type = "post.unliked"
	CommentAdded   Type = "comment.added"
	CommentUpdated Type = "comment.updated"
	CommentDeleted Type = "comment.deleted"
	ReplyAdded     Type = "reply.added"
	ReplyUpdated   Type = "reply.updated"
	ReplyDeleted   Type = "reply.deleted"
)

// Event describes one successful mutation of a post.
type Event struct {
	Type      Type      `json:"type"`
	PostID    string    `json:"postId"`
	ActorID   string    `json:"actorId"`
	CommentID string    `json:"commentId,omitempty"`
	ReplyID   string    `json:"replyId,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// BestEffort publishes e and only logs a failure.
func BestEffort(ctx context.Context, p Publisher, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		log.Printf("[events] failed to publish %s for post %s: %v", e.Type, e.PostID, err)
	}
}
