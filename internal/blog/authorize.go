package blog

import "github.com/UkralStul/blog-service/internal/domain"

const (
	msgPostNotFound    = "post not found"
	msgAccountNotFound = "account not found"
	msgNotCreator      = "you are not the creator of this post"
	msgAlreadyLiked    = "you already liked this post"
	msgNotLiked        = "you have not liked this post"
	msgNotYourComment  = "this is not your comment or it does not exist"
	msgCommentNotFound = "comment not found"
	msgReplyNotFound   = "reply not found"
	msgNotYourReply    = "this is not your reply"
)

func requireCreator(p *domain.Post, accountID string) error {
	if p.CreatorID != accountID {
		return domain.Forbidden(msgNotCreator)
	}
	return nil
}

// findOwnComment looks a comment up by (id, author). Missing and foreign comments are
// reported identically so existence is not revealed to non-authors.
func findOwnComment(p *domain.Post, commentID, authorID string) (*domain.Comment, error) {
	for i := range p.Comments {
		if c := &p.Comments[i]; c.ID == commentID && c.AuthorID == authorID {
			return c, nil
		}
	}
	return nil, domain.BadRequest(msgNotYourComment)
}

func findComment(p *domain.Post, commentID string) (*domain.Comment, error) {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			return &p.Comments[i], nil
		}
	}
	return nil, domain.BadRequest(msgCommentNotFound)
}

func findReply(c *domain.Comment, replyID string) (*domain.Reply, error) {
	for i := range c.Replies {
		if c.Replies[i].ID == replyID {
			return &c.Replies[i], nil
		}
	}
	return nil, domain.BadRequest(msgReplyNotFound)
}

func requireReplyAuthor(r *domain.Reply, accountID string) error {
	if r.AuthorID != accountID {
		return domain.BadRequest(msgNotYourReply)
	}
	return nil
}

// ownReply walks post -> comment -> reply and checks the reply's author.
func ownReply(p *domain.Post, commentID, replyID, authorID string) error {
	c, err := findComment(p, commentID)
	if err != nil {
		return err
	}
	r, err := findReply(c, replyID)
	if err != nil {
		return err
	}
	return requireReplyAuthor(r, authorID)
}
