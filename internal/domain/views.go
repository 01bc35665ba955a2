package domain

import "time"

// AuthorRef is the display projection of an account reference.
type AuthorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PostView is a Post with every account reference resolved for display. It is never stored.
type PostView struct {
	ID          string        `json:"id"`
	Creator     AuthorRef     `json:"creator"`
	Title       string        `json:"title"`
	ImageURL    string        `json:"imageUrl"`
	Description string        `json:"description"`
	Likes       []string      `json:"likes"`
	Comments    []CommentView `json:"comments"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type CommentView struct {
	ID        string      `json:"id"`
	Author    AuthorRef   `json:"author"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	Replies   []ReplyView `json:"replies"`
}

type ReplyView struct {
	ID        string    `json:"id"`
	Author    AuthorRef `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
}

// NewPostView projects p using names (account id -> display name).
// Unknown ids keep their id and get an empty name.
func NewPostView(p *Post, names map[string]string) *PostView {
	ref := func(id string) AuthorRef { return AuthorRef{ID: id, Name: names[id]} }

	v := &PostView{
		ID:          p.ID,
		Creator:     ref(p.CreatorID),
		Title:       p.Title,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Likes:       append(make([]string, 0, len(p.Likes)), p.Likes...),
		Comments:    make([]CommentView, 0, len(p.Comments)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, c := range p.Comments {
		cv := CommentView{
			ID:        c.ID,
			Author:    ref(c.AuthorID),
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
			Replies:   make([]ReplyView, 0, len(c.Replies)),
		}
		for _, r := range c.Replies {
			cv.Replies = append(cv.Replies, ReplyView{
				ID:        r.ID,
				Author:    ref(r.AuthorID),
				Text:      r.Text,
				CreatedAt: r.CreatedAt,
			})
		}
		v.Comments = append(v.Comments, cv)
	}
	return v
}
