package domain

import "time"

// Account is a registered user.
type Account struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// AccountPatch holds the profile fields that may change. Nil means "leave as is".
type AccountPatch struct {
	Name  *string
	Email *string
}

// Post is the aggregate root: a blog entry together with its likes and comment tree.
type Post struct {
	ID          string    `json:"id" bson:"_id"`
	CreatorID   string    `json:"creatorId" bson:"creatorId"`
	Title       string    `json:"title" bson:"title"`
	ImageURL    string    `json:"imageUrl" bson:"imageUrl"`
	Description string    `json:"description" bson:"description"`
	Likes       []string  `json:"likes" bson:"likes"`
	Comments    []Comment `json:"comments" bson:"comments"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// PostPatch holds the post fields the creator may change.
type PostPatch struct {
	Title       *string
	Description *string
	ImageURL    *string
}

// Empty reports whether the patch changes nothing.
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ImageURL == nil
}

// Comment is embedded in a Post.
type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	AuthorID  string    `json:"authorId" bson:"authorId"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	Replies   []Reply   `json:"replies" bson:"replies"`
}

// Reply is embedded in a Comment.
type Reply struct {
	ID        string    `json:"id" bson:"_id"`
	AuthorID  string    `json:"authorId" bson:"authorId"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Identity is an already authenticated caller.
type Identity struct {
	AccountID string    `json:"id"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// HasLike reports whether accountID is present in the like set.
func (p *Post) HasLike(accountID string) bool {
	for _, id := range p.Likes {
		if id == accountID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with a store.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Likes = append(make([]string, 0, len(p.Likes)), p.Likes...)
	cp.Comments = make([]Comment, len(p.Comments))
	for i, c := range p.Comments {
		cp.Comments[i] = c
		cp.Comments[i].Replies = append(make([]Reply, 0, len(c.Replies)), c.Replies...)
	}
	return &cp
}

// AuthorIDs returns every account referenced by the post's creator, comments and replies,
// without duplicates, in first-seen order.
func (p *Post) AuthorIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(p.CreatorID)
	for _, c := range p.Comments {
		add(c.AuthorID)
		for _, r := range c.Replies {
			add(r.AuthorID)
		}
	}
	return ids
}
