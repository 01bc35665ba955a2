package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/query"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/google/uuid"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	accountsCollection = "accounts"
	postsCollection    = "posts"
)

// Store implements storage.Storage on MongoDB. A post with its likes, comments and replies
// is one document, so every addressed mutation is a single-document update and inherits
// MongoDB's per-document atomicity.
type Store struct {
	client   *mongo.Client
	accounts *mongo.Collection
	posts    *mongo.Collection
}

// New connects to uri, checks the connection and ensures indexes on database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		accounts: db.Collection(accountsCollection),
		posts:    db.Collection(postsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create account email index: %w", err)
	}
	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "creatorId", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// === Account Methods ===

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	a := *account
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	if _, err := s.accounts.InsertOne(ctx, &a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("create account %q: %w", a.Email, storage.ErrDuplicateEmail)
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id}, id)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findAccount(ctx, bson.M{"email": email}, email)
}

func (s *Store) findAccount(ctx context.Context, filter bson.M, key string) (*domain.Account, error) {
	var a domain.Account
	if err := s.accounts.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("account %s: %w", key, storage.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAccountsByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	result := make(map[string]*domain.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cur, err := s.accounts.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var accounts []*domain.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	for _, a := range accounts {
		result[a.ID] = a
	}
	return result, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}

	var a domain.Account
	err := s.accounts.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&a)
	switch {
	case err == nil:
		return &a, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("update account %s: %w", id, storage.ErrDuplicateEmail)
	default:
		return nil, err
	}
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	p := post.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	normalize(p)

	if _, err := s.posts.InsertOne(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var p domain.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	normalize(&p)
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context, q query.Query) ([]*domain.Post, int64, error) {
	filter := listFilter(q)

	total, err := s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(listSort(q)).
		SetSkip(int64(q.Skip())).
		SetLimit(int64(q.Limit))
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	posts := []*domain.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	for _, p := range posts {
		normalize(p)
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (*domain.Post, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.ImageURL != nil {
		set["imageUrl"] = *patch.ImageURL
	}
	return s.updatePost(ctx, target{postID: id}, bson.M{"_id": id}, bson.M{"$set": set}, storage.ErrNotFound)
}

func (s *Store) DeletePost(ctx context.Context, id string) (*domain.Post, error) {
	var p domain.Post
	if err := s.posts.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	normalize(&p)
	return &p, nil
}

// === Like Methods ===

func (s *Store) AddLike(ctx context.Context, postID, accountID string) (*domain.Post, error) {
	filter := bson.M{"_id": postID, "likes": bson.M{"$ne": accountID}}
	update := bson.M{
		"$push": bson.M{"likes": accountID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.updatePost(ctx, target{postID: postID}, filter, update, storage.ErrAlreadyLiked)
}

func (s *Store) RemoveLike(ctx context.Context, postID, accountID string) (*domain.Post, error) {
	filter := bson.M{"_id": postID, "likes": accountID}
	update := bson.M{
		"$pull": bson.M{"likes": accountID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.updatePost(ctx, target{postID: postID}, filter, update, storage.ErrNotLiked)
}

// === Comment Methods ===

func (s *Store) AppendComment(ctx context.Context, postID string, comment domain.Comment) (*domain.Post, error) {
	if comment.Replies == nil {
		comment.Replies = []domain.Reply{}
	}
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.updatePost(ctx, target{postID: postID}, bson.M{"_id": postID}, update, storage.ErrNotFound)
}

func (s *Store) UpdateCommentText(ctx context.Context, postID, commentID, authorID, text string) (*domain.Post, error) {
	filter := bson.M{
		"_id":      postID,
		"comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "authorId": authorID}},
	}
	update := bson.M{"$set": bson.M{
		"comments.$.text": text,
		"updatedAt":       time.Now().UTC(),
	}}
	return s.updatePost(ctx, target{postID: postID}, filter, update, storage.ErrCommentNotFound)
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID, authorID string) (*domain.Post, error) {
	filter := bson.M{
		"_id":      postID,
		"comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "authorId": authorID}},
	}
	update := bson.M{
		"$pull": bson.M{"comments": bson.M{"_id": commentID, "authorId": authorID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.updatePost(ctx, target{postID: postID}, filter, update, storage.ErrCommentNotFound)
}

// === Reply Methods ===

func (s *Store) AppendReply(ctx context.Context, postID, commentID string, reply domain.Reply) (*domain.Post, error) {
	filter := bson.M{"_id": postID, "comments._id": commentID}
	update := bson.M{
		"$push": bson.M{"comments.$.replies": reply},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.updatePost(ctx, target{postID: postID, commentID: commentID}, filter, update, storage.ErrCommentNotFound)
}

func (s *Store) UpdateReplyText(ctx context.Context, postID, commentID, replyID, authorID, text string) (*domain.Post, error) {
	update := bson.M{"$set": bson.M{
		"comments.$[c].replies.$[r].text": text,
		"updatedAt":                       time.Now().UTC(),
	}}
	arrayFilters := []any{
		bson.M{"c._id": commentID},
		bson.M{"r._id": replyID, "r.authorId": authorID},
	}
	return s.updatePost(ctx, target{postID: postID, commentID: commentID},
		ownReplyFilter(postID, commentID, replyID, authorID), update, storage.ErrReplyNotFound, arrayFilters...)
}

func (s *Store) DeleteReply(ctx context.Context, postID, commentID, replyID, authorID string) (*domain.Post, error) {
	update := bson.M{
		"$pull": bson.M{"comments.$.replies": bson.M{"_id": replyID, "authorId": authorID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return s.updatePost(ctx, target{postID: postID, commentID: commentID},
		ownReplyFilter(postID, commentID, replyID, authorID), update, storage.ErrReplyNotFound)
}

// === Helpers ===

// target is the id path an update addresses; it is used to explain a failed match.
type target struct {
	postID    string
	commentID string
}

// updatePost runs one FindOneAndUpdate. When filter matches nothing, the post is read back
// to name the level that failed; noMatch is reported when every level of t exists.
func (s *Store) updatePost(ctx context.Context, t target, filter, update bson.M, noMatch error, arrayFilters ...any) (*domain.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if len(arrayFilters) > 0 {
		opts.SetArrayFilters(arrayFilters)
	}

	var p domain.Post
	err := s.posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if err == nil {
		normalize(&p)
		return &p, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := s.GetPostByID(ctx, t.postID)
	if err != nil {
		return nil, err
	}
	if t.commentID != "" && !hasComment(current, t.commentID) {
		return nil, fmt.Errorf("post %s: %w", t.postID, storage.ErrCommentNotFound)
	}
	return nil, fmt.Errorf("post %s: %w", t.postID, noMatch)
}

func ownReplyFilter(postID, commentID, replyID, authorID string) bson.M {
	return bson.M{
		"_id": postID,
		"comments": bson.M{"$elemMatch": bson.M{
			"_id":     commentID,
			"replies": bson.M{"$elemMatch": bson.M{"_id": replyID, "authorId": authorID}},
		}},
	}
}

func hasComment(p *domain.Post, commentID string) bool {
	for _, c := range p.Comments {
		if c.ID == commentID {
			return true
		}
	}
	return false
}

// normalize replaces nil slices so arrays are stored as [] (never null, which $push rejects)
// and decoded posts serialize the same way as posts from other backends.
func normalize(p *domain.Post) {
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []domain.Comment{}
	}
	for i := range p.Comments {
		if p.Comments[i].Replies == nil {
			p.Comments[i].Replies = []domain.Reply{}
		}
	}
}
