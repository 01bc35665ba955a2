package httpapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/UkralStul/blog-service/internal/blog"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Posts is satisfied by *blog.Service.
type Posts interface {
	CreatePost(ctx context.Context, id domain.Identity, in blog.CreatePostInput) (*domain.PostView, error)
	ListPosts(ctx context.Context, raw url.Values) (*blog.Page, error)
	GetPost(ctx context.Context, postID string) (*domain.PostView, error)
	UpdatePost(ctx context.Context, id domain.Identity, postID string, patch domain.PostPatch) (*domain.PostView, error)
	DeletePost(ctx context.Context, id domain.Identity, postID string) (*domain.PostView, error)
	Like(ctx context.Context, id domain.Identity, postID string) (*domain.PostView, error)
	Unlike(ctx context.Context, id domain.Identity, postID string) (*domain.PostView, error)
	AddComment(ctx context.Context, id domain.Identity, postID, text string) (*domain.PostView, error)
	UpdateComment(ctx context.Context, id domain.Identity, postID, commentID, text string) (*domain.PostView, error)
	DeleteComment(ctx context.Context, id domain.Identity, postID, commentID string) (*domain.PostView, error)
	AddReply(ctx context.Context, id domain.Identity, postID, commentID, text string) (*domain.PostView, error)
	UpdateReply(ctx context.Context, id domain.Identity, postID, commentID, replyID, text string) (*domain.PostView, error)
	DeleteReply(ctx context.Context, id domain.Identity, postID, commentID, replyID string) (*domain.PostView, error)
}

type blogHandler struct {
	posts  Posts
	auth   Authenticator
	events Subscriber
}

func (h *blogHandler) routes(r chi.Router) {
	auth := requireAuth(h.auth)

	r.Get("/", h.list)
	r.With(auth).Post("/", h.create)

	r.With(auth).Post("/like/{id}", h.like)
	r.With(auth).Delete("/remove-like/{id}", h.unlike)

	r.Get("/{id}", h.get)
	r.With(auth).Patch("/{id}", h.update)
	r.With(auth).Delete("/{id}", h.delete)
	r.Get("/{id}/events", h.stream)

	r.Route("/{blogId}/comment", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.addComment)
		r.Patch("/{commentId}", h.updateComment)
		r.Delete("/{commentId}", h.deleteComment)
		r.Post("/{commentId}", h.addReply)
		r.Patch("/{commentId}/reply/{replyId}", h.updateReply)
		r.Delete("/{commentId}/reply/{replyId}", h.deleteReply)
	})
}

// === Posts ===

func (h *blogHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.posts.CreatePost(r.Context(), identityFrom(r.Context()), blog.CreatePostInput{
		Title:       req.Title,
		ImageURL:    req.ImageURL,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Blog created successfully", p)
}

func (h *blogHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.ListPosts(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondPage(w, "Blogs retrieved successfully", page.Posts, page.Meta)
}

func (h *blogHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Blog retrieved successfully", p)
}

func (h *blogHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch := domain.PostPatch{Title: req.Title, Description: req.Description, ImageURL: req.ImageURL}
	if patch.Empty() {
		writeError(w, r, &validationError{messages: []ErrorMessage{{Path: "body", Message: "at least one field is required"}}})
		return
	}
	p, err := h.posts.UpdatePost(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Blog updated successfully", p)
}

func (h *blogHandler) delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.DeletePost(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Blog deleted successfully", p)
}

// === Likes ===

func (h *blogHandler) like(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Like(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Blog liked successfully", p)
}

func (h *blogHandler) unlike(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Unlike(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Like removed successfully", p)
}

// === Comments & Replies ===

func (h *blogHandler) addComment(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.posts.AddComment(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "blogId"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Comment added successfully", p)
}

func (h *blogHandler) updateComment(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.posts.UpdateComment(r.Context(), identityFrom(r.Context()),
		chi.URLParam(r, "blogId"), chi.URLParam(r, "commentId"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Comment updated successfully", p)
}

func (h *blogHandler) deleteComment(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.DeleteComment(r.Context(), identityFrom(r.Context()),
		chi.URLParam(r, "blogId"), chi.URLParam(r, "commentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Comment deleted successfully", p)
}

func (h *blogHandler) addReply(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.posts.AddReply(r.Context(), identityFrom(r.Context()),
		chi.URLParam(r, "blogId"), chi.URLParam(r, "commentId"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Reply added successfully", p)
}

func (h *blogHandler) updateReply(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.posts.UpdateReply(r.Context(), identityFrom(r.Context()),
		chi.URLParam(r, "blogId"), chi.URLParam(r, "commentId"), chi.URLParam(r, "replyId"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Reply updated successfully", p)
}

func (h *blogHandler) deleteReply(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.DeleteReply(r.Context(), identityFrom(r.Context()),
		chi.URLParam(r, "blogId"), chi.URLParam(r, "commentId"), chi.URLParam(r, "replyId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Reply deleted successfully", p)
}
