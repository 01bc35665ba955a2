package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/blog-service/internal/account"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

const refreshCookie = "refreshToken"

// Accounts is satisfied by *account.Service.
type Accounts interface {
	Authenticator
	Signup(ctx context.Context, in account.SignupInput) (*account.Session, error)
	Login(ctx context.Context, email, password string) (*account.Session, error)
	ChangePassword(ctx context.Context, id domain.Identity, oldPassword, newPassword string) error
	Profile(ctx context.Context, id domain.Identity) (*domain.Account, error)
	UpdateProfile(ctx context.Context, id domain.Identity, patch domain.AccountPatch) (*domain.Account, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

type accountHandler struct {
	accounts     Accounts
	cookieSecure bool
	refreshTTL   time.Duration
}

func (h *accountHandler) routes(r chi.Router) {
	auth := requireAuth(h.accounts)

	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/refresh-token", h.refresh)
	r.With(auth).Patch("/change-password", h.changePassword)
	r.With(auth).Get("/profile", h.profile)
	r.With(auth).Patch("/profile", h.updateProfile)
}

type sessionResponse struct {
	Account     *domain.Account `json:"account,omitempty"`
	AccessToken string          `json:"accessToken"`
}

func (h *accountHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.accounts.Signup(r.Context(), account.SignupInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setRefreshCookie(w, session.RefreshToken)
	respond(w, http.StatusCreated, "User registered successfully", sessionResponse{
		Account:     session.Account,
		AccessToken: session.AccessToken,
	})
}

func (h *accountHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setRefreshCookie(w, session.RefreshToken)
	respond(w, http.StatusOK, "User logged in successfully", sessionResponse{AccessToken: session.AccessToken})
}

func (h *accountHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	access, err := h.accounts.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Access token retrieved successfully", sessionResponse{AccessToken: access})
}

func (h *accountHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), identityFrom(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Password changed successfully", nil)
}

func (h *accountHandler) profile(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Profile(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile retrieved successfully", a)
}

func (h *accountHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.accounts.UpdateProfile(r.Context(), identityFrom(r.Context()), domain.AccountPatch{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile updated successfully", a)
}

func (h *accountHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
