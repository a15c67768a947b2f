package api

import (
	"net/http"

	"github.com/yusufkarademir/etkinlikqr/internal/auth"
	"github.com/yusufkarademir/etkinlikqr/internal/user"
	"github.com/yusufkarademir/etkinlikqr/internal/validate"
)

// AuthHandlers registers and logs in organizers.
type AuthHandlers struct {
	users user.Repository
	jwt   *auth.JWTService
}

// NewAuthHandlers creates auth handlers.
func NewAuthHandlers(users user.Repository, jwt *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{users: users, jwt: jwt}
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         *user.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email, err := validate.Email(req.Email)
	if err != nil {
		fail(w, r, ErrCodeValidation, "A valid email is required")
		return
	}
	if err := validate.Password(req.Password); err != nil {
		fail(w, r, ErrCodeValidation, "Password must be 8 to 72 bytes long")
		return
	}
	name, err := validate.DisplayName(req.Name)
	if err != nil {
		fail(w, r, ErrCodeValidation, "name must be 1-80 characters")
		return
	}

	hash, err := user.HashPassword(req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	u := &user.User{Email: email, PasswordHash: hash, Name: name}
	if err := h.users.Create(r.Context(), u); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondWithTokens(w, r, http.StatusCreated, u)
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, err := validate.Email(req.Email)
	if err != nil || req.Password == "" {
		fail(w, r, ErrCodeAuthFailed, "Invalid email or password")
		return
	}

	u, err := user.Authenticate(r.Context(), h.users, email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondWithTokens(w, r, http.StatusOK, u)
}

func (h *AuthHandlers) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, u *user.User) {
	access, err := h.jwt.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	refresh, err := h.jwt.GenerateRefreshToken(u.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, status, TokenResponse{AccessToken: access, RefreshToken: refresh, User: u})
}
