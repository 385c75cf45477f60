package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aichat_backend/core"
	"aichat_backend/db"

	"go.uber.org/zap"
)

// UserStore is the persistence the account handlers need.
type UserStore interface {
	InsertUser(ctx context.Context, rec db.UserRecord) (db.UserRecord, error)
	FindUserByEmail(ctx context.Context, email string) (db.UserRecord, error)
	FindUserByID(ctx context.Context, id int64) (db.UserRecord, error)
}

// User is the public view of an account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handlers serves /api/auth/register, /api/auth/login and /api/auth/me.
type Handlers struct {
	users  UserStore
	tokens *TokenIssuer
	cost   int
	logger *zap.Logger
}

// NewHandlers creates the account handlers with bcrypt DefaultCost.
func NewHandlers(users UserStore, tokens *TokenIssuer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{users: users, tokens: tokens, cost: DefaultCost, logger: logger}
}

// WithCost overrides the bcrypt cost for new accounts.
func (h *Handlers) WithCost(cost int) *Handlers {
	h.cost = cost
	return h
}

// Register creates an account and returns 201 {token, user}.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username, email and password are required")
		return
	}
	if len(req.Password) < MinPasswordLength {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := HashPasswordWithCost(req.Password, h.cost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	rec, err := h.users.InsertUser(r.Context(), db.UserRecord{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, db.ErrDuplicateEmail) {
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", rec.ID))
	h.respondWithToken(w, http.StatusCreated, rec)
}

// Login verifies credentials and returns 200 {token, user}. Unknown email
// and wrong password produce the same response.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	rec, err := h.users.FindUserByEmail(r.Context(), email)
	if errors.Is(err, db.ErrNotFound) {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("failed to look up user", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if err := VerifyPassword(req.Password, rec.PasswordHash); err != nil {
		h.logger.Info("failed login attempt", zap.Int64("user_id", rec.ID))
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	h.respondWithToken(w, http.StatusOK, rec)
}

// Me returns the authenticated user. It must run behind Middleware.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(core.OwnerFromContext(r.Context()), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Token is not valid")
		return
	}

	rec, err := h.users.FindUserByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load user", zap.Int64("user_id", id), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, toUser(rec))
}

func (h *Handlers) respondWithToken(w http.ResponseWriter, status int, rec db.UserRecord) {
	token, err := h.tokens.Issue(rec.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: toUser(rec)})
}

func toUser(rec db.UserRecord) User {
	return User{ID: rec.ID, Username: rec.Username, Email: rec.Email, CreatedAt: rec.CreatedAt}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
