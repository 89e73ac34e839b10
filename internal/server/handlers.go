package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/concord-chat/devchat/internal/database"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/protocol"
	"github.com/concord-chat/devchat/internal/remote"
	"github.com/concord-chat/devchat/pkg/crypto"
)

const (
	maxBodySize   = 64 * 1024
	maxKeyLength  = 128
	minPassword   = 6
	maxNameLength = 100
)

var errNoSession = errors.New("session revoked or expired")

type ctxKey int

const claimsKey ctxKey = iota

// Handlers serves the REST API: identity, user directory and channel writes
type Handlers struct {
	db     *database.DB
	hub    *Hub
	tokens *TokenManager
	log    logging.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(db *database.DB, hub *Hub, tokens *TokenManager, log logging.Logger) *Handlers {
	return &Handlers{
		db:     db,
		hub:    hub,
		tokens: tokens,
		log:    log,
	}
}

// Authenticate validates a token and checks its session is still open
func (h *Handlers) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := h.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	ok, err := h.db.SessionValid(ctx, claims.ID, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoSession
	}
	return claims, nil
}

// authErrorMessage maps an authentication failure to the user-facing text
func authErrorMessage(err error) string {
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) || errors.Is(err, errNoSession) {
		return remote.MsgCredentialTooOld
	}
	return remote.MsgNotSignedIn
}

// RequireAuth rejects requests without a valid bearer token
func (h *Handlers) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, remote.MsgNotSignedIn)
			return
		}

		claims, err := h.Authenticate(r.Context(), token)
		if err != nil {
			h.log.Debug(r.Context(), "rejected bearer token", "error", err)
			writeError(w, http.StatusUnauthorized, authErrorMessage(err))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// HandleCreateAccount handles POST /api/accounts
func (h *Handlers) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req protocol.AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !remote.ValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, remote.MsgInvalidEmail)
		return
	}
	if len(req.Password) < minPassword {
		writeError(w, http.StatusBadRequest, remote.MsgWeakPassword)
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, r, "failed to hash password", err)
		return
	}

	acc := models.NewAccount(remote.NormalizeEmail(req.Email))
	acc.PasswordHash = passwordHash

	if err := h.db.CreateAccount(r.Context(), acc); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			writeError(w, http.StatusConflict, remote.MsgEmailInUse)
			return
		}
		h.internalError(w, r, "failed to create account", err)
		return
	}

	h.log.Info(r.Context(), "account created", "uid", acc.ID)
	h.respondWithSession(w, r, http.StatusCreated, acc)
}

// HandleSignIn handles POST /api/sessions
func (h *Handlers) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req protocol.AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !remote.ValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, remote.MsgInvalidEmail)
		return
	}

	acc, err := h.db.GetAccountByEmail(r.Context(), remote.NormalizeEmail(req.Email))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusBadRequest, remote.MsgUserNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to look up account", err)
		return
	}

	if !crypto.CheckPassword(req.Password, acc.PasswordHash) {
		writeError(w, http.StatusBadRequest, remote.MsgWrongPassword)
		return
	}

	h.respondWithSession(w, r, http.StatusOK, acc)
}

// HandleSignOut handles DELETE /api/sessions/current
func (h *Handlers) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := h.db.DeleteSession(r.Context(), claims.ID); err != nil {
		h.internalError(w, r, "failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateProfile handles PATCH /api/accounts/{uid}
func (h *Handlers) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if claimsFrom(r.Context()).UserID != uid {
		writeError(w, http.StatusForbidden, remote.MsgPermissionDenied)
		return
	}

	var upd remote.ProfileUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	err := h.db.UpdateAccountProfile(r.Context(), uid, strings.TrimSpace(upd.DisplayName), strings.TrimSpace(upd.PhotoURL))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, remote.MsgUserNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to update profile", err)
		return
	}

	acc, err := h.db.GetAccountByID(r.Context(), uid)
	if err != nil {
		h.internalError(w, r, "failed to load account", err)
		return
	}
	writeJSON(w, http.StatusOK, profileOf(acc))
}

// HandlePutUser handles PUT /api/users/{uid}
func (h *Handlers) HandlePutUser(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if claimsFrom(r.Context()).UserID != uid {
		writeError(w, http.StatusForbidden, remote.MsgPermissionDenied)
		return
	}

	var rec models.UserRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	if strings.TrimSpace(rec.Name) == "" || len(rec.Name) > maxNameLength {
		writeError(w, http.StatusBadRequest, remote.MsgInvalidUserName)
		return
	}

	if err := h.db.PutUser(r.Context(), uid, rec); err != nil {
		h.internalError(w, r, "failed to save user", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandlePutChannel handles PUT /api/channels/{key}. Writing a key that
// already exists succeeds without a second dispatch.
func (h *Handlers) HandlePutChannel(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" || len(key) > maxKeyLength {
		writeError(w, http.StatusBadRequest, remote.MsgInvalidChannel)
		return
	}

	var ch models.Channel
	if !decodeBody(w, r, &ch) {
		return
	}
	if ch.ID != "" && ch.ID != key {
		writeError(w, http.StatusBadRequest, remote.MsgInvalidChannel)
		return
	}
	ch = models.NewChannel(key, ch.Name, ch.Details, ch.CreatedBy)
	if ch.Name == "" || ch.Details == "" || len(ch.Name) > maxNameLength {
		writeError(w, http.StatusBadRequest, remote.MsgInvalidChannel)
		return
	}

	seq, inserted, err := h.db.AppendChannel(r.Context(), ch, claimsFrom(r.Context()).UserID)
	if err != nil {
		h.internalError(w, r, "failed to append channel", err)
		return
	}

	if inserted {
		h.hub.Publish(seq, ch)
		h.log.Info(r.Context(), "channel appended", "id", ch.ID, "seq", seq, "name", ch.Name)
	}
	writeJSON(w, http.StatusOK, ch)
}

// HandleHealth returns server health status
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := h.db.CountChannels(r.Context())
	if err != nil {
		h.internalError(w, r, "health check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"time":     time.Now().UTC(),
		"channels": n,
	})
}

func (h *Handlers) respondWithSession(w http.ResponseWriter, r *http.Request, status int, acc *models.Account) {
	sessionID, err := h.db.CreateSession(r.Context(), acc.ID, r.UserAgent(), time.Now().Add(h.tokens.TTL()))
	if err != nil {
		h.internalError(w, r, "failed to create session", err)
		return
	}

	token, _, err := h.tokens.Issue(acc.ID, sessionID)
	if err != nil {
		h.internalError(w, r, "failed to issue token", err)
		return
	}

	writeJSON(w, status, protocol.AuthResponse{Profile: profileOf(acc), Token: token})
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(r.Context(), msg, "error", err, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "An internal error has occurred.")
}

func profileOf(acc *models.Account) remote.Profile {
	return remote.Profile{
		UID:         acc.ID,
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		PhotoURL:    acc.PhotoURL,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: message})
}
