package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/protocol"
	"github.com/concord-chat/devchat/internal/remote"
)

// API talks to a devchat server over HTTP. It implements the identity
// service and the user directory, and the write half of the channel stream.
// The bearer token from the last sign-in is kept for later calls.
type API struct {
	base *url.URL
	http *http.Client
	log  logging.Logger

	mu    sync.RWMutex
	token string
}

// NewAPI creates a client for the server at addr. ws:// and wss:// addresses
// are accepted and mapped to http:// and https://.
func NewAPI(addr string, log logging.Logger) (*API, error) {
	u, err := httpURL(addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}
	return &API{
		base: u,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}, nil
}

// Token returns the current bearer token, empty when signed out
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// BaseURL returns the server's HTTP base address
func (a *API) BaseURL() *url.URL {
	u := *a.base
	return &u
}

// SignInWithPassword implements remote.IdentityService
func (a *API) SignInWithPassword(ctx context.Context, email, password string) (*remote.Profile, error) {
	var resp protocol.AuthResponse
	if err := a.do(ctx, "signIn", http.MethodPost, "/api/sessions", protocol.AccountRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	a.setSession(resp)
	return &resp.Profile, nil
}

// CreateAccount implements remote.IdentityService
func (a *API) CreateAccount(ctx context.Context, email, password string) (*remote.Profile, error) {
	var resp protocol.AuthResponse
	if err := a.do(ctx, "createAccount", http.MethodPost, "/api/accounts", protocol.AccountRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	a.setSession(resp)
	return &resp.Profile, nil
}

// UpdateProfile implements remote.IdentityService
func (a *API) UpdateProfile(ctx context.Context, uid string, upd remote.ProfileUpdate) error {
	return a.do(ctx, "updateProfile", http.MethodPatch, "/api/accounts/"+url.PathEscape(uid), upd, nil)
}

// SignOut revokes the server session and forgets the token
func (a *API) SignOut(ctx context.Context) error {
	if a.Token() == "" {
		return nil
	}
	err := a.do(ctx, "signOut", http.MethodDelete, "/api/sessions/current", nil, nil)

	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
	return err
}

// Put implements remote.UserDirectory
func (a *API) Put(ctx context.Context, uid string, rec models.UserRecord) error {
	return a.do(ctx, "putUser", http.MethodPut, "/api/users/"+url.PathEscape(uid), rec, nil)
}

// NewKey returns a time-ordered UUIDv7 channel key
func (a *API) NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Write stores ch under key in the channel log
func (a *API) Write(ctx context.Context, key string, ch models.Channel) error {
	ch.ID = key
	return a.do(ctx, "writeChannel", http.MethodPut, "/api/channels/"+url.PathEscape(key), ch, nil)
}

func (a *API) setSession(resp protocol.AuthResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = resp.Token
}

// do sends a JSON request. Non-2xx responses become *remote.Error carrying
// the server's message.
func (a *API) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := a.BaseURL()
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "devchat-tui")
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		a.log.Warn(ctx, "request failed", "op", op, "error", err)
		return remote.NewError(op, "A network error has occurred. Check that the server is reachable.")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er protocol.ErrorResponse
		if err := json.Unmarshal(data, &er); err != nil || er.Error == "" {
			er.Error = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		}
		a.log.Debug(ctx, "request rejected", "op", op, "status", resp.StatusCode, "error", er.Error)
		return remote.NewError(op, er.Error)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// httpURL parses a server address, mapping websocket schemes to http
func httpURL(addr string) (*url.URL, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid server address: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server address: missing host")
	}
	return u, nil
}

// wsURL returns the websocket endpoint for an http base address
func wsURL(base *url.URL) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
