package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/protocol"
	"github.com/concord-chat/devchat/internal/remote"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DatabasePath = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	cfg.JWTSecret = "test-secret"

	s, err := New(cfg, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func errorOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[protocol.ErrorResponse](t, resp).Error
}

func createAccount(t *testing.T, ts *httptest.Server, email string) protocol.AuthResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/accounts", "", protocol.AccountRequest{Email: email, Password: "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[protocol.AuthResponse](t, resp)
}

func TestAccounts(t *testing.T) {
	ts := newTestServer(t)

	auth := createAccount(t, ts, "A@b.com")
	assert.NotEmpty(t, auth.Token)
	assert.NotEmpty(t, auth.Profile.UID)
	assert.Equal(t, "a@b.com", auth.Profile.Email)

	tests := []struct {
		name   string
		path   string
		req    protocol.AccountRequest
		status int
		msg    string
	}{
		{"duplicate", "/api/accounts", protocol.AccountRequest{Email: "a@b.com", Password: "secret1"}, http.StatusConflict, remote.MsgEmailInUse},
		{"bad email", "/api/accounts", protocol.AccountRequest{Email: "nope", Password: "secret1"}, http.StatusBadRequest, remote.MsgInvalidEmail},
		{"weak", "/api/accounts", protocol.AccountRequest{Email: "c@d.com", Password: "123"}, http.StatusBadRequest, remote.MsgWeakPassword},
		{"unknown", "/api/sessions", protocol.AccountRequest{Email: "x@y.com", Password: "secret1"}, http.StatusBadRequest, remote.MsgUserNotFound},
		{"wrong password", "/api/sessions", protocol.AccountRequest{Email: "a@b.com", Password: "secret2"}, http.StatusBadRequest, remote.MsgWrongPassword},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.URL+tc.path, "", tc.req)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.msg, errorOf(t, resp))
		})
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", "", protocol.AccountRequest{Email: "a@b.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	signIn := decode[protocol.AuthResponse](t, resp)
	assert.Equal(t, auth.Profile.UID, signIn.Profile.UID)
}

func TestProfileAndDirectory(t *testing.T) {
	ts := newTestServer(t)
	alice := createAccount(t, ts, "a@b.com")
	bob := createAccount(t, ts, "b@b.com")
	uid := alice.Profile.UID

	upd := remote.ProfileUpdate{DisplayName: "alice", PhotoURL: "http://gravatar.com/avatar/x?d=identicon"}

	resp := doJSON(t, http.MethodPatch, ts.URL+"/api/accounts/"+uid, "", upd)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/accounts/"+uid, bob.Token, upd)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/accounts/"+uid, alice.Token, upd)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[remote.Profile](t, resp)
	assert.Equal(t, "alice", profile.DisplayName)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/users/"+uid, alice.Token, models.UserRecord{Name: "alice", Avatar: upd.PhotoURL})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/users/"+uid, bob.Token, models.UserRecord{Name: "mallory"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/sessions", "", protocol.AccountRequest{Email: "a@b.com", Password: "secret1"})
	assert.Equal(t, "alice", decode[protocol.AuthResponse](t, resp).Profile.DisplayName)
}

func TestSignOutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	alice := createAccount(t, ts, "a@b.com")

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/current", alice.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/users/"+alice.Profile.UID, alice.Token, models.UserRecord{Name: "alice"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, remote.MsgCredentialTooOld, errorOf(t, resp))
}

func TestPutChannelValidation(t *testing.T) {
	ts := newTestServer(t)
	alice := createAccount(t, ts, "a@b.com")

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/channels/k1", alice.Token, models.Channel{Name: " ", Details: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, remote.MsgInvalidChannel, errorOf(t, resp))

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/channels/k1", alice.Token, models.Channel{ID: "k2", Name: "general", Details: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/channels/k1", "", models.Channel{Name: "general", Details: "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPutUserValidation(t *testing.T) {
	ts := newTestServer(t)
	alice := createAccount(t, ts, "a@b.com")
	url := ts.URL + "/api/users/" + alice.Profile.UID

	resp := doJSON(t, http.MethodPut, url, alice.Token, models.UserRecord{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, remote.MsgInvalidUserName, errorOf(t, resp))

	resp = doJSON(t, http.MethodPut, url, alice.Token, models.UserRecord{Name: strings.Repeat("a", 101)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, remote.MsgInvalidUserName, errorOf(t, resp))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "ok", body["status"])
}

// --- websocket ---

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := readMsg(t, conn)
	require.Equal(t, protocol.OpHello, hello.Op)
	var p protocol.HelloPayload
	require.NoError(t, hello.Decode(&p))
	assert.Equal(t, heartbeatInterval, p.HeartbeatInterval)
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendOp(t *testing.T, conn *websocket.Conn, op protocol.OpCode, data interface{}) {
	t.Helper()
	msg, err := protocol.NewMessage(op, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func readChannel(t *testing.T, conn *websocket.Conn) (int64, models.Channel) {
	t.Helper()
	msg := readMsg(t, conn)
	require.Equal(t, protocol.OpDispatch, msg.Op)
	require.Equal(t, protocol.EventChannelAppended, msg.Type)
	require.NotNil(t, msg.Seq)
	var p protocol.ChannelAppendedPayload
	require.NoError(t, msg.Decode(&p))
	return *msg.Seq, p.Channel
}

func putChannel(t *testing.T, ts *httptest.Server, token, key, name string) {
	t.Helper()
	resp := doJSON(t, http.MethodPut, ts.URL+"/api/channels/"+key, token,
		models.Channel{Name: name, Details: name + " talk", CreatedBy: models.Creator{Name: "alice"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocket_InvalidToken(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	sendOp(t, conn, protocol.OpIdentify, protocol.IdentifyPayload{Token: "garbage"})
	msg := readMsg(t, conn)
	require.Equal(t, protocol.OpInvalidSession, msg.Op)

	var p protocol.InvalidSessionPayload
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, remote.MsgCredentialTooOld, p.Message)

	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int(protocol.CloseAuthFailed), ce.Code)
}

func TestWebSocket_SubscribeRequiresIdentify(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	sendOp(t, conn, protocol.OpSubscribe, nil)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int(protocol.CloseNotAuthenticated), ce.Code)
}

func TestWebSocket_ReplayThenLive(t *testing.T) {
	ts := newTestServer(t)
	alice := createAccount(t, ts, "a@b.com")

	putChannel(t, ts, alice.Token, "k1", "general")
	putChannel(t, ts, alice.Token, "k2", "random")

	conn := dialWS(t, ts)
	sendOp(t, conn, protocol.OpIdentify, protocol.IdentifyPayload{Token: alice.Token})
	ready := readMsg(t, conn)
	require.Equal(t, protocol.OpReady, ready.Op)
	var rp protocol.ReadyPayload
	require.NoError(t, ready.Decode(&rp))
	assert.Equal(t, alice.Profile.UID, rp.UserID)

	sendOp(t, conn, protocol.OpHeartbeat, protocol.HeartbeatPayload{})
	assert.Equal(t, protocol.OpHeartbeatAck, readMsg(t, conn).Op)

	sendOp(t, conn, protocol.OpSubscribe, nil)
	seq1, ch1 := readChannel(t, conn)
	seq2, ch2 := readChannel(t, conn)
	assert.Equal(t, "k1", ch1.ID)
	assert.Equal(t, "general", ch1.Name)
	assert.Equal(t, "alice", ch1.CreatedBy.Name)
	assert.Equal(t, "k2", ch2.ID)
	assert.Less(t, seq1, seq2)

	// a repeated write is stored once and not dispatched again
	putChannel(t, ts, alice.Token, "k2", "random")
	putChannel(t, ts, alice.Token, "k3", "ops")

	seq3, ch3 := readChannel(t, conn)
	assert.Equal(t, "k3", ch3.ID)
	assert.Less(t, seq2, seq3)
}
