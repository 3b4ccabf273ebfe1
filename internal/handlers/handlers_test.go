package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashifo7/StudyBuddy/internal/api/middleware"
	"github.com/Ashifo7/StudyBuddy/internal/models"
	"github.com/Ashifo7/StudyBuddy/internal/store"
	"github.com/Ashifo7/StudyBuddy/internal/token"
)

// testHarness wires handlers against an in-memory SQLite store.
type testHarness struct {
	handler *Handler
	db      store.DataStore
	tokens  *token.Manager
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tokens := token.NewManager("test-secret")
	return &testHarness{
		handler: NewHandler(db, nil, tokens),
		db:      db,
		tokens:  tokens,
	}
}

// createUser registers a user directly in the store.
func (h *testHarness) createUser(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := h.db.CreateUser(context.Background(), name, "")
	require.NoError(t, err)
	return user
}

// authed injects a user into the request context the way RequireAuth does.
func authed(r *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, user)
	return r.WithContext(ctx)
}

// withURLParam attaches a chi route parameter to the request.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func validTestKey(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}

func restEnvelope(senderID, receiverID string) models.Envelope {
	return models.Envelope{
		ConversationID: "conv-1",
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Ciphertext:     "Y2lwaGVy",
		KeyForSender:   "a2V5LXM=",
		KeyForReceiver: "a2V5LXI=",
		IV:             "aXYxMjM0NTY3OA==",
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	body, _ := json.Marshal(RegisterRequest{Name: "Priya", Email: "priya@example.com"})
	r := httptest.NewRequest("POST", "/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.handler.Register(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "/users/"+resp.ID, resp.ProfileURL)

	// The issued token verifies against the same manager
	_, err := h.tokens.Verify(resp.Token)
	require.NoError(t, err)
}

func TestRegisterRequiresName(t *testing.T) {
	h := newHarness(t)

	body, _ := json.Marshal(RegisterRequest{Name: "   "})
	r := httptest.NewRequest("POST", "/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.handler.Register(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	h := newHarness(t)

	body, _ := json.Marshal(RegisterRequest{Name: "Priya", Email: "not-an-email"})
	r := httptest.NewRequest("POST", "/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.handler.Register(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetAndGetPublicKey(t *testing.T) {
	h := newHarness(t)
	user := h.createUser(t, "Priya")
	key := validTestKey(t)

	body, _ := json.Marshal(SetPublicKeyRequest{PublicKey: key})
	r := authed(httptest.NewRequest("PUT", "/users/me/public-key", bytes.NewReader(body)), user)
	w := httptest.NewRecorder()
	h.handler.SetPublicKey(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	r = withURLParam(httptest.NewRequest("GET", "/users/"+user.ID.String()+"/public-key", nil), "id", user.ID.String())
	w = httptest.NewRecorder()
	h.handler.GetPublicKey(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PublicKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.ID.String(), resp.UserID)
	assert.Equal(t, key, resp.PublicKey)
}

func TestSetPublicKeyRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	user := h.createUser(t, "Priya")

	body, _ := json.Marshal(SetPublicKeyRequest{PublicKey: "bm90IGEga2V5"})
	r := authed(httptest.NewRequest("PUT", "/users/me/public-key", bytes.NewReader(body)), user)
	w := httptest.NewRecorder()
	h.handler.SetPublicKey(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPublicKeyUnpublished(t *testing.T) {
	h := newHarness(t)
	user := h.createUser(t, "Priya")

	r := withURLParam(httptest.NewRequest("GET", "/users/"+user.ID.String()+"/public-key", nil), "id", user.ID.String())
	w := httptest.NewRecorder()
	h.handler.GetPublicKey(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAndListMessages(t *testing.T) {
	h := newHarness(t)
	alice := h.createUser(t, "Alice")

	env := restEnvelope(alice.ID.String(), "bob")
	body, _ := json.Marshal(env)
	r := authed(httptest.NewRequest("POST", "/messages", bytes.NewReader(body)), alice)
	w := httptest.NewRecorder()
	h.handler.CreateMessage(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.True(t, created.Success)
	assert.NotEmpty(t, created.Envelope.ID)
	assert.NotZero(t, created.Envelope.CreatedAt)

	r = authed(withURLParam(httptest.NewRequest("GET", "/messages/conv-1", nil), "conversationId", "conv-1"), alice)
	w = httptest.NewRecorder()
	h.handler.ListMessages(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var listed MessageListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Envelopes, 1)
	assert.Equal(t, created.Envelope.ID, listed.Envelopes[0].ID)
}

func TestCreateMessageStampsSender(t *testing.T) {
	h := newHarness(t)
	alice := h.createUser(t, "Alice")

	env := restEnvelope("", "bob")
	body, _ := json.Marshal(env)
	r := authed(httptest.NewRequest("POST", "/messages", bytes.NewReader(body)), alice)
	w := httptest.NewRecorder()
	h.handler.CreateMessage(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, alice.ID.String(), created.Envelope.SenderID)
}

func TestCreateMessageRejectsIncomplete(t *testing.T) {
	h := newHarness(t)
	alice := h.createUser(t, "Alice")

	env := restEnvelope(alice.ID.String(), "bob")
	env.IV = ""
	body, _ := json.Marshal(env)
	r := authed(httptest.NewRequest("POST", "/messages", bytes.NewReader(body)), alice)
	w := httptest.NewRecorder()
	h.handler.CreateMessage(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessagesEmptyConversation(t *testing.T) {
	h := newHarness(t)
	alice := h.createUser(t, "Alice")

	r := authed(withURLParam(httptest.NewRequest("GET", "/messages/conv-none", nil), "conversationId", "conv-none"), alice)
	w := httptest.NewRecorder()
	h.handler.ListMessages(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	// Empty conversation serializes as [], not null
	assert.Contains(t, w.Body.String(), `"messages":[]`)
}

func TestDeleteConversation(t *testing.T) {
	h := newHarness(t)
	alice := h.createUser(t, "Alice")

	env := restEnvelope(alice.ID.String(), "bob")
	require.NoError(t, h.db.AppendEnvelope(context.Background(), &env))

	r := authed(withURLParam(httptest.NewRequest("DELETE", "/messages/conv-1", nil), "conversationId", "conv-1"), alice)
	w := httptest.NewRecorder()
	h.handler.DeleteConversation(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	envelopes, err := h.db.ListEnvelopes(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, envelopes)
}

func TestMessagesRequireAuth(t *testing.T) {
	h := newHarness(t)

	r := httptest.NewRequest("POST", "/messages", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	h.handler.CreateMessage(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = withURLParam(httptest.NewRequest("GET", "/messages/conv-1", nil), "conversationId", "conv-1")
	w = httptest.NewRecorder()
	h.handler.ListMessages(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUser(t *testing.T) {
	h := newHarness(t)
	user := h.createUser(t, "Priya")

	r := withURLParam(httptest.NewRequest("GET", "/users/"+user.ID.String(), nil), "id", user.ID.String())
	w := httptest.NewRecorder()
	h.handler.GetUser(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.ID.String(), resp.ID)
	assert.Equal(t, "Priya", resp.Name)
}

func TestGetUserBadID(t *testing.T) {
	h := newHarness(t)

	r := withURLParam(httptest.NewRequest("GET", "/users/nope", nil), "id", "nope")
	w := httptest.NewRecorder()
	h.handler.GetUser(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
