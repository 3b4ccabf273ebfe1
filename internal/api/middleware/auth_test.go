package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashifo7/StudyBuddy/internal/models"
	"github.com/Ashifo7/StudyBuddy/internal/store"
	"github.com/Ashifo7/StudyBuddy/internal/token"
)

func newAuthFixture(t *testing.T) (*AuthMiddleware, *models.User, string) {
	t.Helper()
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	user, err := db.CreateUser(context.Background(), "Priya", "")
	require.NoError(t, err)

	tokens := token.NewManager("test-secret")
	signed, err := tokens.Issue(user.ID)
	require.NoError(t, err)

	return NewAuthMiddleware(db, tokens), user, signed
}

// protected returns 200 with the authenticated user's id.
func protected(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		require.NotNil(t, user)
		w.Write([]byte(user.ID.String()))
	})
}

func TestRequireAuthBearerHeader(t *testing.T) {
	m, user, signed := newAuthFixture(t)

	r := httptest.NewRequest("GET", "/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	m.RequireAuth(protected(t)).ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID.String(), w.Body.String())
}

func TestRequireAuthQueryToken(t *testing.T) {
	m, user, signed := newAuthFixture(t)

	// Websocket handshakes carry the token as a query parameter
	r := httptest.NewRequest("GET", "/ws?token="+signed, nil)
	w := httptest.NewRecorder()
	m.RequireAuth(protected(t)).ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID.String(), w.Body.String())
}

func TestRequireAuthMissingToken(t *testing.T) {
	m, _, _ := newAuthFixture(t)

	r := httptest.NewRequest("GET", "/users/me", nil)
	w := httptest.NewRecorder()
	m.RequireAuth(protected(t)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	m, _, _ := newAuthFixture(t)

	r := httptest.NewRequest("GET", "/users/me", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	m.RequireAuth(protected(t)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	m, user, _ := newAuthFixture(t)

	forged, err := token.NewManager("other-secret").Issue(user.ID)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	m.RequireAuth(protected(t)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthDeletedUser(t *testing.T) {
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tokens := token.NewManager("test-secret")
	user, err := db.CreateUser(context.Background(), "Ghost", "")
	require.NoError(t, err)
	signed, err := tokens.Issue(user.ID)
	require.NoError(t, err)

	// Token for a user the directory no longer knows
	other, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(other.Close)
	m := NewAuthMiddleware(other, tokens)

	r := httptest.NewRequest("GET", "/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	m.RequireAuth(protected(t)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
