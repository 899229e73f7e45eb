package auth

import (
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"bookshelf/internal/config"
)

// Session data keys
const (
	SessionKeyIdentity    = "identity"
	SessionKeyAccessToken = "access_token"
	SessionKeySignedInAt  = "signed_in_at"
)

func init() {
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with application-specific methods.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager.
// The sqlDB parameter should be the underlying *sql.DB from GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Sessions) (*SessionManager, error) {
	// Create sessions table if it doesn't exist
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)

	sm.Lifetime = cfg.Lifetime
	sm.IdleTimeout = cfg.Lifetime / 2

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// SignIn binds the request's session to an authenticated identity. Called
// after the external provider has issued the access token.
func (sm *SessionManager) SignIn(r *http.Request, identity, accessToken string) error {
	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	sm.Put(r.Context(), SessionKeyIdentity, identity)
	sm.Put(r.Context(), SessionKeyAccessToken, accessToken)
	sm.Put(r.Context(), SessionKeySignedInAt, time.Now())

	return nil
}

// SignOut removes all session data and invalidates the session.
func (sm *SessionManager) SignOut(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// Identity retrieves the authenticated identity from the session.
// Returns "" for guest sessions.
func (sm *SessionManager) Identity(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyIdentity)
}

// AccessToken retrieves the provider access token from the session.
func (sm *SessionManager) AccessToken(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyAccessToken)
}

// IsAuthenticated returns true if the request has a signed-in session.
func (sm *SessionManager) IsAuthenticated(r *http.Request) bool {
	return sm.Identity(r) != ""
}

// SessionData holds the session information for a request.
type SessionData struct {
	Identity    string
	AccessToken string
	SignedInAt  time.Time
}

// GetSessionData retrieves all session data at once. Returns nil for guest
// sessions.
func (sm *SessionManager) GetSessionData(r *http.Request) *SessionData {
	identity := sm.Identity(r)
	if identity == "" {
		return nil
	}

	signedInAt, _ := sm.Get(r.Context(), SessionKeySignedInAt).(time.Time)

	return &SessionData{
		Identity:    identity,
		AccessToken: sm.AccessToken(r),
		SignedInAt:  signedInAt,
	}
}
