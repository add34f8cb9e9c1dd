package qa

import (
	"context"
	"sync"

	"quorum/api/internal/auth"
	"quorum/api/internal/docstore"
)

// AuthProvider is the slice of the auth provider the session store uses.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password, username string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	Subscribe(cb auth.Callback) func()
}

// profileReader is the slice of the document store used for profile loads.
type profileReader interface {
	GetDocument(ctx context.Context, collection, id string) (map[string]any, error)
}

// SessionStore mirrors the auth provider into a readable identity. The
// identity is written only by the auth-change listener; SignUp, SignIn and
// SignOut delegate to the provider and manage nothing but a loading flag
// and the error field, so an action's return can never race the listener.
type SessionStore struct {
	provider AuthProvider
	profiles profileReader

	mu          sync.Mutex
	identity    *auth.Identity
	username    string
	authReady   bool
	loading     bool
	lastErr     string
	unsubscribe func()
}

// NewSessionStore creates the store and subscribes to auth changes. The
// caller triggers the provider's initial resolution after construction.
func NewSessionStore(provider AuthProvider, profiles profileReader) *SessionStore {
	s := &SessionStore{
		provider: provider,
		profiles: profiles,
	}
	s.unsubscribe = provider.Subscribe(s.onAuthChange)
	return s
}

// onAuthChange is the single writer of the identity fields. On sign-in it
// loads the profile document; a failed load forces a local sign-out so the
// store never exposes an identity without a username.
func (s *SessionStore) onAuthChange(identity *auth.Identity) {
	if identity == nil {
		s.mu.Lock()
		s.identity = nil
		s.username = ""
		s.authReady = true
		s.mu.Unlock()
		return
	}

	fields, err := s.profiles.GetDocument(context.Background(), UsersCollection, identity.UID)
	if err != nil {
		// SignOut re-enters this listener with a nil identity.
		_ = s.provider.SignOut(context.Background())
		s.mu.Lock()
		s.lastErr = "failed to fetch user profile"
		s.authReady = true
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.identity = identity
	s.username = docstore.String(fields, "username")
	s.authReady = true
	s.mu.Unlock()
}

// SignUp creates an account. The resulting identity arrives through the
// auth-change listener, not through this call.
func (s *SessionStore) SignUp(ctx context.Context, email, password, username string) error {
	s.setLoading(true)
	defer s.setLoading(false)
	s.setErr("")

	if err := s.provider.SignUp(ctx, email, password, username); err != nil {
		s.setErr(err.Error())
		return err
	}
	return nil
}

// SignIn authenticates. Identity state is set by the listener.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)
	s.setErr("")

	if err := s.provider.SignIn(ctx, email, password); err != nil {
		s.setErr(err.Error())
		return err
	}
	return nil
}

// SignOut ends the session. State is cleared by the listener.
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.setErr("")
	if err := s.provider.SignOut(ctx); err != nil {
		s.setErr(err.Error())
		return err
	}
	return nil
}

// Close tears the store down at session end.
func (s *SessionStore) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// IsLoggedIn reports whether an identity is present.
func (s *SessionStore) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil
}

// UserID returns the signed-in user id, or "".
func (s *SessionStore) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.UID
}

// Username returns the signed-in user's display name, or "".
func (s *SessionStore) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// IsAuthReady reports whether the initial session resolution has finished,
// distinguishing "still determining" from "definitely signed out".
func (s *SessionStore) IsAuthReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authReady
}

// IsLoading reports whether a sign-up or sign-in is in flight.
func (s *SessionStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, or "".
func (s *SessionStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *SessionStore) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *SessionStore) setErr(message string) {
	s.mu.Lock()
	s.lastErr = message
	s.mu.Unlock()
}
