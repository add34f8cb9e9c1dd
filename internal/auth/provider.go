// Package auth implements the authentication provider: credential storage,
// sign-in/sign-out, and the session-change notification stream the client
// state layer subscribes to. Identity changes are announced only through
// that stream, never returned out of band.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quorum/api/internal/docstore"
	"quorum/api/internal/util"
)

const (
	usersCollection       = "users"
	credentialsCollection = "credentials"
)

// Identity is the authenticated user as the provider knows it. Profile data
// (username) lives in the users document and is loaded by the session store.
type Identity struct {
	UID   string
	Email string
}

// Callback receives the identity on every session transition; nil means
// signed out. The initial resolution at startup also goes through here.
type Callback func(identity *Identity)

// SessionStore persists the signed-in session across process restarts.
type SessionStore interface {
	SaveSession(ctx context.Context, token, uid string, ttl time.Duration) error
	LookupSession(ctx context.Context, token string) (string, error)
	RevokeSession(ctx context.Context, token string) error
}

// Provider is the authentication provider.
type Provider struct {
	docs       docstore.Store
	sessions   SessionStore // nil disables persistence
	sessionTTL time.Duration
	tokenFile  string

	mu        sync.Mutex
	current   *Identity
	token     string
	nextID    int
	listeners map[int]Callback
}

// New creates a provider. sessions may be nil, in which case a restarted
// process starts signed out.
func New(docs docstore.Store, sessions SessionStore, sessionTTL time.Duration, tokenFile string) *Provider {
	return &Provider{
		docs:       docs,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		tokenFile:  tokenFile,
		listeners:  make(map[int]Callback),
	}
}

// Subscribe registers a callback for session transitions and returns an
// unsubscribe handle. The callback is not invoked for state preceding the
// subscription; call Resume afterwards to trigger the initial resolution.
func (p *Provider) Subscribe(cb Callback) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Resume performs the initial session resolution: restore a persisted
// session if one exists, then notify every subscriber with the outcome
// (which may be "signed out").
func (p *Provider) Resume(ctx context.Context) {
	identity := p.restore(ctx)

	p.mu.Lock()
	p.current = identity
	p.mu.Unlock()

	p.notify(identity)
}

func (p *Provider) restore(ctx context.Context) *Identity {
	if p.sessions == nil || p.tokenFile == "" {
		return nil
	}
	raw, err := os.ReadFile(p.tokenFile)
	if err != nil {
		return nil
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return nil
	}

	uid, err := p.sessions.LookupSession(ctx, token)
	if err != nil {
		return nil
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	identity := &Identity{UID: uid}
	if fields, err := p.docs.GetDocument(ctx, usersCollection, uid); err == nil {
		identity.Email = docstore.String(fields, "email")
	}
	return identity
}

// SignUp creates an account and signs it in. The subscription stream
// announces the new identity.
func (p *Provider) SignUp(ctx context.Context, email, password, username string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" || strings.TrimSpace(username) == "" {
		return errors.New("email, password, and username are required")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	// Check if email already exists
	if _, err := p.docs.GetDocument(ctx, credentialsCollection, email); err == nil {
		return errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	uid := util.NewID("")
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := p.docs.SetDocument(ctx, usersCollection, uid, map[string]any{
		"uid":       uid,
		"username":  strings.TrimSpace(username),
		"email":     email,
		"createdAt": now,
	}); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	if err := p.docs.SetDocument(ctx, credentialsCollection, email, map[string]any{
		"uid":          uid,
		"passwordHash": string(hash),
		"createdAt":    now,
	}); err != nil {
		return fmt.Errorf("create credentials: %w", err)
	}

	p.establish(ctx, &Identity{UID: uid, Email: email})
	return nil
}

// SignIn authenticates a user and announces the identity.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	fields, err := p.docs.GetDocument(ctx, credentialsCollection, email)
	if err != nil {
		return errors.New("invalid email or password")
	}

	hash := docstore.String(fields, "passwordHash")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errors.New("invalid email or password")
	}

	p.establish(ctx, &Identity{UID: docstore.String(fields, "uid"), Email: email})
	return nil
}

// SignOut ends the session and announces the signed-out state.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.token = ""
	p.current = nil
	p.mu.Unlock()

	if p.sessions != nil && token != "" {
		if err := p.sessions.RevokeSession(ctx, token); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	if p.tokenFile != "" {
		_ = os.Remove(p.tokenFile)
	}

	p.notify(nil)
	return nil
}

// CurrentIdentity returns the identity as of the last transition.
func (p *Provider) CurrentIdentity() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	copied := *p.current
	return &copied
}

// establish records the identity, persists the session, and notifies.
func (p *Provider) establish(ctx context.Context, identity *Identity) {
	token := ""
	if p.sessions != nil {
		token = util.NewID("sess")
		if err := p.sessions.SaveSession(ctx, token, identity.UID, p.sessionTTL); err != nil {
			// Persistence is best effort; the in-process session stands.
			token = ""
		}
	}
	if token != "" && p.tokenFile != "" {
		_ = os.WriteFile(p.tokenFile, []byte(token), 0o600)
	}

	p.mu.Lock()
	p.current = identity
	p.token = token
	p.mu.Unlock()

	p.notify(identity)
}

// notify invokes subscribers outside the provider lock; a subscriber may
// call back into the provider or perform remote reads.
func (p *Provider) notify(identity *Identity) {
	p.mu.Lock()
	callbacks := make([]Callback, 0, len(p.listeners))
	for _, cb := range p.listeners {
		callbacks = append(callbacks, cb)
	}
	p.mu.Unlock()

	for _, cb := range callbacks {
		var copied *Identity
		if identity != nil {
			c := *identity
			copied = &c
		}
		cb(copied)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
