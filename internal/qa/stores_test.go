package qa

import (
	"context"
	"errors"

	"quorum/api/internal/auth"
)

// fakeRemote implements Remote with per-method hooks and call counters,
// so tests can assert that an operation issued (or did not issue) a
// remote call.
type fakeRemote struct {
	listFn   func(ctx context.Context, collection string, q ListQuery) ([]Item, error)
	getFn    func(ctx context.Context, collection, id string) (Item, error)
	createFn func(ctx context.Context, collection string, item Item) (string, error)
	voteFn   func(ctx context.Context, collection, itemID, userID string, voteType Vote) error

	listCalls   int
	getCalls    int
	createCalls int
	voteCalls   int
}

func (f *fakeRemote) List(ctx context.Context, collection string, q ListQuery) ([]Item, error) {
	f.listCalls++
	if f.listFn != nil {
		return f.listFn(ctx, collection, q)
	}
	return []Item{}, nil
}

func (f *fakeRemote) Get(ctx context.Context, collection, id string) (Item, error) {
	f.getCalls++
	if f.getFn != nil {
		return f.getFn(ctx, collection, id)
	}
	return Item{}, ErrItemNotFound
}

func (f *fakeRemote) Create(ctx context.Context, collection string, item Item) (string, error) {
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(ctx, collection, item)
	}
	return "server-id", nil
}

func (f *fakeRemote) Vote(ctx context.Context, collection, itemID, userID string, voteType Vote) error {
	f.voteCalls++
	if f.voteFn != nil {
		return f.voteFn(ctx, collection, itemID, userID, voteType)
	}
	return nil
}

// fakeAuth implements AuthProvider. Sign-in drives the subscribed callback
// the way the real provider does.
type fakeAuth struct {
	cb       auth.Callback
	signUpFn func(email, password, username string) error
	signInFn func(email, password string) error
}

func (f *fakeAuth) Subscribe(cb auth.Callback) func() {
	f.cb = cb
	return func() { f.cb = nil }
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password, username string) error {
	if f.signUpFn != nil {
		return f.signUpFn(email, password, username)
	}
	f.announce(&auth.Identity{UID: "uid-" + username, Email: email})
	return nil
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) error {
	if f.signInFn != nil {
		return f.signInFn(email, password)
	}
	f.announce(&auth.Identity{UID: "uid-signed-in", Email: email})
	return nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.announce(nil)
	return nil
}

func (f *fakeAuth) announce(identity *auth.Identity) {
	if f.cb != nil {
		f.cb(identity)
	}
}

// fakeProfiles implements profileReader.
type fakeProfiles struct {
	getFn func(collection, id string) (map[string]any, error)
}

func (f *fakeProfiles) GetDocument(ctx context.Context, collection, id string) (map[string]any, error) {
	if f.getFn != nil {
		return f.getFn(collection, id)
	}
	return nil, errors.New("profile not found")
}

// signedInSession builds a SessionStore whose listener has already resolved
// a signed-in identity.
func signedInSession(uid, username string) *SessionStore {
	provider := &fakeAuth{}
	profiles := &fakeProfiles{
		getFn: func(collection, id string) (map[string]any, error) {
			return map[string]any{"uid": id, "username": username}, nil
		},
	}
	store := NewSessionStore(provider, profiles)
	provider.announce(&auth.Identity{UID: uid})
	return store
}

// signedOutSession builds a SessionStore resolved to signed out.
func signedOutSession() *SessionStore {
	provider := &fakeAuth{}
	store := NewSessionStore(provider, &fakeProfiles{})
	provider.announce(nil)
	return store
}
