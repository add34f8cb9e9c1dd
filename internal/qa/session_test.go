package qa

import (
	"context"
	"errors"
	"testing"

	"quorum/api/internal/auth"
)

func TestListenerResolvesIdentityAndProfile(t *testing.T) {
	provider := &fakeAuth{}
	profiles := &fakeProfiles{
		getFn: func(collection, id string) (map[string]any, error) {
			if collection != UsersCollection || id != "uid-1" {
				t.Errorf("unexpected profile load %s/%s", collection, id)
			}
			return map[string]any{"uid": id, "username": "ada"}, nil
		},
	}
	store := NewSessionStore(provider, profiles)
	defer store.Close()

	if store.IsAuthReady() {
		t.Error("auth must not be ready before the first notification")
	}

	provider.announce(&auth.Identity{UID: "uid-1"})

	if !store.IsLoggedIn() {
		t.Error("expected logged-in state")
	}
	if store.UserID() != "uid-1" || store.Username() != "ada" {
		t.Errorf("unexpected identity %s/%s", store.UserID(), store.Username())
	}
	if !store.IsAuthReady() {
		t.Error("auth must be ready after the notification cycle")
	}
}

func TestListenerSignedOutResolution(t *testing.T) {
	provider := &fakeAuth{}
	store := NewSessionStore(provider, &fakeProfiles{})
	defer store.Close()

	provider.announce(nil)

	if store.IsLoggedIn() {
		t.Error("expected signed-out state")
	}
	if !store.IsAuthReady() {
		t.Error("a signed-out resolution still marks auth ready")
	}
}

func TestProfileLoadFailureForcesSignOut(t *testing.T) {
	provider := &fakeAuth{}
	profiles := &fakeProfiles{
		getFn: func(string, string) (map[string]any, error) {
			return nil, errors.New("profile missing")
		},
	}
	store := NewSessionStore(provider, profiles)
	defer store.Close()

	provider.announce(&auth.Identity{UID: "uid-1"})

	if store.IsLoggedIn() {
		t.Error("profile failure must force a local sign-out")
	}
	if store.Err() == "" {
		t.Error("expected an error message on the store")
	}
	if !store.IsAuthReady() {
		t.Error("the failed cycle still marks auth ready")
	}
}

func TestSignInDelegatesAndClearsLoading(t *testing.T) {
	provider := &fakeAuth{}
	profiles := &fakeProfiles{
		getFn: func(collection, id string) (map[string]any, error) {
			return map[string]any{"username": "ada"}, nil
		},
	}
	store := NewSessionStore(provider, profiles)
	defer store.Close()

	if err := store.SignIn(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if store.IsLoading() {
		t.Error("loading must be cleared after sign-in")
	}
	if !store.IsLoggedIn() {
		t.Error("expected logged-in state via the listener")
	}
}

func TestSignInFailureRecordsErrorAndClearsLoading(t *testing.T) {
	provider := &fakeAuth{
		signInFn: func(string, string) error {
			return errors.New("invalid email or password")
		},
	}
	store := NewSessionStore(provider, &fakeProfiles{})
	defer store.Close()

	if err := store.SignIn(context.Background(), "ada@example.com", "bad"); err == nil {
		t.Fatal("expected sign-in error")
	}
	if store.IsLoading() {
		t.Error("loading must be cleared on the failure path")
	}
	if store.Err() == "" {
		t.Error("expected an error message on the store")
	}
	if store.IsLoggedIn() {
		t.Error("failed sign-in must not set identity")
	}
}

func TestSignUpFailureDoesNotTouchIdentity(t *testing.T) {
	provider := &fakeAuth{
		signUpFn: func(string, string, string) error {
			return errors.New("email already registered")
		},
	}
	store := NewSessionStore(provider, &fakeProfiles{})
	defer store.Close()

	if err := store.SignUp(context.Background(), "ada@example.com", "pw123456", "ada"); err == nil {
		t.Fatal("expected sign-up error")
	}
	if store.IsLoggedIn() {
		t.Error("failed sign-up must not set identity")
	}
}

func TestSignOutClearsThroughListener(t *testing.T) {
	store := signedInSession("uid-1", "ada")
	defer store.Close()

	if err := store.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if store.IsLoggedIn() || store.UserID() != "" || store.Username() != "" {
		t.Error("sign-out must clear identity via the listener")
	}
}
