// Package session holds the server-side replacement for the browser's
// persistent token slot. Each browser session id owns at most one token,
// stored under the fixed name "jwt".
package session

import (
	"context"
	"errors"

	"xpdash/pkg/platform/sentinel"
)

// TokenKey is the fixed name the session token is stored under.
const TokenKey = "jwt"

// Store persists session tokens keyed by browser session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (string, error)
	Save(ctx context.Context, sessionID, token string) error
	Delete(ctx context.Context, sessionID string) error
}

// TokenStore is the get/set/clear capability handed to the API client and
// the authenticator. It is already scoped to one browser session.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type boundStore struct {
	store     Store
	sessionID string
}

// Bind scopes store to a single browser session.
func Bind(store Store, sessionID string) TokenStore {
	return &boundStore{store: store, sessionID: sessionID}
}

// Get returns "" with a nil error when no token is stored.
func (b *boundStore) Get(ctx context.Context) (string, error) {
	token, err := b.store.Load(ctx, b.sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", nil
	}
	return token, err
}

func (b *boundStore) Set(ctx context.Context, token string) error {
	return b.store.Save(ctx, b.sessionID, token)
}

func (b *boundStore) Clear(ctx context.Context) error {
	err := b.store.Delete(ctx, b.sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return err
}
