package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"xpdash/pkg/platform/sentinel"
)

type SessionStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = New(0)
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) TestLoad() {
	s.Run("returns stored token", func() {
		s.Require().NoError(s.store.Save(context.Background(), "sid-1", "a.b.c"))

		token, err := s.store.Load(context.Background(), "sid-1")
		s.Require().NoError(err)
		s.Equal("a.b.c", token)
	})

	s.Run("returns ErrNotFound for unknown session", func() {
		_, err := s.store.Load(context.Background(), "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("expired entries are not returned", func() {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		store := New(time.Minute)
		store.now = func() time.Time { return now }
		s.Require().NoError(store.Save(context.Background(), "sid", "a.b.c"))

		now = now.Add(time.Minute)
		_, err := store.Load(context.Background(), "sid")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		s.NotContains(store.entries, "sid", "expired entry is dropped on read")
	})
}

func (s *SessionStoreSuite) TestDeleteExpired() {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := New(time.Minute)
	store.now = func() time.Time { return now }
	s.Require().NoError(store.Save(ctx, "old", "a.b.c"))
	now = now.Add(30 * time.Second)
	s.Require().NoError(store.Save(ctx, "fresh", "d.e.f"))

	removed, err := store.DeleteExpired(ctx, now.Add(30*time.Second))
	s.Require().NoError(err)
	s.Equal(1, removed)
	s.NotContains(store.entries, "old")

	token, err := store.Load(ctx, "fresh")
	s.Require().NoError(err)
	s.Equal("d.e.f", token)

	s.Run("entries without a ttl are kept", func() {
		s.Require().NoError(s.store.Save(ctx, "sid", "a.b.c"))

		removed, err := s.store.DeleteExpired(ctx, now.Add(24*time.Hour))
		s.Require().NoError(err)
		s.Zero(removed)
		s.Contains(s.store.entries, "sid")
	})
}

func (s *SessionStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Save(context.Background(), "sid", "a.b.c"))
	s.Require().NoError(s.store.Delete(context.Background(), "sid"))

	_, err := s.store.Load(context.Background(), "sid")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	s.Require().ErrorIs(s.store.Delete(context.Background(), "sid"), sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestBind() {
	ctx := context.Background()
	alice := Bind(s.store, "alice")
	bob := Bind(s.store, "bob")

	s.Run("get on empty slot is not an error", func() {
		token, err := alice.Get(ctx)
		s.Require().NoError(err)
		s.Empty(token)
	})

	s.Run("sessions do not share tokens", func() {
		s.Require().NoError(alice.Set(ctx, "alice.token.sig"))

		token, err := bob.Get(ctx)
		s.Require().NoError(err)
		s.Empty(token)

		token, err = alice.Get(ctx)
		s.Require().NoError(err)
		s.Equal("alice.token.sig", token)
	})

	s.Run("clear is idempotent", func() {
		s.Require().NoError(alice.Clear(ctx))
		s.Require().NoError(alice.Clear(ctx))

		token, err := alice.Get(ctx)
		s.Require().NoError(err)
		s.Empty(token)
	})
}
