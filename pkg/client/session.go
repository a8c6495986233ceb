package client

import (
	"context"
	"net/http"
	"sync"
)

// State is the local view of the provider session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session mirrors the server session and caches the profile. Any 401 seen by
// the underlying Client drops it back to Anonymous.
type Session struct {
	c *Client

	mu      sync.RWMutex
	state   State
	profile *Profile
}

func NewSession(c *Client) *Session {
	s := &Session{c: c}
	c.OnUnauthorized(s.reset)
	return s
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Profile returns a copy of the cached profile, or nil when anonymous.
func (s *Session) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// CheckAuth confirms the session with the server. A 401 on the profile fetch
// gets one refresh attempt before the session is considered gone; the
// session stays as it was until that attempt settles.
func (s *Session) CheckAuth(ctx context.Context) (State, error) {
	if !s.c.HasSession() {
		s.reset()
		return Anonymous, nil
	}

	qctx := quiet(ctx)
	p, err := s.c.Me(qctx)
	if KindOf(err) == Unauthorized {
		rerr := s.c.Refresh(qctx)
		switch {
		case rerr == nil:
			p, err = s.c.Me(qctx)
		case KindOf(rerr) != Unauthorized:
			return s.State(), rerr
		}
	}
	switch {
	case KindOf(err) == Unauthorized:
		s.c.unauthorized()
		return Anonymous, nil
	case err != nil:
		return s.State(), err
	}

	s.set(p)
	return Authenticated, nil
}

// SignUp registers and signs in, then loads the new profile.
func (s *Session) SignUp(ctx context.Context, req SignUpRequest) (*Profile, error) {
	if err := s.c.do(ctx, http.MethodPost, "/api/v1/users/signup", nil, req, nil); err != nil {
		return nil, err
	}
	return s.loadProfile(ctx)
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*Profile, error) {
	body := map[string]string{"email": email, "password": password}
	if err := s.c.do(ctx, http.MethodPost, "/api/v1/users/signin", nil, body, nil); err != nil {
		return nil, err
	}
	return s.loadProfile(ctx)
}

// SignOut ends the server session. Local state is cleared even when the
// call fails.
func (s *Session) SignOut(ctx context.Context) error {
	defer s.reset()
	return s.c.do(ctx, http.MethodPost, "/auth/signout", nil, nil, nil)
}

// Reload refetches the profile, e.g. after a watchlist change.
func (s *Session) Reload(ctx context.Context) (*Profile, error) {
	return s.loadProfile(ctx)
}

func (s *Session) loadProfile(ctx context.Context) (*Profile, error) {
	p, err := s.c.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.set(p)
	return s.Profile(), nil
}

func (s *Session) set(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Authenticated
	s.profile = p
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Anonymous
	s.profile = nil
}
