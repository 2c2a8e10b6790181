package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"
	"golang.org/x/time/rate"

	"almondsense/internal/metrics"
	"almondsense/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrNoSession          = errors.New("no live session")
)

// Config holds the operator credential pair and gate settings. Password is
// either a bcrypt hash or a plain secret.
type Config struct {
	Username      string
	Password      string
	Secret        string
	TTL           time.Duration
	RatePerMinute int
	Burst         int
}

// Manager owns the live operator sessions.
type Manager struct {
	cfg    Config
	tokens *util.TokenIssuer
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	limiters map[string]*limiterEntry
	onEnd    []func(ctx context.Context, s *Session)
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterIdle is how long an unused per-caller limiter is kept.
const limiterIdle = 30 * time.Minute

// NewManager returns a manager. now may be nil.
func NewManager(cfg Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		cfg:      cfg,
		tokens:   util.NewTokenIssuer(cfg.Secret, util.AudienceAdmin, cfg.TTL, now),
		now:      now,
		sessions: make(map[string]*Session),
		limiters: make(map[string]*limiterEntry),
	}
}

// OnEnd registers fn to run when a session is destroyed by logout or found
// expired.
func (m *Manager) OnEnd(fn func(ctx context.Context, s *Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}

// Login checks the credential pair and opens a session. remoteKey
// identifies the caller for rate limiting, typically the client address.
func (m *Manager) Login(ctx context.Context, remoteKey, username, password string) (string, *Session, error) {
	if !m.allow(remoteKey) {
		metrics.RecordAuthAttempt("admin", false)
		log.Infof(ctx, "admin login rate limited for %s", remoteKey)
		return "", nil, ErrRateLimited
	}

	userOK := subtle.ConstantTimeCompare([]byte(m.cfg.Username), []byte(username)) == 1
	passOK := util.MatchSecret(m.cfg.Password, password)
	if !userOK || !passOK {
		metrics.RecordAuthAttempt("admin", false)
		log.Infof(ctx, "admin login failed from %s", remoteKey)
		return "", nil, ErrInvalidCredentials
	}

	id := uuid.NewString()
	token, claims, err := m.tokens.Generate(username, id, "")
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}
	s := &Session{
		ID:        id,
		Username:  username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	metrics.RecordAuthAttempt("admin", true)
	log.Print(ctx, log.KV{K: "msg", V: "admin session opened"}, log.KV{K: "session", V: id}, log.KV{K: "user", V: username})
	return token, s, nil
}

// Authenticate returns the live session behind token.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	claims, err := m.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, util.ErrExpiredToken) {
			m.Sweep(ctx)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	m.mu.Lock()
	s, ok := m.sessions[claims.ID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	if !s.Active(m.now()) {
		m.end(ctx, s)
		return nil, ErrNoSession
	}
	return s, nil
}

// Logout destroys the session behind token. Logging out an unknown or
// expired session is not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	s, ok := m.sessions[claims.ID]
	m.mu.Unlock()
	if ok {
		m.end(ctx, s)
		log.Print(ctx, log.KV{K: "msg", V: "admin session closed"}, log.KV{K: "session", V: s.ID})
	}
	return nil
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) end(ctx context.Context, s *Session) {
	m.mu.Lock()
	_, ok := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	s.End()
	hooks := append([]func(context.Context, *Session){}, m.onEnd...)
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range hooks {
		fn(ctx, s)
	}
}

// Sweep ends every session past its expiry.
func (m *Manager) Sweep(ctx context.Context) {
	now := m.now()
	m.mu.Lock()
	var dead []*Session
	for _, s := range m.sessions {
		if !s.Active(now) {
			dead = append(dead, s)
		}
	}
	m.mu.Unlock()
	for _, s := range dead {
		m.end(ctx, s)
	}
}

func (m *Manager) allow(key string) bool {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.limiters {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(m.limiters, k)
		}
	}
	e, ok := m.limiters[key]
	if !ok {
		limit := rate.Inf
		if m.cfg.RatePerMinute > 0 {
			limit = rate.Every(time.Minute / time.Duration(m.cfg.RatePerMinute))
		}
		e = &limiterEntry{lim: rate.NewLimiter(limit, m.cfg.Burst)}
		m.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}
