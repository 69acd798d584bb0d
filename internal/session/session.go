package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/models"
	"github.com/0xF3546/stockflow-frontend/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// Session holds the authenticated identity, its bearer token and the cash
// balance available for buys. Cash only changes through SetCash, which the
// portfolio refresh calls after a server round trip.
type Session struct {
	mu       sync.RWMutex
	identity *models.Identity
	token    string
	cash     decimal.Decimal

	auth   market.Authenticator
	store  *storage.Store
	logger *logger.Logger
	now    func() time.Time
}

// New creates a logged-out session. auth may be nil for brokers that use
// API keys instead of logins.
func New(auth market.Authenticator, store *storage.Store, l *logger.Logger) *Session {
	if l == nil {
		l = logger.NewSilent()
	}
	return &Session{auth: auth, store: store, logger: l, now: time.Now}
}

// CurrentIdentity returns the logged in user, if any.
func (s *Session) CurrentIdentity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return models.Identity{}, false
	}
	if !s.identity.ExpiresAt.IsZero() && s.now().After(s.identity.ExpiresAt) {
		return models.Identity{}, false
	}
	return *s.identity, true
}

// Token returns the bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// AvailableCash returns the last server reported cash balance.
func (s *Session) AvailableCash() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash
}

// SetCash records the cash balance from a server snapshot.
func (s *Session) SetCash(cash decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash = cash
}

// Login authenticates against the backend and persists the token.
func (s *Session) Login(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	if s.auth == nil {
		return models.Identity{}, fmt.Errorf("login not supported by this broker")
	}
	if creds.Username == "" || creds.Password == "" {
		return models.Identity{}, fmt.Errorf("username and password are required")
	}

	tok, err := s.auth.Login(ctx, creds)
	if err != nil {
		return models.Identity{}, fmt.Errorf("login: %w", err)
	}

	id, err := identityFromToken(tok.Token, tok.Username, s.now())
	if err != nil {
		return models.Identity{}, err
	}

	s.mu.Lock()
	s.identity = &id
	s.token = tok.Token
	s.mu.Unlock()

	s.logger.Info().Str("user", id.Username).Msg("Logged in")
	s.persist(tok.Token, id.Username)
	return id, nil
}

// Register creates an account. The user still has to log in afterwards.
func (s *Session) Register(ctx context.Context, reg models.Registration) error {
	if s.auth == nil {
		return fmt.Errorf("registration not supported by this broker")
	}
	if reg.Username == "" || reg.Password == "" {
		return fmt.Errorf("username and password are required")
	}
	if err := s.auth.Register(ctx, reg); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.logger.Info().Str("user", reg.Username).Msg("Registered")
	return nil
}

// Logout clears the identity, the token and the cached cash balance.
func (s *Session) Logout() {
	s.mu.Lock()
	user := ""
	if s.identity != nil {
		user = s.identity.Username
	}
	s.identity = nil
	s.token = ""
	s.cash = decimal.Zero
	s.mu.Unlock()

	s.logger.Info().Str("user", user).Msg("Logged out")
	s.persist("", "")
}

// Restore loads a token persisted by an earlier run. Expired or unreadable
// tokens are discarded.
func (s *Session) Restore() (models.Identity, bool) {
	if s.store == nil {
		return models.Identity{}, false
	}
	st, err := s.store.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Could not load session state")
		return models.Identity{}, false
	}
	if st.Token == "" {
		return models.Identity{}, false
	}

	id, err := identityFromToken(st.Token, st.Username, s.now())
	if err != nil {
		s.logger.Info().Err(err).Msg("Stored token discarded")
		s.persist("", "")
		return models.Identity{}, false
	}

	s.mu.Lock()
	s.identity = &id
	s.token = st.Token
	s.mu.Unlock()
	return id, true
}

// Assume sets an identity without a login, for API key brokers.
func (s *Session) Assume(id models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &id
}

func (s *Session) persist(token, username string) {
	if s.store == nil {
		return
	}
	err := s.store.Update(func(st *models.SessionState) {
		st.Token = token
		st.Username = username
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
	}
}

// identityFromToken reads the sub, username and exp claims. The signature is
// not verified; the backend does that on every request.
func identityFromToken(token, fallbackUser string, now time.Time) (models.Identity, error) {
	id := models.Identity{Username: fallbackUser}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque tokens carry no claims
		return id, nil
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.ID = sub
	}
	if name, ok := claims["username"].(string); ok && name != "" {
		id.Username = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
		if now.After(exp.Time) {
			return models.Identity{}, fmt.Errorf("token expired at %s", exp.Time.Format(time.RFC3339))
		}
	}
	if id.Username == "" {
		id.Username = id.ID
	}
	return id, nil
}
