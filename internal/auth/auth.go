// Package auth checks the admin password and tracks admin sessions and the
// short-lived tokens that unlock config changes.
package auth

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/navconfig"
)

const (
	// SessionCookie carries the session token.
	SessionCookie = "NX_SESSION"
	// VerifyHeader carries a config verify token.
	VerifyHeader = "X-Config-Verify-Token"
	// VerifyTokenTTL is how long a verify token can be used.
	VerifyTokenTTL = 5 * time.Minute

	tokenType = "config-verify"
)

// Settings supplies the current security settings and password hash.
// *navconfig.Manager implements it.
type Settings interface {
	System(ctx context.Context) (navconfig.System, error)
}

// verifyClaims are the claims of a config verify token.
type verifyClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

// Service owns sessions and verify tokens. Both live in memory only and are
// lost on restart.
type Service struct {
	settings Settings
	secret   []byte
	log      logger.Logger
	now      func() time.Time

	// Values are expiry times; go-cache evicts them a little later.
	sessions *gocache.Cache
	verify   *gocache.Cache
}

// Option configures a Service.
type Option func(*Service)

// WithSecret sets the HMAC key for verify tokens. Without it a random key is
// generated, so tokens do not survive a restart.
func WithSecret(secret []byte) Option {
	return func(s *Service) {
		if len(secret) > 0 {
			s.secret = append([]byte(nil), secret...)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service reading its settings from settings.
func New(settings Settings, opts ...Option) (*Service, error) {
	s := &Service{
		settings: settings,
		log:      logger.Noop(),
		now:      time.Now,
		sessions: gocache.New(time.Duration(navconfig.DefaultSessionTimeoutMinutes)*time.Minute, 10*time.Minute),
		verify:   gocache.New(VerifyTokenTTL, time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Cannot generate token secret", "")
		}
	}
	return s, nil
}

// Status is the session state returned to clients.
type Status struct {
	Authenticated         bool `json:"authenticated"`
	SecurityEnabled       bool `json:"securityEnabled"`
	SessionTimeoutMinutes int  `json:"sessionTimeoutMinutes"`
}

// SecurityEnabled reports whether admin routes need a session.
func (s *Service) SecurityEnabled(ctx context.Context) (bool, error) {
	sys, err := s.settings.System(ctx)
	if err != nil {
		return false, err
	}
	return sys.Security.Enabled, nil
}

// RequireVerify reports whether config changes need a verify token.
func (s *Service) RequireVerify(ctx context.Context) (bool, error) {
	sys, err := s.settings.System(ctx)
	if err != nil {
		return false, err
	}
	return sys.Security.RequireAuthForConfig, nil
}

// SessionTimeout is the configured session lifetime.
func (s *Service) SessionTimeout(ctx context.Context) time.Duration {
	minutes := navconfig.DefaultSessionTimeoutMinutes
	if sys, err := s.settings.System(ctx); err == nil && sys.Security.SessionTimeoutMinutes > 0 {
		minutes = sys.Security.SessionTimeoutMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// CheckPassword compares password with the configured bcrypt hash.
func (s *Service) CheckPassword(ctx context.Context, password string) (bool, error) {
	if strings.TrimSpace(password) == "" {
		return false, nil
	}
	sys, err := s.settings.System(ctx)
	if err != nil {
		return false, err
	}
	if sys.AdminPassword == "" {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(sys.AdminPassword), []byte(password))
	if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig, "Stored admin password is not a valid hash", "")
	}
	return true, nil
}

// Login checks password and opens a session. A wrong password is an ErrAuth error.
func (s *Service) Login(ctx context.Context, password string) (string, time.Duration, error) {
	ok, err := s.CheckPassword(ctx, password)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		s.log.Warn("admin login rejected")
		return "", 0, errors.New(errors.ErrAuth, "Invalid password", "")
	}
	ttl := s.SessionTimeout(ctx)
	token := uuid.NewString()
	s.sessions.Set(token, s.now().Add(ttl), ttl)
	s.log.Info("admin session opened (ttl %s)", ttl)
	return token, ttl, nil
}

// ValidSession reports whether token belongs to a live session. Every token
// is valid while security is disabled.
func (s *Service) ValidSession(ctx context.Context, token string) bool {
	if on, err := s.SecurityEnabled(ctx); err == nil && !on {
		return true
	}
	if token == "" {
		return false
	}
	v, ok := s.sessions.Get(token)
	if !ok {
		return false
	}
	if exp, _ := v.(time.Time); s.now().After(exp) {
		s.sessions.Delete(token)
		return false
	}
	return true
}

// Logout ends a session.
func (s *Service) Logout(token string) {
	if token != "" {
		s.sessions.Delete(token)
	}
}

// Status describes the session carried by token.
func (s *Service) Status(ctx context.Context, token string) (Status, error) {
	on, err := s.SecurityEnabled(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Authenticated:         !on || s.ValidSession(ctx, token),
		SecurityEnabled:       on,
		SessionTimeoutMinutes: int(s.SessionTimeout(ctx) / time.Minute),
	}, nil
}

// IssueVerifyToken checks password and returns a signed single-use token.
func (s *Service) IssueVerifyToken(ctx context.Context, password string) (string, error) {
	ok, err := s.CheckPassword(ctx, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.ErrAuth, "Invalid password", "")
	}
	now := s.now()
	claims := verifyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(VerifyTokenTTL)),
		},
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Cannot sign verify token", "")
	}
	s.verify.Set(claims.ID, now.Add(VerifyTokenTTL), VerifyTokenTTL)
	return signed, nil
}

// ConsumeVerifyToken reports whether token is a valid unused verify token
// and marks it used.
func (s *Service) ConsumeVerifyToken(token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	claims := &verifyClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.TokenType != tokenType || claims.ID == "" {
		s.log.Debug("verify token rejected: %v", err)
		return false
	}
	if _, ok := s.verify.Get(claims.ID); !ok {
		return false
	}
	s.verify.Delete(claims.ID)
	return true
}

// SessionCookieFor builds the cookie that stores token.
func SessionCookieFor(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl / time.Second),
	}
}

// ClearCookie expires the session cookie.
func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}

// TokenFrom returns the session token of r, or "".
func TokenFrom(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
