package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antonlindstrom/pgstore"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"github.com/nikhilsahni7/FormX/config"
	"github.com/nikhilsahni7/FormX/forms"
)

const sessionName = "formx-session"

type ctxKey int

const userIDKey ctxKey = 1

// NewSessionStore returns the cookie session store for cfg: postgres backed
// in production, signed cookies otherwise.
func NewSessionStore(cfg config.Config) (sessions.Store, error) {
	if cfg.DatabaseDriver == "postgres" {
		store, err := pgstore.NewPGStore(cfg.DatabaseURL, []byte(cfg.SessionKey))
		if err != nil {
			return nil, fmt.Errorf("initialize session store: %w", err)
		}
		return store, nil
	}
	return sessions.NewCookieStore([]byte(cfg.SessionKey)), nil
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator resolves the signed-in user from either a bearer token or
// the cookie session.
type Authenticator struct {
	Sessions sessions.Store
	Secret   []byte
	TTL      time.Duration
}

func NewAuthenticator(store sessions.Store, cfg config.Config) *Authenticator {
	return &Authenticator{Sessions: store, Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL}
}

func (a *Authenticator) IssueToken(userID uint, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

func (a *Authenticator) ParseToken(tok string) (uint, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		return 0, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", err)
	}
	return uint(id), nil
}

// Login marks the cookie session as belonging to userID.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request, userID uint) error {
	session, err := a.Sessions.New(r, sessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values["authenticated"] = true
	session.Values["user_id"] = userID
	return session.Save(r, w)
}

func (a *Authenticator) Logout(w http.ResponseWriter, r *http.Request) error {
	session, err := a.Sessions.Get(r, sessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// resolve returns the user behind r. A bearer header that fails to parse
// is an error even when a cookie session exists.
func (a *Authenticator) resolve(r *http.Request) (uint, bool, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		id, err := a.ParseToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	session, err := a.Sessions.Get(r, sessionName)
	if err != nil {
		// a stale or tampered cookie counts as signed out
		return 0, false, nil
	}
	if ok, _ := session.Values["authenticated"].(bool); !ok {
		return 0, false, nil
	}
	id, ok := session.Values["user_id"].(uint)
	return id, ok, nil
}

// Middleware rejects requests without a signed-in user.
func (a *Authenticator) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok, err := a.resolve(r)
		if err != nil || !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	}
}

// Optional attaches the signed-in user when there is one and lets every
// request through.
func (a *Authenticator) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id, ok, err := a.resolve(r); err == nil && ok {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	}
}

func WithUserID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func UserID(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDKey).(uint)
	return id, ok
}

// SubmitterFromRequest is the identity recorded on submissions made
// through r.
func SubmitterFromRequest(r *http.Request) forms.Submitter {
	if id, ok := UserID(r.Context()); ok {
		return forms.Authenticated(strconv.FormatUint(uint64(id), 10))
	}
	return forms.Anonymous()
}
