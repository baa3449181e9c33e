// Package auth reads the Claude Code OAuth credential file.
//
// The token is read fresh from disk on every poll and is never cached,
// logged, or written anywhere else. Pinch itself performs no OAuth flow;
// Claude Code owns the credential lifecycle.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials means the credential file is missing, unreadable, or
// does not contain an access token.
var ErrNoCredentials = errors.New("no OAuth token found (is Claude Code installed?)")

// DefaultCredentialsPath is where Claude Code writes its OAuth credentials.
func DefaultCredentialsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude", ".credentials.json")
}

type credentialsFile struct {
	ClaudeAiOauth struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   int64  `json:"expiresAt"` // unix milliseconds, 0 if absent
	} `json:"claudeAiOauth"`
}

func readFile(path string) (credentialsFile, error) {
	var creds credentialsFile
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("%w: %s", ErrNoCredentials, filepath.Base(path))
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: malformed credentials file", ErrNoCredentials)
	}
	if creds.ClaudeAiOauth.AccessToken == "" {
		return creds, fmt.Errorf("%w: no accessToken field", ErrNoCredentials)
	}
	return creds, nil
}

// ReadAccessToken returns the current OAuth access token. The caller must
// not retain it beyond a single fetch.
func ReadAccessToken(path string) (string, error) {
	creds, err := readFile(path)
	if err != nil {
		return "", err
	}
	return creds.ClaudeAiOauth.AccessToken, nil
}

// Health classifies the credential file's token before a poll.
type Health int

const (
	HealthOK Health = iota
	HealthExpiring
	HealthExpired
	HealthMissing
)

func (h Health) String() string {
	switch h {
	case HealthExpiring:
		return "expiring"
	case HealthExpired:
		return "expired"
	case HealthMissing:
		return "missing"
	default:
		return "ok"
	}
}

// expiringWindow is how close to expiry a token may be before the poll
// loop logs a heads-up. Claude Code usually refreshes well inside this.
const expiringWindow = 10 * time.Minute

// TokenHealth inspects the credential file without retaining the token.
// It prefers the file's own expiresAt field and falls back to the JWT exp
// claim, parsed without signature verification (we only need the expiry,
// verification belongs to the API server).
func TokenHealth(path string, now time.Time) Health {
	creds, err := readFile(path)
	if err != nil {
		return HealthMissing
	}

	expiry := time.Time{}
	if ms := creds.ClaudeAiOauth.ExpiresAt; ms > 0 {
		expiry = time.UnixMilli(ms)
	} else if exp, ok := tokenExpiry(creds.ClaudeAiOauth.AccessToken); ok {
		expiry = exp
	}

	switch {
	case expiry.IsZero():
		return HealthOK // no expiry info, assume fine and let the API decide
	case !expiry.After(now):
		return HealthExpired
	case expiry.Sub(now) < expiringWindow:
		return HealthExpiring
	default:
		return HealthOK
	}
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
