package gmail

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/poiesic/mailqa/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenStore loads and saves the user's OAuth token.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(*oauth2.Token) error
}

// OAuthConfig parses a Google client secrets file for read-only mail access.
func OAuthConfig(credentialsJSON []byte) (*oauth2.Config, error) {
	cfg, err := google.ConfigFromJSON(credentialsJSON, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client credentials: %w", err)
	}
	return cfg, nil
}

// OAuthConfigFromFile reads and parses a client secrets file.
func OAuthConfigFromFile(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client credentials: %w", err)
	}
	return OAuthConfig(b)
}

// AuthCodeURL returns the consent URL the user visits to authorize access.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and saves it.
func Exchange(ctx context.Context, cfg *oauth2.Config, code string, store TokenStore) error {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: exchanging code: %w", core.ErrNotAuthenticated, err)
	}
	return store.Save(tok)
}

// NewAuthenticatedSession builds a Session from a stored token. Refreshed
// tokens are written back to store.
func NewAuthenticatedSession(ctx context.Context, cfg *oauth2.Config, store TokenStore) (*Session, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: no stored token: %w", core.ErrNotAuthenticated, err)
	}

	ts := &savingTokenSource{
		base:  cfg.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
	}
	return NewSession(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(tok, ts)))
}

// savingTokenSource persists a token whenever the access token changes.
type savingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(tok); err != nil {
			return nil, fmt.Errorf("saving refreshed token: %w", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// FileTokenStore keeps a token as JSON in a file.
type FileTokenStore struct {
	Path string
}

// Load reads the token file.
func (f FileTokenStore) Load() (*oauth2.Token, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", f.Path, err)
	}
	return &tok, nil
}

// Save writes the token file with owner-only permissions.
func (f FileTokenStore) Save(tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return os.WriteFile(f.Path, b, 0600)
}
