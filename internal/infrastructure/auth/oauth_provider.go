package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"mailfootprint/internal/domain/email"
)

// LoadOAuthConfig reads the client secrets downloaded from Google Cloud.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", credentialsFile, err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", credentialsFile, err)
	}
	return config, nil
}

// OAuthProvider hands out access tokens for the Gmail API. It keeps nothing
// in memory: each call loads the stored token and refreshes it if needed.
type OAuthProvider struct {
	config *oauth2.Config
	store  TokenStore
	in     io.Reader
	out    io.Writer
	logger zerolog.Logger

	mu sync.Mutex
}

func NewOAuthProvider(config *oauth2.Config, store TokenStore, in io.Reader, out io.Writer, logger zerolog.Logger) *OAuthProvider {
	return &OAuthProvider{
		config: config,
		store:  store,
		in:     in,
		out:    out,
		logger: logger,
	}
}

// Acquire returns a valid bearer credential. Without a stored token it
// runs the consent flow when interactive, and fails otherwise.
func (p *OAuthProvider) Acquire(ctx context.Context, interactive bool) (email.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.store.Load()
	switch {
	case errors.Is(err, ErrTokenNotFound):
		if !interactive {
			return email.Credential{}, fmt.Errorf("%w: no stored token, run login first", email.ErrAuthUnavailable)
		}
		p.logger.Info().Msg("no stored token, starting OAuth flow")
		if tok, err = p.consent(ctx); err != nil {
			return email.Credential{}, err
		}
	case err != nil:
		return email.Credential{}, fmt.Errorf("%w: %v", email.ErrAuthUnavailable, err)
	}

	fresh, err := p.config.TokenSource(ctx, tok).Token()
	if err != nil {
		return email.Credential{}, fmt.Errorf("%w: refresh token: %v", email.ErrAuthUnavailable, err)
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := p.store.Save(fresh); err != nil {
			p.logger.Warn().Err(err).Msg("cannot save refreshed token")
		}
	}

	return email.Credential{Value: fresh.AccessToken}, nil
}

// Login always runs the consent flow and replaces the stored token.
func (p *OAuthProvider) Login(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.consent(ctx)
	return err
}

func (p *OAuthProvider) consent(ctx context.Context) (*oauth2.Token, error) {
	authURL := p.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintln(p.out, "1) Copy this URL and open it in your browser:")
	fmt.Fprintln(p.out, authURL)
	fmt.Fprintln(p.out, "\n2) Sign in and accept the permissions.")
	fmt.Fprint(p.out, "3) Paste the authorization code here: ")

	var code string
	if _, err := fmt.Fscan(p.in, &code); err != nil || strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: consent cancelled", email.ErrAuthUnavailable)
	}

	tok, err := p.config.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", email.ErrAuthUnavailable, err)
	}
	if err := p.store.Save(tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	p.logger.Info().Msg("token saved")
	return tok, nil
}
