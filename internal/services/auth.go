// Package services contains the application services sitting between the
// CLI and the sync layer: authentication against the shared user directory
// with an offline-capable credential cache, and presence heartbeating.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/cryptox"
	"github.com/dmitrijs2005/peerlink/internal/datasync"
	"github.com/dmitrijs2005/peerlink/internal/logging"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/vault"
)

// RemoteSession is the slice of the remote store adapter the auth service
// needs: opening a store session and resuming one from a cached token.
type RemoteSession interface {
	Signin(ctx context.Context) (string, error)
	Authenticate(ctx context.Context, token string) error
}

// userIDKey is the vault metadata key caching a user's directory id, so an
// account can be reconstructed locally when the directory is unreachable.
func userIDKey(username string) string {
	return "user_id:" + username
}

// AuthService handles registration, login and session resumption. All paths
// work without the remote store: the user directory lives behind the sync
// facade, and credentials are cached in the vault for offline verification.
type AuthService struct {
	facade *datasync.Facade
	vault  *vault.Vault
	// remote is nil in a local-only session. Session-token handling is best
	// effort: a failure here never fails a login, it only means the next
	// start cannot skip the password prompt.
	remote      RemoteSession
	tokenUsable func(token string) bool
	log         logging.Logger
}

// NewAuthService wires the auth service. remote and tokenUsable may be nil.
func NewAuthService(f *datasync.Facade, v *vault.Vault, remote RemoteSession, tokenUsable func(string) bool, logger logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Nop()
	}
	if tokenUsable == nil {
		tokenUsable = func(string) bool { return false }
	}
	return &AuthService{
		facade:      f,
		vault:       v,
		remote:      remote,
		tokenUsable: tokenUsable,
		log:         logger.With("component", "auth"),
	}
}

// Register creates a new account. Usernames are unique case-insensitively;
// a taken name returns common.ErrorUsernameTaken. On success the user is
// logged in and remembered as this device's session.
func (a *AuthService) Register(ctx context.Context, username string, password []byte) (*models.User, error) {
	norm := models.NormalizeUsername(username)
	if norm == "" {
		return nil, fmt.Errorf("username must not be empty: %w", common.ErrorUnauthorized)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password must not be empty: %w", common.ErrorUnauthorized)
	}

	_, err := a.facade.GetUserByUsername(ctx, norm)
	if err == nil {
		return nil, common.ErrorUsernameTaken
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	u := &models.User{
		ID:           models.NewID(),
		Username:     norm,
		PasswordHash: cryptox.HashPassword(password),
		Status:       models.StatusOffline,
		LastSeen:     now,
	}
	if err := a.facade.SaveUser(ctx, u); err != nil {
		return nil, err
	}

	if err := a.rememberSession(ctx, u, now); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the password and remembers the session. Verification runs
// against the directory record when one is reachable, and falls back to the
// vault's cached credential otherwise, so a user who has logged in on this
// device before can get back in with an empty local directory.
func (a *AuthService) Login(ctx context.Context, username string, password []byte) (*models.User, error) {
	norm := models.NormalizeUsername(username)

	u, err := a.facade.GetUserByUsername(ctx, norm)
	switch {
	case err == nil:
		if err := cryptox.VerifyPassword(u.PasswordHash, password); err != nil {
			return nil, common.ErrorUnauthorized
		}
	case errors.Is(err, common.ErrorNotFound):
		u, err = a.offlineLogin(ctx, norm, password)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := a.rememberSession(ctx, u, time.Now().UTC()); err != nil {
		return nil, err
	}
	return u, nil
}

// offlineLogin reconstructs the account from the vault when the directory
// has no record of it. The cached directory id keeps the identity stable
// across the reconstruction.
func (a *AuthService) offlineLogin(ctx context.Context, norm string, password []byte) (*models.User, error) {
	cred, err := a.vault.Credential(ctx, norm)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if err := cryptox.VerifyPassword(cred.PasswordHash, password); err != nil {
		return nil, common.ErrorUnauthorized
	}

	id := models.NewID()
	if cached, err := a.vault.Meta(ctx, userIDKey(norm)); err == nil && len(cached) > 0 {
		id = string(cached)
	}
	u := &models.User{
		ID:           id,
		Username:     norm,
		PasswordHash: cred.PasswordHash,
		Status:       models.StatusOffline,
		LastSeen:     time.Now().UTC(),
	}
	if err := a.facade.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	a.log.Info(ctx, "reconstructed account from cached credential", "username", norm)
	return u, nil
}

// ResumeSession restores the last session without a password prompt.
// common.ErrorNotFound means no session is remembered;
// common.ErrorStaleCredential means the account's password changed since
// the session was saved and the user must log in again.
func (a *AuthService) ResumeSession(ctx context.Context) (*models.User, error) {
	username, token, err := a.vault.LastSession(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := a.vault.Credential(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		return nil, err
	}

	u, err := a.facade.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if u.PasswordHash != cred.PasswordHash {
			return nil, common.ErrorStaleCredential
		}
	case errors.Is(err, common.ErrorNotFound):
		u = &models.User{
			ID:           a.cachedUserID(ctx, username),
			Username:     username,
			PasswordHash: cred.PasswordHash,
			Status:       models.StatusOffline,
			LastSeen:     time.Now().UTC(),
		}
		if err := a.facade.SaveUser(ctx, u); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	a.resumeRemote(ctx, token)

	if err := a.vault.TouchLogin(ctx, username, time.Now().UTC()); err != nil {
		a.log.Warn(ctx, "failed to record login time", "error", err)
	}
	return u, nil
}

// Logout forgets the remembered session. Cached credentials survive so the
// user can still log in offline later.
func (a *AuthService) Logout(ctx context.Context) error {
	return a.vault.ClearSession(ctx)
}

func (a *AuthService) cachedUserID(ctx context.Context, username string) string {
	if cached, err := a.vault.Meta(ctx, userIDKey(username)); err == nil && len(cached) > 0 {
		return string(cached)
	}
	return models.NewID()
}

// rememberSession caches the credential and session so the next start can
// resume, and opens a remote store session when one is available.
func (a *AuthService) rememberSession(ctx context.Context, u *models.User, now time.Time) error {
	if err := a.vault.SaveCredential(ctx, u.Username, u.PasswordHash, now); err != nil {
		return err
	}
	if err := a.vault.SetMeta(ctx, userIDKey(u.Username), []byte(u.ID)); err != nil {
		return err
	}

	token := ""
	if a.remote != nil {
		t, err := a.remote.Signin(ctx)
		if err != nil {
			a.log.Warn(ctx, "remote signin failed, continuing without a session token", "error", err)
		} else {
			token = t
		}
	}
	return a.vault.SaveSession(ctx, u.Username, token)
}

// resumeRemote presents a cached token to the remote store when both are
// usable. Failures are tolerated: the facade will demote on the first
// failing operation anyway.
func (a *AuthService) resumeRemote(ctx context.Context, token string) {
	if a.remote == nil || !a.tokenUsable(token) {
		return
	}
	if err := a.remote.Authenticate(ctx, token); err != nil {
		a.log.Warn(ctx, "cached session token rejected", "error", err)
	}
}
