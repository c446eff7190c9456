// Package vault is the local credential cache. It lets a user register and
// log in while the remote store is unreachable, and it remembers the last
// session so the client can resume without retyping credentials.
//
// The vault shares the local store's SQLite database but owns its own
// tables; nothing in it is a domain entity and nothing in it is ever
// synchronized.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/dbx"
	"github.com/dmitrijs2005/peerlink/internal/models"
)

const (
	metaLastUsername = "last_username"
	metaSessionToken = "session_token"
)

// Vault stores cached credentials and session metadata.
type Vault struct {
	db *sql.DB
}

// New wraps an already-migrated database handle. The vault does not own the
// handle; closing it is the caller's job.
func New(db *sql.DB) *Vault {
	return &Vault{db: db}
}

// SaveCredential upserts the cached password hash for a username.
func (v *Vault) SaveCredential(ctx context.Context, username, passwordHash string, lastLogin time.Time) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO vault_credentials (username, password_hash, last_login) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, last_login = excluded.last_login
	`, username, passwordHash, lastLogin.UTC())
	if err != nil {
		return fmt.Errorf("failed to save credential for %s: %w", username, err)
	}
	return nil
}

// Credential returns the cached credential for a username, or
// common.ErrorNotFound if the user never logged in on this device.
func (v *Vault) Credential(ctx context.Context, username string) (*models.VaultCredential, error) {
	cred := &models.VaultCredential{Username: username}
	var lastLogin sql.NullTime
	err := v.db.QueryRowContext(ctx,
		`SELECT password_hash, last_login FROM vault_credentials WHERE username = ?`,
		username).Scan(&cred.PasswordHash, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential for %s: %w", username, err)
	}
	if lastLogin.Valid {
		cred.LastLogin = lastLogin.Time
	}
	return cred, nil
}

// TouchLogin records a successful login time for an existing credential.
func (v *Vault) TouchLogin(ctx context.Context, username string, at time.Time) error {
	_, err := v.db.ExecContext(ctx,
		`UPDATE vault_credentials SET last_login = ? WHERE username = ?`,
		at.UTC(), username)
	if err != nil {
		return fmt.Errorf("failed to touch login for %s: %w", username, err)
	}
	return nil
}

// SetMeta upserts one metadata value.
func (v *Vault) SetMeta(ctx context.Context, key string, value []byte) error {
	return v.setMeta(ctx, v.db, key, value)
}

func (v *Vault) setMeta(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Meta returns one metadata value, or common.ErrorNotFound.
func (v *Vault) Meta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := v.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

// DeleteMeta removes one metadata value. Deleting an absent key is not an
// error.
func (v *Vault) DeleteMeta(ctx context.Context, key string) error {
	_, err := v.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

// SaveSession records the last logged-in username and, optionally, a remote
// session token, atomically. An empty token clears any cached one.
func (v *Vault) SaveSession(ctx context.Context, username, token string) error {
	return dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := v.setMeta(ctx, tx, metaLastUsername, []byte(username)); err != nil {
			return err
		}
		return v.setMeta(ctx, tx, metaSessionToken, []byte(token))
	})
}

// LastSession returns the username and token of the most recent session.
// common.ErrorNotFound means no session was ever saved on this device.
func (v *Vault) LastSession(ctx context.Context) (username, token string, err error) {
	name, err := v.Meta(ctx, metaLastUsername)
	if err != nil {
		return "", "", err
	}
	tok, err := v.Meta(ctx, metaSessionToken)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", "", err
	}
	return string(name), string(tok), nil
}

// ClearSession forgets the remembered session, e.g. on logout.
func (v *Vault) ClearSession(ctx context.Context) error {
	return dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range []string{metaLastUsername, metaSessionToken} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
			}
		}
		return nil
	})
}
