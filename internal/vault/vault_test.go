package vault

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/peerlink/internal/bus"
	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/store/localstore"

	_ "modernc.org/sqlite"
)

var dsnSeq int

// setupVault opens a migrated local store and hangs the vault off its
// database handle, matching how the client wires the two.
func setupVault(t *testing.T) *Vault {
	t.Helper()
	dsnSeq++
	dsn := fmt.Sprintf("file:vault%d?mode=memory&cache=shared", dsnSeq)

	b := bus.New()
	t.Cleanup(b.Close)

	s, err := localstore.Open(context.Background(), dsn, b, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return New(s.DB())
}

func TestVault_CredentialRoundTrip(t *testing.T) {
	v := setupVault(t)
	ctx := context.Background()

	_, err := v.Credential(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, v.SaveCredential(ctx, "alice", "hash1", at))

	cred, err := v.Credential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, "hash1", cred.PasswordHash)
	assert.True(t, cred.LastLogin.Equal(at))

	// saving again replaces, it does not duplicate
	require.NoError(t, v.SaveCredential(ctx, "alice", "hash2", at.Add(time.Hour)))
	cred, err = v.Credential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash2", cred.PasswordHash)
}

func TestVault_TouchLogin(t *testing.T) {
	v := setupVault(t)
	ctx := context.Background()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, v.SaveCredential(ctx, "alice", "hash", at))
	require.NoError(t, v.TouchLogin(ctx, "alice", at.Add(time.Hour)))

	cred, err := v.Credential(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, cred.LastLogin.Equal(at.Add(time.Hour)))
}

func TestVault_Meta(t *testing.T) {
	v := setupVault(t)
	ctx := context.Background()

	_, err := v.Meta(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, v.SetMeta(ctx, "k", []byte("v1")))
	got, err := v.Meta(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, v.SetMeta(ctx, "k", []byte("v2")))
	got, err = v.Meta(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, v.DeleteMeta(ctx, "k"))
	require.NoError(t, v.DeleteMeta(ctx, "k"), "deleting an absent key is fine")
	_, err = v.Meta(ctx, "k")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestVault_SessionRoundTrip(t *testing.T) {
	v := setupVault(t)
	ctx := context.Background()

	_, _, err := v.LastSession(ctx)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, v.SaveSession(ctx, "alice", "tok123"))
	name, token, err := v.LastSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.Equal(t, "tok123", token)

	// token may be absent while the username survives
	require.NoError(t, v.SaveSession(ctx, "alice", ""))
	name, token, err = v.LastSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.Empty(t, token)

	require.NoError(t, v.ClearSession(ctx))
	_, _, err = v.LastSession(ctx)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
