// Package cli is the interactive peerlink client: a REPL over the sync
// facade offering registration, login, friend management and one-on-one
// chat. It assembles the whole stack: local store, optional remote store,
// failover controller, facade, vault and services.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/peerlink/internal/bus"
	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/config"
	"github.com/dmitrijs2005/peerlink/internal/datasync"
	"github.com/dmitrijs2005/peerlink/internal/filex"
	"github.com/dmitrijs2005/peerlink/internal/logging"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/services"
	"github.com/dmitrijs2005/peerlink/internal/store/localstore"
	"github.com/dmitrijs2005/peerlink/internal/store/remotestore"
	"github.com/dmitrijs2005/peerlink/internal/vault"

	_ "modernc.org/sqlite"
)

type App struct {
	config   *config.Config
	log      logging.Logger
	facade   *datasync.Facade
	auth     *services.AuthService
	presence *services.PresenceService

	user   *models.User
	reader *bufio.Reader
	out    io.Writer

	// requests as last shown, so accept/reject can refer to them by number
	lastRequests []*models.FriendRequest

	cleanup []func()
}

// NewApp wires the full client stack from configuration. When the remote
// endpoint is absent or unreachable the session starts against the local
// store; a remote session that dies later is demoted by the facade.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	a := &App{
		config: cfg,
		log:    logger.With("component", "cli"),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	b := bus.New()
	a.cleanup = append(a.cleanup, b.Close)

	dsn, err := resolveDSN(cfg.LocalDSN)
	if err != nil {
		return nil, err
	}
	local, err := localstore.Open(ctx, dsn, b, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { _ = local.Close() })

	mode := datasync.ModeLocal
	fo := datasync.NewFailover(datasync.ModeRemote, logger)

	var remoteBackend *remotestore.Store
	if cfg.RemoteConfigured() {
		remoteBackend, err = remotestore.Connect(ctx, remotestore.Options{
			Endpoint:  cfg.RemoteEndpointURL,
			Namespace: cfg.RemoteNamespace,
			Database:  cfg.RemoteDatabase,
			OnFailure: func(reason error) { fo.Demote(reason) },
			Logger:    logger,
		})
		if err != nil {
			a.log.Warn(ctx, "remote store unreachable, starting in local mode", "error", err)
		} else {
			mode = datasync.ModeRemote
			a.cleanup = append(a.cleanup, func() { _ = remoteBackend.Close() })
		}
	}
	if mode == datasync.ModeLocal {
		fo = datasync.NewFailover(datasync.ModeLocal, logger)
	}

	// a typed nil must not reach the interface-valued parameters
	var session services.RemoteSession
	tokenUsable := func(string) bool { return false }
	if remoteBackend != nil {
		session = remoteBackend
		tokenUsable = remotestore.TokenUsable
		a.facade = datasync.NewFacade(remoteBackend, local, fo, logger)
	} else {
		a.facade = datasync.NewFacade(nil, local, fo, logger)
	}

	v := vault.New(local.DB())
	a.auth = services.NewAuthService(a.facade, v, session, tokenUsable, logger)
	a.presence = services.NewPresenceService(a.facade, cfg.HeartbeatInterval, logger)

	return a, nil
}

// Run resumes the previous session if possible and enters the REPL.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	if u, err := a.auth.ResumeSession(ctx); err == nil {
		a.setUser(ctx, u)
		fmt.Fprintf(a.out, "Welcome back, %s!\n", u.Username)
	} else if errors.Is(err, common.ErrorStaleCredential) {
		fmt.Fprintln(a.out, "Your password changed on another device. Please log in again.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	a.logoutPresence()
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) setUser(ctx context.Context, u *models.User) {
	a.user = u
	a.presence.Start(ctx, u.ID)
}

func (a *App) logoutPresence() {
	if a.user != nil {
		a.presence.Stop(a.user.ID)
	}
}

// resolveDSN places a plain database filename under a ./data directory.
// DSNs carrying a path or sqlite options are used as given.
func resolveDSN(dsn string) (string, error) {
	if strings.ContainsAny(dsn, "/?:") {
		return dsn, nil
	}
	dir, err := filex.EnsureSubdDir("data")
	if err != nil {
		return "", fmt.Errorf("failed to prepare data directory: %w", err)
	}
	return filepath.Join(dir, dsn), nil
}

// status renders the REPL prompt segment: who is logged in and which store
// variant is serving the session.
func (a *App) status() string {
	who := "not logged in"
	if a.user != nil {
		who = a.user.Username
	}
	return fmt.Sprintf("%s [%s]", who, a.facade.Mode())
}
