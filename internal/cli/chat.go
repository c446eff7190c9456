package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/models"
)

// Chat opens a conversation with a friend. Messages render as they arrive,
// in timestamp order; incoming ones are marked read by the open view. The
// peer sees a typing indicator while the conversation is open. Type /back
// on its own line to leave.
func (a *App) Chat(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: chat <username>")
		return nil
	}

	peer, err := a.facade.GetUserByUsername(ctx, args[0])
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			fmt.Fprintf(a.out, "No such user: %s\n", args[0])
			return nil
		}
		fmt.Fprintf(a.out, "Lookup failed: %s\n", err)
		return err
	}

	view := &chatView{out: a.out, selfID: a.user.ID, peerName: peer.Username}

	cancelMsgs, err := a.facade.SubscribeConversation(ctx, a.user.ID, peer.ID, view.onMessages)
	if err != nil {
		fmt.Fprintf(a.out, "Failed to open conversation: %s\n", err)
		return err
	}
	defer cancelMsgs()

	cancelPeer, err := a.facade.SubscribeUser(ctx, peer.ID, view.onPeer)
	if err != nil {
		fmt.Fprintf(a.out, "Failed to watch peer: %s\n", err)
		return err
	}
	defer cancelPeer()

	if err := a.presence.SetTyping(ctx, a.user.ID, peer.ID); err != nil {
		a.log.Warn(ctx, "failed to set typing indicator", "error", err)
	}
	defer func() {
		if err := a.presence.SetTyping(ctx, a.user.ID, ""); err != nil {
			a.log.Warn(ctx, "failed to clear typing indicator", "error", err)
		}
	}()

	fmt.Fprintf(a.out, "--- chat with %s (type /back to leave) ---\n", peer.Username)
	for {
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "/back" {
			return nil
		}
		if line == "" {
			continue
		}
		if _, err := a.facade.SendMessage(ctx, a.user.ID, peer.ID, line); err != nil {
			fmt.Fprintf(a.out, "Failed to send: %s\n", err)
		}
	}
}

// chatView renders conversation deliveries. Each delivery is the full
// ordered history; only not-yet-printed messages are echoed, so the effect
// is an append-only transcript even when an old message arrives late (it is
// printed when it first appears, with its original timestamp).
type chatView struct {
	out      io.Writer
	selfID   string
	peerName string

	mu     sync.Mutex
	seen   map[string]struct{}
	typing bool
}

func (v *chatView) onMessages(msgs []*models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen == nil {
		v.seen = make(map[string]struct{})
	}
	for _, m := range msgs {
		if _, ok := v.seen[m.ID]; ok {
			continue
		}
		v.seen[m.ID] = struct{}{}
		who := v.peerName
		if m.SenderID == v.selfID {
			who = "you"
		}
		fmt.Fprintf(v.out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), who, m.Content)
	}
}

func (v *chatView) onPeer(u *models.User) {
	if u == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	nowTyping := u.TypingTo == v.selfID
	if nowTyping && !v.typing {
		fmt.Fprintf(v.out, "%s is typing...\n", v.peerName)
	}
	v.typing = nowTyping
}
