package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/models"
)

// staleAfter is how old a lastSeen may be before an "online" user is shown
// as away; a crashed client never marks itself offline.
const staleAfter = 45 * time.Second

// Friends prints the friend list with presence and unread counts.
func (a *App) Friends(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	friends, err := a.facade.Friends(ctx, a.user.ID)
	if err != nil {
		fmt.Fprintf(a.out, "Failed to list friends: %s\n", err)
		return err
	}
	if len(friends) == 0 {
		fmt.Fprintln(a.out, "No friends yet. Use: add <username>")
		return nil
	}

	unread, err := a.facade.UnreadCounts(ctx, a.user.ID)
	if err != nil {
		fmt.Fprintf(a.out, "Failed to count unread messages: %s\n", err)
		return err
	}

	for _, f := range friends {
		line := fmt.Sprintf("  %-20s %s", f.Username, renderPresence(f, time.Now()))
		if n := unread[f.ID]; n > 0 {
			line += fmt.Sprintf("  (%d unread)", n)
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

func renderPresence(u *models.User, now time.Time) string {
	if u.Status != models.StatusOnline {
		return "offline"
	}
	if now.Sub(u.LastSeen) > staleAfter {
		return fmt.Sprintf("away (last seen %s)", u.LastSeen.Local().Format("15:04"))
	}
	return "online"
}

// Add sends a friend request to the named user.
func (a *App) Add(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: add <username>")
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
	if peer.ID == a.user.ID {
		fmt.Fprintln(a.out, "That's you.")
		return nil
	}

	if _, err := a.facade.SendFriendRequest(ctx, a.user.ID, peer.ID); err != nil {
		if errors.Is(err, common.ErrorRequestResolved) {
			fmt.Fprintf(a.out, "You are already friends with %s.\n", peer.Username)
			return nil
		}
		fmt.Fprintf(a.out, "Failed to send request: %s\n", err)
		return err
	}
	fmt.Fprintf(a.out, "Friend request sent to %s.\n", peer.Username)
	return nil
}

// Requests prints incoming pending requests, numbered for accept/reject.
func (a *App) Requests(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	reqs, err := a.facade.PendingRequests(ctx, a.user.ID)
	if err != nil {
		fmt.Fprintf(a.out, "Failed to list requests: %s\n", err)
		return err
	}
	a.lastRequests = reqs

	if len(reqs) == 0 {
		fmt.Fprintln(a.out, "No pending requests.")
		return nil
	}
	for i, r := range reqs {
		from := r.FromID
		if u, err := a.facade.GetUser(ctx, r.FromID); err == nil {
			from = u.Username
		}
		fmt.Fprintf(a.out, "  [%d] from %s (%s)\n", i+1, from, r.Timestamp.Local().Format("Jan 2 15:04"))
	}
	fmt.Fprintln(a.out, "Use: accept <n> or reject <n>")
	return nil
}

// Accept resolves a numbered request from the last listing positively.
func (a *App) Accept(ctx context.Context, args []string) error {
	return a.resolve(ctx, args, true)
}

// Reject resolves a numbered request from the last listing negatively.
func (a *App) Reject(ctx context.Context, args []string) error {
	return a.resolve(ctx, args, false)
}

func (a *App) resolve(ctx context.Context, args []string, accept bool) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: accept|reject <n>  (run 'requests' first)")
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(a.lastRequests) {
		fmt.Fprintln(a.out, "No such request number. Run 'requests' first.")
		return nil
	}

	req := a.lastRequests[n-1]
	if err := a.facade.ResolveFriendRequest(ctx, req.ID, accept); err != nil {
		if errors.Is(err, common.ErrorRequestResolved) {
			fmt.Fprintln(a.out, "That request was already resolved.")
			return nil
		}
		fmt.Fprintf(a.out, "Failed to resolve request: %s\n", err)
		return err
	}
	if accept {
		fmt.Fprintln(a.out, "Accepted.")
	} else {
		fmt.Fprintln(a.out, "Rejected.")
	}
	return nil
}
