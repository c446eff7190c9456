package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Friends(ctx context.Context) error
	Add(ctx context.Context, args []string) error
	Requests(ctx context.Context) error
	Accept(ctx context.Context, args []string) error
	Reject(ctx context.Context, args []string) error
	Chat(ctx context.Context, args []string) error
	Profile(ctx context.Context) error
}

// runREPL starts the peerlink read-eval-print loop.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// The prompt shows the current status (from statusFn): the logged-in
// username and whether the session runs against the remote or the local
// store.
//
//	Not logged in:
//	  - help               — show available commands
//	  - register           — create an account
//	  - login              — authenticate
//	  - exit | quit        — leave the program
//
//	Logged in:
//	  - help               — show available commands
//	  - friends            — list friends with presence
//	  - add <username>     — send a friend request
//	  - requests           — list incoming pending requests
//	  - accept <n>         — accept request number n from the last listing
//	  - reject <n>         — reject request number n from the last listing
//	  - chat <username>    — open a conversation (type /back to leave)
//	  - profile            — edit bio and avatar
//	  - logout             — log out
//	  - exit | quit        — leave the program
//
// Any errors returned by command handlers are ignored here; handlers print
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("pl> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: friends, add <username>, requests, accept <n>, reject <n>, chat <username>, profile, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "f", "friends":
			_ = a.Friends(ctx)

		case "add":
			_ = a.Add(ctx, args)

		case "r", "requests":
			_ = a.Requests(ctx)

		case "accept":
			_ = a.Accept(ctx, args)

		case "reject":
			_ = a.Reject(ctx, args)

		case "c", "chat":
			_ = a.Chat(ctx, args)

		case "profile":
			_ = a.Profile(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
