package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/peerlink/internal/common"
)

// Register interactively creates an account and logs the user in.
func (a *App) Register(ctx context.Context) error {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Already logged in. Log out first.")
		return nil
	}

	username, err := GetSimpleText(a.reader, "Choose a username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.auth.Register(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrorUsernameTaken) {
			fmt.Fprintln(a.out, "That username is taken.")
			return nil
		}
		fmt.Fprintf(a.out, "Registration failed: %s\n", err)
		return err
	}

	a.setUser(ctx, u)
	fmt.Fprintf(a.out, "Welcome, %s!\n", u.Username)
	return nil
}

// Login interactively authenticates an existing user.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Already logged in. Log out first.")
		return nil
	}

	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.auth.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			fmt.Fprintln(a.out, "Invalid username or password.")
			return nil
		}
		fmt.Fprintf(a.out, "Login failed: %s\n", err)
		return err
	}

	a.setUser(ctx, u)
	fmt.Fprintf(a.out, "Welcome back, %s!\n", u.Username)
	return nil
}

// Logout stops presence, forgets the remembered session and drops back to
// the anonymous prompt.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return nil
	}
	a.logoutPresence()
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Fprintf(a.out, "Logout failed: %s\n", err)
		return err
	}
	a.user = nil
	a.lastRequests = nil
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// Profile interactively edits the bio and avatar of the logged-in user.
func (a *App) Profile(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	bio, err := GetMultiline(a.reader, "Bio", a.out)
	if err != nil {
		return err
	}
	avatar, err := GetSimpleText(a.reader, "Avatar URL (empty for none)", a.out)
	if err != nil {
		return err
	}

	err = a.facade.UpdateUser(ctx, a.user.ID, map[string]any{
		"bio":    bio,
		"avatar": avatar,
	})
	if err != nil {
		fmt.Fprintf(a.out, "Failed to update profile: %s\n", err)
		return err
	}
	a.user.Bio = bio
	a.user.Avatar = avatar
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}
