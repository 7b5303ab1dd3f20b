package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/basket/internal/shared"
)

// AuthLogin exchanges an email and password for an access token and stores it locally.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.StringArg("email"))
	password := cmd.String("password")
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}
	if password == "" {
		return fmt.Errorf("%w: --password or $BASKET_PASSWORD", shared.ErrMissingArgument)
	}

	if err := r.store(); err != nil {
		return err
	}

	r.logger.Info("signing in", "email", email)

	client := r.newClient("", nil, nil)
	token, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := r.prefs.SetAccessToken(token.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	me, err := client.Me(ctx)
	if err != nil {
		r.logger.Warn("signed in but could not load the account", "error", err)
		return r.writePlain("✓ Signed in as %s\n", email)
	}

	return r.writePlain("✓ Signed in as %s\n", me.DisplayName())
}

// AuthLogout forgets the stored token and the active list.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	if err := r.prefs.ClearAccessToken(); err != nil {
		return err
	}
	if err := r.prefs.ClearLastActiveList(); err != nil {
		return err
	}

	r.logger.Info("signed out")
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports what the stored token says about the user and whether the API accepts it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token, claims, err := r.token()
	if err != nil {
		if claims.ExpiresAt.IsZero() {
			return err
		}
		r.writePlain("✗ Token expired at %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
		return err
	}

	client := r.newClient(token, nil, nil)
	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	r.writePlain("✓ Signed in as %s <%s>\n", me.DisplayName(), me.Email)
	r.writePlain("User ID: %d\n", me.ID)
	if claims.ExpiresAt.IsZero() {
		r.writePlain("Expires: never\n")
	} else {
		r.writePlain("Expires: %s (in %s)\n", claims.ExpiresAt.Local().Format(time.RFC1123),
			time.Until(claims.ExpiresAt).Round(time.Minute))
	}

	if id, ok, err := r.prefs.LastActiveList(); err == nil && ok {
		r.writePlain("Active list: %d\n", id)
	}
	return nil
}
