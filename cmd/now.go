package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"spoton/internal/formatter"
	"spoton/internal/session"
	"spoton/internal/shared"
)

// Now prints the user's current playback.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	spotify, err := r.ensureSpotify()
	if err != nil {
		return err
	}

	mgr, err := r.ensureSession()
	if err != nil {
		return err
	}

	snap, err := mgr.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve session: %w", err)
	}

	switch snap.State {
	case session.Valid:
		// fall through to the playback fetch
	case session.Invalid:
		return fmt.Errorf("%w: session expired, run 'spoton auth login'", shared.ErrNotAuthenticated)
	default:
		return fmt.Errorf("%w: not logged in, run 'spoton auth login'", shared.ErrNotAuthenticated)
	}

	np, err := spotify.NowPlaying(ctx, snap.Credential.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if useJSON {
		return r.writeJSON(np, pretty)
	}

	r.writePlain("%s", formatter.NowPlayingToText(np))
	return nil
}
