package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"spoton/internal/formatter"
	"spoton/internal/server"
	"spoton/internal/session"
	"spoton/internal/shared"
)

// AuthLogin performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// leaves the exchanged credential in the database.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	mgr, err := r.ensureSession()
	if err != nil {
		return err
	}

	if err := r.runLoginFlow(ctx, mgr); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: spoton now\n")

	return nil
}

// AuthStatus resolves and prints the current session state.
//
// When auto_reauthorize is enabled and the credential is no longer accepted,
// a fresh login flow is started immediately.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if err := r.loadConfig(cmd); err != nil {
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

	if snap.State == session.Invalid && r.config.Settings.AutoReauthorize {
		r.logger.Info("credential no longer accepted, starting reauthorization")
		if err := r.runLoginFlow(ctx, mgr); err != nil {
			return err
		}
		if snap, err = mgr.Resolve(ctx); err != nil {
			return fmt.Errorf("failed to resolve session: %w", err)
		}
	}

	if useJSON {
		return r.writeJSON(struct {
			State   string `json:"state"`
			Profile any    `json:"profile,omitempty"`
		}{snap.State.String(), snap.Profile}, pretty)
	}

	r.writePlain("%s", formatter.SessionToText(snap))
	return nil
}

// AuthLogout discards the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	mgr, err := r.ensureSession()
	if err != nil {
		return err
	}

	if err := mgr.Unauthorize(ctx); err != nil {
		return err
	}

	r.writePlain("✓ Logged out\n")
	return nil
}

// runLoginFlow executes one authorization round trip with a local HTTP
// server receiving the provider's callback.
func (r *Runner) runLoginFlow(ctx context.Context, mgr *session.Manager) error {
	authURL, err := mgr.Authorize(ctx)
	if err != nil {
		return err
	}

	handler := server.NewCallbackHandler(mgr)
	router := server.NewBasicRouter()
	router.Handler(handler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result error

	select {
	case result = <-handler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result != nil {
		return fmt.Errorf("authorization failed: %w", result)
	}

	return nil
}
