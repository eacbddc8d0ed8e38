package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"spoton/internal/oauth"
	"spoton/internal/repositories"
	"spoton/internal/server"
	"spoton/internal/services"
	"spoton/internal/shared"
	"spoton/internal/statetoken"
)

// Serve runs the standing authorization relay.
//
// Provider secrets come from the environment, never from config.toml, so a
// deployed relay can't leak them through a checked-in file. Missing secrets
// are fatal at startup.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	creds, err := shared.LoadEnvCredentials()
	if err != nil {
		return fmt.Errorf("relay requires SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET: %w", err)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = fmt.Sprintf("http://%s:%d/auth/spotify/redirect", r.config.Relay.Host, r.config.Relay.Port)
	}

	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"redirect_uri":  redirectURI,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	tokens, err := r.relayTokenStore(ctx)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	kv := repositories.NewKVRepository(db)
	credStore := repositories.NewCredentialRepository(kv, r.logger)
	exchanger := oauth.NewExchanger(spotify.GetOAuthConfig(), tokens, r.logger)

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(server.NewRelayHandler(spotify, tokens, exchanger, credStore, r.logger))

	port := r.config.Relay.Port
	if cmd.Int("port") != 0 {
		port = cmd.Int("port")
	}

	addr := fmt.Sprintf("%s:%d", r.config.Relay.Host, port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	notifyCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("relay listening", "addr", addr, "state_store", r.config.Relay.StateStore)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-notifyCtx.Done():
	}

	r.logger.Info("shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}

// relayTokenStore builds the anti-forgery token backend named by the config:
// in-process for a single relay, redis when instances share flows.
func (r *Runner) relayTokenStore(ctx context.Context) (statetoken.Store, error) {
	switch r.config.Relay.StateStore {
	case "", "memory":
		return statetoken.NewMemoryStore(r.logger).Provider("spotify"), nil
	case "redis":
		store, err := statetoken.NewRedisStore(ctx, r.config.Relay.RedisAddr, r.config.Relay.RedisPassword, "spotify", r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown state_store %q", shared.ErrInvalidConfig, r.config.Relay.StateStore)
	}
}
