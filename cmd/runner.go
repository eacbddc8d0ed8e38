package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"spoton/internal/oauth"
	"spoton/internal/repositories"
	"spoton/internal/services"
	"spoton/internal/session"
	"spoton/internal/shared"
	"spoton/internal/statetoken"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db      *sql.DB
	session *session.Manager
	tokens  statetoken.Store
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    *services.SpotifyService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the Runner's logger (the TUI redirects logs to a file).
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the Runner's database handle if one was opened.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, nowCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig swaps in the configuration named by the command's --config
// flag when it differs from the file already loaded. The Spotify service is
// rebuilt from the new credentials so later calls see the flagged config.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" || path == r.configPath {
		return nil
	}

	// The flag defaults to config.toml; when it wasn't given explicitly and
	// no such file exists, the config main loaded stands.
	if !cmd.IsSet("config") {
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r.config = config
	r.configPath = path
	r.spotify = nil

	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map(), r.logger)
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		r.spotify = svc
	}

	return nil
}

// ensureSpotify returns the configured Spotify service or a descriptive error.
func (r *Runner) ensureSpotify() (*services.SpotifyService, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized, set credentials in config.toml", shared.ErrServiceUnavailable)
	}
	return r.spotify, nil
}

// ensureSession lazily wires the session manager over the sqlite-backed
// stores. The database handle is kept for the Runner's lifetime.
func (r *Runner) ensureSession() (*session.Manager, error) {
	if r.session != nil {
		return r.session, nil
	}

	spotify, err := r.ensureSpotify()
	if err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	kv := repositories.NewKVRepository(db)
	tokens := statetoken.NewPersistedStore(kv, repositories.StateTokenKey, r.logger)

	r.db = db
	r.tokens = tokens
	r.session = session.NewManager(session.Options{
		Credentials: repositories.NewCredentialRepository(kv, r.logger),
		Tokens:      tokens,
		URLs:        spotify,
		Exchanger:   oauth.NewExchanger(spotify.GetOAuthConfig(), tokens, r.logger),
		Fetcher:     spotify,
		Logger:      r.logger,
	})

	return r.session, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
