// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag returns a fresh flag instance per command: cli flags are
// stateful, so sharing one pointer leaks IsSet across Run calls.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// authCommand handles session lifecycle operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the current session state",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Discard the stored credential",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// nowCommand shows the user's current playback
func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "now",
		Usage: "Show what's currently playing",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Now,
	}
}

// serveCommand runs the authorization relay service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the authorization relay service",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the interactive session view
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"ui"},
		Usage:   "Launch the interactive session view",
		Flags:   []cli.Flag{configFlag()},
		Action:  r.TUI,
	}
}
