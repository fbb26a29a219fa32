package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatcal/internal/chat"
	"chatcal/internal/config"
	"chatcal/internal/gemini"
	"chatcal/internal/google"
	"chatcal/internal/icloud"
	"chatcal/internal/server"
	"chatcal/internal/syncer"
	"chatcal/internal/tokens"

	"github.com/urfave/cli/v2"
)

const defaultIdentity = "default"

func main() {
	app := &cli.App{
		Name:  "chatcal",
		Usage: "Chat with Gemini for business ideas and create Google Calendar events from plain language.",
		Commands: []*cli.Command{
			serveCommand(),
			authCommand(),
			chatCommand(),
			eventsCommand(),
			mirrorCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

var identityFlag = &cli.StringFlag{
	Name:  "identity",
	Value: defaultIdentity,
	Usage: "Token store identity to act as.",
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP chat server.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			deps, err := buildDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}

			srv := server.New(logger, deps.orchestrator, deps.calendar, deps.calendar, deps.store, cfg.StaticDir, cfg.HTTPPort)
			return srv.Run(c.Context)
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and store the token for an identity.",
		Flags: []cli.Flag{
			identityFlag,
			&cli.BoolFlag{Name: "list", Usage: "Print identities with a stored token and exit."},
			&cli.BoolFlag{Name: "remove", Usage: "Forget the stored token for the identity and exit."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			store, err := tokens.NewFileStore(cfg.TokenDir)
			if err != nil {
				return err
			}

			switch {
			case c.Bool("list"):
				identities, err := store.Identities()
				if err != nil {
					return fmt.Errorf("failed to list identities: %w", err)
				}
				for _, id := range identities {
					fmt.Println(id)
				}
				return nil
			case c.Bool("remove"):
				if err := store.Delete(c.Context, c.String("identity")); err != nil {
					return err
				}
				logger.Info("Removed stored token.", "identity", c.String("identity"))
				return nil
			}

			logger.Info("Starting Google authentication flow.")
			calClient, err := google.NewClient(logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleCalendarID)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			fmt.Printf("Go to the following link in your browser, then paste the "+
				"\"code\" parameter of the page you are redirected to: \n%v\n", calClient.AuthCodeURL("state-token"))

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := calClient.Exchange(c.Context, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			identity := c.String("identity")
			if err := store.Save(c.Context, identity, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "identity", identity)
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Send one message and print the reply.",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			identityFlag,
			&cli.StringFlag{Name: "persona", Usage: "Persona to answer as."},
			&cli.BoolFlag{Name: "list-personas", Usage: "Print the available personas and exit."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			deps, err := buildDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}

			if c.Bool("list-personas") {
				for _, p := range deps.orchestrator.Personas() {
					fmt.Printf("%s: %s\n", p.Name, p.Description)
				}
				return nil
			}

			message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if message == "" {
				return fmt.Errorf("a message is required")
			}

			reply := deps.orchestrator.Respond(c.Context, chat.Request{
				Persona:  c.String("persona"),
				Message:  message,
				Identity: c.String("identity"),
			})
			fmt.Println(reply.Text)
			if reply.State == chat.StateExhausted {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List upcoming calendar events for an identity.",
		Flags: []cli.Flag{
			identityFlag,
			&cli.IntFlag{Name: "days", Value: 7, Usage: "How many days ahead to look."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			calClient, err := google.NewClient(logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleCalendarID)
			if err != nil {
				return err
			}
			store, err := tokens.NewFileStore(cfg.TokenDir)
			if err != nil {
				return err
			}

			token, err := store.Token(c.Context, c.String("identity"))
			if err != nil {
				return fmt.Errorf("could not load token, did you run the auth command? %w", err)
			}
			events, err := calClient.UpcomingEvents(c.Context, token, c.Int("days"))
			if err != nil {
				return err
			}
			for _, e := range events {
				fmt.Printf("%s  %s  %s\n", e.Start.DateTime, e.Summary, e.HTMLLink)
			}
			return nil
		},
	}
}

func mirrorCommand() *cli.Command {
	return &cli.Command{
		Name:  "mirror",
		Usage: "Copy upcoming Google Calendar events into the iCloud calendar.",
		Flags: []cli.Flag{
			identityFlag,
			&cli.IntFlag{Name: "days", Value: 30, Usage: "How many days ahead to mirror."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be mirrored without writing anything."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if !cfg.MirrorEnabled() {
				return fmt.Errorf("iCloud mirror is not configured, set ICLOUD_USERNAME")
			}
			calClient, err := google.NewClient(logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleCalendarID)
			if err != nil {
				return err
			}
			store, err := tokens.NewFileStore(cfg.TokenDir)
			if err != nil {
				return err
			}
			token, err := store.Token(c.Context, c.String("identity"))
			if err != nil {
				return fmt.Errorf("could not load token, did you run the auth command? %w", err)
			}
			mirror, err := icloud.NewClient(c.Context, logger, cfg.ICloudUsername, cfg.ICloudPassword, cfg.ICloudCalendarName)
			if err != nil {
				return fmt.Errorf("failed to create icloud client: %w", err)
			}

			s, err := syncer.NewSyncer(logger, calClient, mirror, cfg.MirrorStateFile, c.Bool("dry-run"))
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}
			_, err = s.Sync(c.Context, token, c.Int("days"))
			return err
		},
	}
}

type deps struct {
	orchestrator *chat.Orchestrator
	calendar     *google.CalendarClient
	store        *tokens.FileStore
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	model, err := gemini.NewClient(ctx, logger, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	calClient, err := google.NewClient(logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleCalendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	store, err := tokens.NewFileStore(cfg.TokenDir)
	if err != nil {
		return nil, err
	}

	opts := []chat.Option{
		chat.WithMaxRetries(cfg.MaxRetries),
		chat.WithLocation(cfg.Location()),
		chat.WithDefaultPersona(cfg.DefaultPersona),
	}
	if cfg.MirrorEnabled() {
		mirror, err := icloud.NewClient(ctx, logger, cfg.ICloudUsername, cfg.ICloudPassword, cfg.ICloudCalendarName)
		if err != nil {
			return nil, fmt.Errorf("failed to create icloud client: %w", err)
		}
		opts = append(opts, chat.WithMirror(mirror))
	}

	return &deps{
		orchestrator: chat.NewOrchestrator(logger, model, calClient, store, opts...),
		calendar:     calClient,
		store:        store,
	}, nil
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogger(cfg.LogLevel)
	logger.Debug("Configuration loaded", "port", cfg.HTTPPort, "model", cfg.GeminiModel, "timezone", cfg.PrimaryTimeZone, "mirror", cfg.MirrorEnabled())
	return cfg, logger, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
