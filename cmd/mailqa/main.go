// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/mailqa"
	"github.com/poiesic/mailqa/ai"
	"github.com/poiesic/mailqa/api"
	"github.com/poiesic/mailqa/config"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/credential"
	"github.com/poiesic/mailqa/ingestion"
	"github.com/poiesic/mailqa/mail"
	"github.com/poiesic/mailqa/mail/gmail"
	"github.com/poiesic/mailqa/mail/imap"
	"github.com/poiesic/mailqa/normalize"
	"github.com/poiesic/mailqa/qa"
	"github.com/poiesic/mailqa/staging"
	"github.com/urfave/cli/v2"
)

const (
	dateLayout      = "2006-01-02"
	gmailTokenKey   = "gmail-token"
	oauthStateToken = "mailqa"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mailqa",
		Usage: "Answer questions about your mailbox",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address to listen on (overrides server.listen)",
					},
					&cli.BoolFlag{
						Name:  "reset-on-ingest",
						Usage: "Clear the store before every ingestion request",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ingest a query window and answer one question",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "start",
						Usage:    "First day of the window (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "end",
						Usage:    "Last day of the window (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "query",
						Usage: "Mail search terms",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report ingestion progress on stderr",
					},
				},
			},
			{
				Name:   "login",
				Usage:  "Authorize Gmail access and store the token",
				Action: loginCommand,
			},
		},
	}
}

// services holds everything a command needs, built from configuration.
type services struct {
	db       *mailqa.Database
	pipeline *ingestion.Pipeline
	engine   *qa.Engine
}

func (r *services) Close() error {
	r.pipeline.Release()
	return r.db.Close()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func buildServices(ctx context.Context, cfg *config.Config, opts ...ingestion.Option) (*services, error) {
	logger := slog.Default()

	session, err := openSession(ctx, cfg)
	if err != nil {
		// Keep running unauthenticated; ingestion reports not-authenticated
		logger.Warn("mail session unavailable", "provider", cfg.Mail.Provider, "err", err)
		session = nil
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(cfg.AI.Host),
		ai.WithModel(cfg.AI.Model),
		ai.WithAPIKey(cfg.AI.APIKey),
	)
	dbOpts := []mailqa.DatabaseOption{
		mailqa.WithAIConfig(aiConfig),
		mailqa.WithAttachmentPoolSize(cfg.Mail.PoolSize),
		mailqa.WithLogger(logger),
	}
	if session != nil {
		dbOpts = append(dbOpts, mailqa.WithMailSession(session))
	}
	db, err := mailqa.NewDatabase(cfg.Store.Path, dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	stager, err := staging.New(cfg.Staging.Dir,
		staging.WithExtensions(cfg.Staging.Extensions...),
		staging.WithLogger(logger),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	normalizer, err := normalize.New(
		normalize.WithChunking(cfg.Normalize.ChunkSize, cfg.Normalize.ChunkOverlap),
		normalize.WithLogger(logger),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}

	opts = append([]ingestion.Option{
		ingestion.WithMessageConcurrency(cfg.Ingestion.MessageConcurrency),
		ingestion.WithTimeout(cfg.Ingestion.Timeout),
	}, opts...)
	pipeline, err := db.NewIngestionPipeline(stager, normalizer, opts...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	engine, err := db.NewEngine(
		qa.WithTopK(cfg.QA.TopK),
		qa.WithMaxContextChars(cfg.QA.MaxContextChars),
		qa.WithTemperature(cfg.QA.Temperature),
		qa.WithMaxTokens(cfg.QA.MaxTokens),
		qa.WithTimeout(cfg.QA.Timeout),
	)
	if err != nil {
		pipeline.Release()
		db.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &services{db: db, pipeline: pipeline, engine: engine}, nil
}

// openSession connects to the configured mail provider. The returned
// session is nil whenever err is not.
func openSession(ctx context.Context, cfg *config.Config) (mail.Session, error) {
	switch cfg.Mail.Provider {
	case config.ProviderIMAP:
		session, err := imap.NewSession(imap.Config{
			Host:     cfg.IMAP.Host,
			Port:     strconv.Itoa(cfg.IMAP.Port),
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			TLS:      cfg.IMAP.TLS,
			Mailbox:  cfg.IMAP.Mailbox,
		})
		if err != nil {
			return nil, err
		}
		return session, nil
	case config.ProviderGmail:
		oauthCfg, err := gmail.OAuthConfigFromFile(cfg.Gmail.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrNotAuthenticated, err)
		}
		store, err := tokenStore(cfg)
		if err != nil {
			return nil, err
		}
		session, err := gmail.NewAuthenticatedSession(ctx, oauthCfg, store)
		if err != nil {
			return nil, err
		}
		return session, nil
	default:
		return nil, fmt.Errorf("%w: unknown mail provider %q", config.ErrInvalidConfig, cfg.Mail.Provider)
	}
}

func tokenStore(cfg *config.Config) (gmail.TokenStore, error) {
	if cfg.Gmail.TokenStore == config.TokenStoreKeyring {
		store, err := credential.Open(cfg.Gmail.KeyringDir)
		if err != nil {
			return nil, err
		}
		return credential.NewTokenStore(store, gmailTokenKey), nil
	}
	return gmail.FileTokenStore{Path: cfg.Gmail.TokenFile}, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.Server.Listen
	if listen := c.String("listen"); listen != "" {
		addr = listen
	}

	if c.Bool("reset-on-ingest") {
		cfg.Server.ResetOnIngest = true
	}

	rt, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := api.NewServer(rt.pipeline, rt.engine, rt.db.DocumentRepository(),
		api.WithResetOnIngest(cfg.Server.ResetOnIngest),
		api.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("listening", "addr", addr, "provider", cfg.Mail.Provider, "model", cfg.AI.Model)
	if err := server.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func parseWindow(start, end, query string) (core.QueryWindow, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return core.QueryWindow{}, fmt.Errorf("%w: start: %w", core.ErrInvalidQueryWindow, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return core.QueryWindow{}, fmt.Errorf("%w: end: %w", core.ErrInvalidQueryWindow, err)
	}
	w := core.QueryWindow{Start: s, End: e, Query: strings.TrimSpace(query)}
	if err := w.Validate(); err != nil {
		return core.QueryWindow{}, err
	}
	return w, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}
	window, err := parseWindow(c.String("start"), c.String("end"), c.String("query"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(os.Stderr))
	}
	rt, err := buildServices(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.pipeline.Ingest(ctx, window)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Messages: %d found, %d processed\n", report.MessagesFound, report.MessagesProcessed)
	fmt.Fprintf(os.Stderr, "Documents written: %d, skipped: %d\n", report.DocumentsWritten, report.Skipped())
	if report.Interrupted {
		fmt.Fprintln(os.Stderr, "Ingestion timed out; answering from partial results")
	}
	fmt.Fprintln(os.Stderr)

	answer, err := rt.engine.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answering failed: %w", err)
	}
	if !answer.Found() {
		fmt.Fprintln(c.App.Writer, "No matching documents.")
		return nil
	}
	fmt.Fprintln(c.App.Writer, answer.Text)
	for _, doc := range answer.Evidence {
		fmt.Fprintf(c.App.Writer, "  - %s %s\n", doc.ID, evidenceLabel(doc))
	}
	return nil
}

func evidenceLabel(doc *core.Document) string {
	if name := doc.Meta(core.MetaSourceFilename); name != "" {
		return name
	}
	return doc.Meta(core.MetaSubject)
}

func loginCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Mail.Provider != config.ProviderGmail {
		return fmt.Errorf("login is only needed for the %s provider", config.ProviderGmail)
	}

	oauthCfg, err := gmail.OAuthConfigFromFile(cfg.Gmail.CredentialsFile)
	if err != nil {
		return err
	}
	store, err := tokenStore(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Visit this URL to authorize access:\n\n%s\n\nPaste the authorization code: ", gmail.AuthCodeURL(oauthCfg, oauthStateToken))
	code, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && code == "" {
		return fmt.Errorf("reading authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("authorization code is required")
	}

	if err := gmail.Exchange(c.Context, oauthCfg, code, store); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Token saved.")
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
