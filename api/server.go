package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/ingestion"
	"github.com/poiesic/mailqa/qa"
	"github.com/poiesic/mailqa/storage"
)

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Ingester runs one ingestion over a query window.
type Ingester interface {
	Ingest(ctx context.Context, w core.QueryWindow) (*ingestion.Report, error)
}

// Answerer answers a question from the document store.
type Answerer interface {
	Answer(ctx context.Context, question string) (*qa.Answer, error)
}

// Server exposes ingestion and question answering over HTTP:
//
//	POST   /retrieve-documents  ingest a query window
//	POST   /run-query           answer a question
//	DELETE /documents           reset the store
//	GET    /healthz             report the document count
type Server struct {
	ingester      Ingester
	answerer      Answerer
	repository    storage.DocumentRepository
	resetOnIngest bool
	maxBodyBytes  int64
	ingestMu      sync.Mutex // one ingestion at a time
	app           *fiber.App
	logger        *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithResetOnIngest clears the store before every ingestion request.
// By default documents accumulate across requests.
func WithResetOnIngest(reset bool) Option {
	return func(s *Server) error {
		s.resetOnIngest = reset
		return nil
	}
}

// WithMaxBodyBytes limits request body size. Default is 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) error {
		if n > 0 {
			s.maxBodyBytes = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewServer creates a new HTTP server.
func NewServer(ingester Ingester, answerer Answerer, repository storage.DocumentRepository, opts ...Option) (*Server, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	if repository == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Server{
		ingester:     ingester,
		answerer:     answerer,
		repository:   repository,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "api")

	s.app = fiber.New(fiber.Config{
		BodyLimit:             int(s.maxBodyBytes),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})
	s.app.Use(s.logRequests)
	s.Register(s.app)

	return s, nil
}

// Register mounts the API routes on router.
func (s *Server) Register(router fiber.Router) {
	router.Post("/retrieve-documents", s.handleIngest)
	router.Post("/run-query", s.handleQuestion)
	router.Delete("/documents", s.handleReset)
	router.Get("/healthz", s.handleHealth)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Monitor context for shutdown
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownErr <- s.app.ShutdownWithTimeout(defaultShutdownTimeout)
	}()

	s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "reset_on_ingest", s.resetOnIngest)
	if err := s.app.Listener(ln); err != nil {
		return err
	}
	return <-shutdownErr
}

func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req ingestRequest
	if err := decode(c.Body(), &req); err != nil {
		return err
	}
	window, err := req.window()
	if err != nil {
		return err
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	ctx := c.UserContext()
	if s.resetOnIngest {
		if err := s.repository.Reset(ctx); err != nil {
			return err
		}
	}

	report, err := s.ingester.Ingest(ctx, window)
	if err != nil {
		// Documents written before the failure stay in the store
		return s.writeError(c, err, report)
	}
	return c.Status(fiber.StatusOK).JSON(newIngestResponse(report))
}

func (s *Server) handleQuestion(c *fiber.Ctx) error {
	var req questionRequest
	if err := decode(c.Body(), &req); err != nil {
		return err
	}
	question, err := req.question()
	if err != nil {
		return err
	}

	answer, err := s.answerer.Answer(c.UserContext(), question)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(newAnswerResponse(answer))
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if err := s.repository.Reset(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	count, err := s.repository.Count(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(&healthResponse{Status: "ok", Documents: count})
}

// handleError renders any error returned by a handler, the router or the
// body reader.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code != fiber.StatusRequestEntityTooLarge {
			kind := strings.ReplaceAll(http.StatusText(fe.Code), " ", "")
			return c.Status(fe.Code).JSON(&errorResponse{Error: kind, Message: fe.Message})
		}
		err = fmt.Errorf("%w: body exceeds %d bytes", core.ErrMalformedRequest, s.maxBodyBytes)
	}
	return s.writeError(c, err, nil)
}

func (s *Server) writeError(c *fiber.Ctx, err error, report *ingestion.Report) error {
	kind, status := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", kind, "err", err)
	} else {
		s.logger.Debug("request rejected", "kind", kind, "err", err)
	}
	resp := &errorResponse{Error: kind, Message: err.Error()}
	if report != nil {
		resp.Report = newIngestResponse(report)
	}
	return c.Status(status).JSON(resp)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		err = s.handleError(c, err)
	}
	s.logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"elapsed", time.Since(start))
	return err
}
