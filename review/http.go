package review

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
)

// Request is the pending question served by GET /api/v1/review
type Request struct {
	ID        string               `json:"id"`
	Kind      Kind                 `json:"kind"`
	View      fraudflow.ReviewView `json:"view"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Answer is the body accepted by POST /api/v1/review
type Answer struct {
	ID       string `json:"id,omitempty"`
	Decision string `json:"decision"`
	SQL      string `json:"sql,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

type pending struct {
	req   Request
	reply chan Answer
}

// HTTPReviewer blocks each decision until an answer is posted over HTTP.
// At most one question is pending at a time.
type HTTPReviewer struct {
	mu      sync.Mutex
	current *pending

	app     *fiber.App
	logger  zerolog.Logger
	metrics http.Handler
}

// HTTPOption configures an HTTPReviewer
type HTTPOption func(*HTTPReviewer)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) HTTPOption {
	return func(r *HTTPReviewer) {
		r.logger = logger
	}
}

// WithMetricsHandler serves h on GET /metrics
func WithMetricsHandler(h http.Handler) HTTPOption {
	return func(r *HTTPReviewer) {
		r.metrics = h
	}
}

// NewHTTPReviewer creates the reviewer and its routes
func NewHTTPReviewer(opts ...HTTPOption) *HTTPReviewer {
	r := &HTTPReviewer{
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().Level(zerolog.InfoLevel),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.app = fiber.New()
	r.registerRoutes()
	return r
}

// App exposes the fiber application, mainly for tests
func (r *HTTPReviewer) App() *fiber.App {
	return r.app
}

// Listen serves until Shutdown is called
func (r *HTTPReviewer) Listen(addr string) error {
	r.logger.Info().Str("address", addr).Msg("Starting review server")
	return r.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the server
func (r *HTTPReviewer) Shutdown(timeout time.Duration) error {
	return r.app.ShutdownWithTimeout(timeout)
}

func (r *HTTPReviewer) registerRoutes() {
	r.app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "fraudflow-review",
		})
	})

	if r.metrics != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(r.metrics))
	}

	v1 := r.app.Group("/api/v1")
	v1.Get("/review", r.handleGetReview)
	v1.Post("/review", r.handlePostReview)
}

// handleGetReview returns the pending question or 204
func (r *HTTPReviewer) handleGetReview(c fiber.Ctx) error {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()

	if cur == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(cur.req)
}

// handlePostReview delivers an answer to the waiting node
func (r *HTTPReviewer) handlePostReview(c fiber.Ctx) error {
	var answer Answer
	if err := c.Bind().JSON(&answer); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	r.mu.Lock()
	cur := r.current
	if cur == nil {
		r.mu.Unlock()
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "No review pending",
		})
	}
	if answer.ID != "" && answer.ID != cur.req.ID {
		r.mu.Unlock()
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "Review id does not match the pending request",
			"pendingId": cur.req.ID,
		})
	}
	if cur.req.Kind != KindRethink {
		d, ok := ParseDecision(answer.Decision)
		if !ok || (d == fraudflow.DecisionEdited && cur.req.Kind != KindSQL) {
			r.mu.Unlock()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid decision for " + string(cur.req.Kind) + " review",
			})
		}
		answer.Decision = string(d)
	}
	r.current = nil
	r.mu.Unlock()

	cur.reply <- answer

	r.logger.Info().
		Str("review_id", cur.req.ID).
		Str("kind", string(cur.req.Kind)).
		Str("decision", answer.Decision).
		Msg("Review answered")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":       cur.req.ID,
		"decision": answer.Decision,
	})
}

// ask publishes a question and waits for its answer
func (r *HTTPReviewer) ask(ctx context.Context, kind Kind, view fraudflow.ReviewView) (Answer, error) {
	p := &pending{
		req: Request{
			ID:        uuid.New().String(),
			Kind:      kind,
			View:      view,
			CreatedAt: time.Now(),
		},
		reply: make(chan Answer, 1),
	}

	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return Answer{}, fraudflow.NewWorkflowError(fraudflow.ErrCodeInternalError, "a review is already pending")
	}
	r.current = p
	r.mu.Unlock()

	r.logger.Info().
		Str("review_id", p.req.ID).
		Str("kind", string(kind)).
		Str("node", view.Node.String()).
		Msg("Waiting for review")

	defer func() {
		r.mu.Lock()
		if r.current == p {
			r.current = nil
		}
		r.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	case answer := <-p.reply:
		return answer, nil
	}
}

// ReviewSQL publishes the view and blocks until a SQL decision is posted
func (r *HTTPReviewer) ReviewSQL(ctx context.Context, view fraudflow.ReviewView) (fraudflow.SQLReview, error) {
	answer, err := r.ask(ctx, KindSQL, view)
	if err != nil {
		return fraudflow.SQLReview{}, err
	}
	return fraudflow.SQLReview{Decision: fraudflow.Decision(answer.Decision), SQL: answer.SQL}, nil
}

// ReviewExecution blocks until an execution decision is posted
func (r *HTTPReviewer) ReviewExecution(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	answer, err := r.ask(ctx, KindExecution, view)
	if err != nil {
		return "", err
	}
	return fraudflow.Decision(answer.Decision), nil
}

// ReviewFinal blocks until a final decision is posted
func (r *HTTPReviewer) ReviewFinal(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	answer, err := r.ask(ctx, KindFinal, view)
	if err != nil {
		return "", err
	}
	return fraudflow.Decision(answer.Decision), nil
}

// Rethink blocks until rethink feedback is posted
func (r *HTTPReviewer) Rethink(ctx context.Context, view fraudflow.ReviewView) (string, error) {
	answer, err := r.ask(ctx, KindRethink, view)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer.Feedback), nil
}
