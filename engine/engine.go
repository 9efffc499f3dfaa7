package engine

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
	"github.com/sicko7947/fraudflow/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/sicko7947/fraudflow/engine"

// Ports groups the external collaborators the engine drives
type Ports struct {
	Generator fraudflow.SQLGenerator
	Completer fraudflow.Completer
	Executor  fraudflow.SQLExecutor
	Records   fraudflow.RecordStore
	Reviewer  fraudflow.Reviewer
}

func (p Ports) validate() error {
	var missing []string
	if p.Generator == nil {
		missing = append(missing, "generator")
	}
	if p.Completer == nil {
		missing = append(missing, "completer")
	}
	if p.Executor == nil {
		missing = append(missing, "executor")
	}
	if p.Records == nil {
		missing = append(missing, "records")
	}
	if p.Reviewer == nil {
		missing = append(missing, "reviewer")
	}
	if len(missing) > 0 {
		return fraudflow.NewWorkflowError(fraudflow.ErrCodeValidation, "engine ports missing").
			WithDetails(map[string]interface{}{"missing": missing})
	}
	return nil
}

// Engine drives one pattern at a time through the approval state machine
type Engine struct {
	ports      Ports
	logger     zerolog.Logger
	config     fraudflow.RunConfig
	metrics    metrics.WorkflowMetrics
	tracer     trace.Tracer
	retryDelay time.Duration
	now        func() time.Time
	graph      *fraudflow.ExecutionGraph
}

// EngineOption configures the engine
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the engine
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets the run configuration; zero fields keep their defaults
func WithConfig(config fraudflow.RunConfig) EngineOption {
	return func(e *Engine) {
		e.config = config.WithDefaults()
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m metrics.WorkflowMetrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer used for node spans
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithRetryDelay sets the base delay between completer attempts
func WithRetryDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.retryDelay = d
	}
}

// NewEngine creates an engine over the given ports.
// If no logger is provided, a default stdout logger with Info level is used.
// If no config is provided, DefaultRunConfig is used.
func NewEngine(ports Ports, opts ...EngineOption) (*Engine, error) {
	if err := ports.validate(); err != nil {
		return nil, err
	}

	// Default logger: pretty console output, Info level
	defaultLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)

	eng := &Engine{
		ports:      ports,
		logger:     defaultLogger,
		config:     fraudflow.DefaultRunConfig,
		metrics:    metrics.Noop{},
		tracer:     otel.Tracer(tracerName),
		retryDelay: 500 * time.Millisecond,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(eng)
	}

	graph, err := eng.buildGraph()
	if err != nil {
		return nil, fraudflow.NewWorkflowError(fraudflow.ErrCodeInternalError, "invalid state machine").WithCause(err)
	}
	eng.graph = graph

	return eng, nil
}

// Graph exposes the state-machine table
func (e *Engine) Graph() *fraudflow.ExecutionGraph {
	return e.graph
}

// Run drives pattern from PARSE_PATTERN to COMPLETE. It blocks on the
// reviewer at every suspension point. On failure or cancellation no state is
// returned.
func (e *Engine) Run(ctx context.Context, pattern fraudflow.Pattern) (*fraudflow.WorkflowState, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	state := fraudflow.NewWorkflowState(pattern)
	state.RunID = uuid.New().String()
	runLogger := fraudflow.RunLogger(e.logger, state.RunID, pattern.ID)

	if err := e.ports.Records.Clear(ctx); err != nil {
		err = fraudflow.NewWorkflowError(fraudflow.ErrCodeInternalError, "failed to clear sql records").WithCause(err)
		return nil, e.failRun(runLogger, state, err)
	}

	fraudflow.LogRunStarted(runLogger, state.RunID, pattern.ID, len(pattern.Steps))
	e.metrics.IncRunStarted(pattern.ID)
	startTime := e.now()

	if err := e.walk(ctx, state, runLogger); err != nil {
		e.metrics.ObserveRunDuration(pattern.ID, e.now().Sub(startTime).Seconds())
		return nil, e.failRun(runLogger, state, err)
	}

	duration := e.now().Sub(startTime)
	e.metrics.IncRunCompleted(pattern.ID, string(state.Status))
	e.metrics.ObserveRunDuration(pattern.ID, duration.Seconds())
	fraudflow.LogRunCompleted(runLogger, state, e.ports.Records.Location(), duration)

	return state, nil
}

// failRun marks the state failed and reports err
func (e *Engine) failRun(logger zerolog.Logger, state *fraudflow.WorkflowState, err error) error {
	state.Status = fraudflow.RunStatusFailed
	e.metrics.IncRunCompleted(state.PatternID, string(state.Status))

	if errors.Is(err, context.Canceled) || fraudflow.IsCode(err, fraudflow.ErrCodeCancelled) {
		logger.Warn().Str("run_id", state.RunID).Msg("Run cancelled")
	} else {
		fraudflow.LogRunFailed(logger, state.RunID, err)
	}
	return err
}
