package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/flowmesh/pkg/catalog"
	"github.com/flowmesh/flowmesh/pkg/cmd"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/otelhelper"
	"github.com/flowmesh/flowmesh/pkg/protocol"
	"github.com/flowmesh/flowmesh/pkg/queue"
	"github.com/flowmesh/flowmesh/pkg/scheduler"
	"github.com/flowmesh/flowmesh/pkg/services"
	"github.com/flowmesh/flowmesh/pkg/triggers/batch"
	"github.com/flowmesh/flowmesh/pkg/triggers/calendar"
	"github.com/flowmesh/flowmesh/pkg/triggers/conditional"
	"github.com/flowmesh/flowmesh/pkg/triggers/cron"
	"github.com/flowmesh/flowmesh/pkg/triggers/event"
	"github.com/flowmesh/flowmesh/pkg/validation"
	"github.com/flowmesh/flowmesh/pkg/web"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

const shutdownTimeout = 30 * time.Second

// Application holds the resolved configuration and wires every service of
// the engine together for one process.
type Application struct {
	Port              int
	DatabaseURL       string
	EventBusProvider  string
	KafkaBrokers      string
	RedisAddr         string
	QueryEndpoint     string
	CalendarEndpoint  string
	ModelEndpoint     string
	ModelCandidates   string
	RetrievalEndpoint string
	MaxWorkers        int
	MaxRetries        int
	TracingEnabled    bool

	logger *slog.Logger
}

// Run starts the engine and blocks until SIGINT or SIGTERM, then shuts the
// pieces down in reverse dependency order.
func (a *Application) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "Initializing FlowMesh")

	store, err := cmd.NewPersistence(ctx, a.logger, a.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initializing persistence: %w", err)
	}

	defer func() {
		if err := store.Close(context.Background()); err != nil {
			a.logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, subscriber, err := cmd.NewEventBus(a.EventBusProvider, a.KafkaBrokers, "flowmesh", a.logger)
	if err != nil {
		return fmt.Errorf("initializing event bus: %w", err)
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			a.logger.Error("Failed to close event bus", "error", err)
		}
	}()

	candidates, err := cmd.LoadModelCandidates(a.ModelCandidates)
	if err != nil {
		return err
	}

	backends := cmd.NodeBackends{ModelCandidates: candidates}
	if a.ModelEndpoint != "" {
		backends.ModelClient = cmd.NewHTTPModelClient(a.ModelEndpoint)
	}

	if a.RetrievalEndpoint != "" {
		backends.KnowledgeStore = cmd.NewHTTPKnowledgeStore(a.RetrievalEndpoint)
	}

	var tracer trace.Tracer

	if a.TracingEnabled {
		tracer, err = otelhelper.NewTracer(ctx, "flowmesh")
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
	}

	reg := cmd.NewRegistry(a.logger, backends)
	cat := catalog.Default()
	graphValidator := validation.NewValidator(cat, reg, a.logger)
	executor := workflow.NewExecutor(reg, tracer, a.logger)
	metrics := services.NewMetrics()

	workflowService := services.NewWorkflow(store, graphValidator)
	executionService := services.NewExecution(store, graphValidator, executor, eventBus, metrics, a.logger)
	ledger := services.NewLedger(store.Executions(), a.logger)

	dispatch := func(ctx context.Context, item *models.QueueItem) error {
		_, err := executionService.Execute(ctx, services.ExecuteRequest{
			WorkflowID:  item.WorkflowID,
			TriggerType: string(item.TriggerType),
			Input:       item.TriggerContext,
		})

		return err
	}

	processor := queue.NewProcessor(dispatch, ledger, queue.Config{
		Workers:    a.MaxWorkers,
		MaxRetries: a.MaxRetries,
	}, a.logger)

	factories, closeSources, err := a.triggerFactories(ctx, subscriber)
	if err != nil {
		return err
	}

	defer closeSources()

	sched := scheduler.NewScheduler(store.Schedules(), store.Workflows(), factories, processor, eventBus, a.logger)
	if err := sched.Initialize(ctx); err != nil {
		return fmt.Errorf("restoring schedules: %w", err)
	}

	processor.Start(ctx)

	app := web.NewApp(web.NewAPIHandlers(workflowService, executionService, sched, cat, processor))

	serverErr := make(chan error, 1)

	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", a.Port))
	}()

	a.logger.InfoContext(ctx, "FlowMesh started", "port", a.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("api server: %w", err)
	case sig := <-sigChan:
		a.logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop API server", "error", err)
	}

	if err := sched.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop schedules", "error", err)
	}

	processor.Stop()

	return nil
}

// triggerFactories builds the factory set for the configured backends.
// Cron and event schedules are always available; the rest depend on their
// collaborator being configured.
func (a *Application) triggerFactories(ctx context.Context, subscriber message.Subscriber) ([]protocol.TriggerFactory, func(), error) {
	factories := []protocol.TriggerFactory{
		cron.NewFactory(),
		event.NewFactory(subscriber),
	}

	closeSources := func() {}

	if a.QueryEndpoint != "" {
		factories = append(factories, conditional.NewFactory(cmd.NewHTTPQueryEvaluator(a.QueryEndpoint)))
	} else {
		a.logger.Warn("query endpoint not configured, conditional schedules unavailable")
	}

	if a.RedisAddr != "" {
		source, err := batch.NewRedisSource(ctx, a.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting batch source: %w", err)
		}

		factories = append(factories, batch.NewFactory(source))
		closeSources = func() {
			if err := source.Close(); err != nil {
				a.logger.Error("Failed to close batch source", "error", err)
			}
		}
	} else {
		a.logger.Warn("redis address not configured, batch schedules unavailable")
	}

	if a.CalendarEndpoint != "" {
		factories = append(factories, calendar.NewFactory(cmd.NewHTTPCalendarSource(a.CalendarEndpoint)))
	} else {
		a.logger.Warn("calendar endpoint not configured, calendar schedules unavailable")
	}

	return factories, closeSources, nil
}
