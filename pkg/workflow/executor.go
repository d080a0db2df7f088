package workflow

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/otelhelper"
	"github.com/flowmesh/flowmesh/pkg/registry"
)

// Executor topologically orders and dispatches node execution for one run.
// Within a run, node handlers execute one at a time; a handler performing
// I/O blocks only that run's progress.
type Executor struct {
	registry *registry.Registry
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NodeStat records the outcome of one node dispatch.
type NodeStat struct {
	NodeID     string
	Success    bool
	DurationMs int64
}

// RunResult carries per-run node accounting alongside the result map.
type RunResult struct {
	NodeResults  map[string]any
	NodeStats    []NodeStat
	SuccessCount int
	FailedCount  int
}

func NewExecutor(reg *registry.Registry, tracer trace.Tracer, logger *slog.Logger) *Executor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("flowmesh")
	}

	return &Executor{
		registry: reg,
		tracer:   tracer,
		logger:   logger.With("module", "executor"),
	}
}

// Run executes the workflow graph. Each node keeps an in-degree counter,
// decremented as its dependencies complete; a node is dispatched only at
// zero. The error is non-nil unless every node without continue_on_error
// succeeded. Partial results from completed nodes remain in the execution
// context after an aborted run.
func (e *Executor) Run(ctx context.Context, wf *models.Workflow, execCtx *models.ExecutionContext) (*RunResult, error) {
	logger := e.logger.With("workflow_id", wf.ID, "execution_id", execCtx.ID)

	if len(wf.Nodes) == 0 {
		return nil, ErrEmptyWorkflow
	}

	var cancel context.CancelFunc

	timeout := time.Duration(wf.Settings.TimeoutSeconds) * time.Second
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		otelhelper.WorkflowID(wf.ID), otelhelper.ExecutionID(execCtx.ID))
	defer span.End()

	inDegree := make(map[string]int, len(wf.Nodes))
	dependents := make(map[string][]string)

	for _, node := range wf.Nodes {
		inDegree[node.ID] = 0
	}

	for _, edge := range wf.Edges {
		inDegree[edge.Target]++
		dependents[edge.Source] = append(dependents[edge.Source], edge.Target)
	}

	ready := make([]string, 0, len(wf.Nodes))
	for _, node := range wf.Nodes {
		if inDegree[node.ID] == 0 {
			ready = append(ready, node.ID)
		}
	}

	result := &RunResult{NodeResults: execCtx.NodeResults}
	executed := make(map[string]bool, len(wf.Nodes))

	for len(executed) < len(wf.Nodes) {
		if len(ready) == 0 {
			// A structural cycle that escaped validation. Distinct
			// fatal configuration error, never a silent hang.
			execCtx.Log("error", "", ErrCyclicGraph.Error())

			return result, ErrCyclicGraph
		}

		nodeID := ready[0]
		ready = ready[1:]

		if executed[nodeID] {
			continue
		}

		node, ok := wf.NodeByID(nodeID)
		if !ok {
			continue
		}

		if err := ctx.Err(); err != nil {
			timeoutErr := &TimeoutError{WorkflowID: wf.ID, Timeout: timeout}
			execCtx.Log("error", node.ID, timeoutErr.Error())

			return result, timeoutErr
		}

		if err := e.executeNode(ctx, node, execCtx, result, logger); err != nil {
			return result, err
		}

		executed[node.ID] = true

		for _, dependent := range dependents[node.ID] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	logger.Info("Workflow run completed",
		"nodes", len(wf.Nodes),
		"succeeded", result.SuccessCount,
		"failed", result.FailedCount)

	return result, nil
}

func (e *Executor) executeNode(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext, result *RunResult, logger *slog.Logger) error {
	nodeCtx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		otelhelper.NodeID(node.ID), otelhelper.NodeType(node.Type))
	defer span.End()

	execCtx.Log("info", node.ID, "node started")

	started := time.Now()
	output, err := e.registry.Dispatch(nodeCtx, node, execCtx)
	elapsed := time.Since(started).Milliseconds()

	if err != nil {
		otelhelper.RecordError(span, err)

		if ctx.Err() == context.DeadlineExceeded {
			return &TimeoutError{WorkflowID: execCtx.WorkflowID}
		}

		// Configuration errors are always fatal: a broken node must
		// never silently degrade into a false success.
		if !node.ContinueOnError || IsConfigurationError(err) {
			result.FailedCount++
			result.NodeStats = append(result.NodeStats, NodeStat{NodeID: node.ID, DurationMs: elapsed})
			execCtx.Log("error", node.ID, err.Error())

			return &NodeExecutionError{NodeID: node.ID, Err: err}
		}

		// Swallowed failure: logged, no result stored. Downstream
		// interpolation sees the reference as unresolved.
		result.FailedCount++
		result.NodeStats = append(result.NodeStats, NodeStat{NodeID: node.ID, DurationMs: elapsed})
		execCtx.Log("warn", node.ID, "node failed, continuing: "+err.Error())
		logger.Warn("Node failed, continue_on_error set", "node_id", node.ID, "error", err)

		return nil
	}

	execCtx.SetResult(node.ID, output)
	execCtx.Log("info", node.ID, "node completed")
	result.SuccessCount++
	result.NodeStats = append(result.NodeStats, NodeStat{NodeID: node.ID, Success: true, DurationMs: elapsed})

	return nil
}
