package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/dirty"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func chain(t *testing.T) *domain.Graph {
	return testutils.Graph(t, "chain", []testutils.Node{
		{ID: "A", Type: "add", Inputs: map[string]any{"a": 1, "b": 2}},
		{ID: "B", Type: "multiply", Inputs: map[string]any{"y": 4}},
	}, []testutils.Edge{{FromNode: "A", FromPort: "result", ToNode: "B", ToPort: "x"}})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Add(), testutils.Multiply()),
		runtime.WithLifecycleHooks(m.Hooks()))
	require.True(t, engine.ExecuteGraph(context.Background(), chain(t)).Success)

	expected := `
# HELP lattice_runs_total Total number of graph runs by outcome
# TYPE lattice_runs_total counter
lattice_runs_total{outcome="success"} 1
# HELP lattice_node_executions_total Total number of node executions by type and status
# TYPE lattice_node_executions_total counter
lattice_node_executions_total{node_type="add",status="success"} 1
lattice_node_executions_total{node_type="multiply",status="success"} 1
# HELP lattice_nodes_running Nodes currently executing
# TYPE lattice_nodes_running gauge
lattice_nodes_running 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"lattice_runs_total", "lattice_node_executions_total", "lattice_nodes_running"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "lattice_node_duration_seconds"))
}

func counter(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetValue() == label {
					total += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestMetrics_FailureAndCacheHits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := runtime.WithLifecycleHooks(m.Hooks())

	failing := runtime.NewEngine(testutils.NewRegistry(t, testutils.Fail("boom", errors.New("kaput"))), hooks)
	g := testutils.Graph(t, "fail", []testutils.Node{{ID: "X", Type: "boom"}}, nil)
	require.False(t, failing.ExecuteGraph(context.Background(), g).Success)

	cached := runtime.NewEngine(testutils.NewRegistry(t, testutils.Add(), testutils.Multiply()), hooks,
		runtime.WithDirtyTracker(dirty.New(nil)), runtime.WithCacheReuse())
	require.True(t, cached.ExecuteGraph(context.Background(), chain(t)).Success)
	second := cached.ExecuteGraph(context.Background(), chain(t))
	require.True(t, second.Success)
	require.True(t, second.NodeStates["B"].Cached)

	assert.Equal(t, 1.0, counter(t, reg, "lattice_runs_total", "failure"))
	assert.Equal(t, 2.0, counter(t, reg, "lattice_runs_total", "success"))
	assert.Equal(t, 1.0, counter(t, reg, "lattice_node_executions_total", "error"))
	assert.Equal(t, 1.0, counter(t, reg, "lattice_node_cache_hits_total", "add"))
	assert.Equal(t, 1.0, counter(t, reg, "lattice_node_cache_hits_total", "multiply"))
}

func TestNewMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.NoError(t, err)

	_, err = observability.NewMetrics(nil)
	assert.NoError(t, err)
}

func TestTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := observability.NewTracer(provider)

	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Add(), testutils.Multiply()),
		runtime.WithLifecycleHooks(tracer.Hooks()))
	res := engine.ExecuteGraph(context.Background(), chain(t))
	require.True(t, res.Success)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	run := byName["lattice.run"]
	require.NotNil(t, run)
	assert.Equal(t, codes.Ok, run.Status().Code)

	node := byName["lattice.node multiply"]
	require.NotNil(t, node)
	assert.Equal(t, run.SpanContext().TraceID(), node.SpanContext().TraceID())
	assert.Equal(t, run.SpanContext().SpanID(), node.Parent().SpanID())
}

func TestTracer_Failure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := observability.NewTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Fail("boom", errors.New("kaput"))),
		runtime.WithLifecycleHooks(tracer.Hooks()))
	g := testutils.Graph(t, "fail", []testutils.Node{{ID: "X", Type: "boom"}}, nil)
	require.False(t, engine.ExecuteGraph(context.Background(), g).Success)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, codes.Error, s.Status().Code, s.Name())
		assert.NotEmpty(t, s.Events(), "error should be recorded on %s", s.Name())
	}
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Add(), testutils.Multiply()),
		runtime.WithLifecycleHooks(observability.LoggingHooks(logger)))
	require.True(t, engine.ExecuteGraph(context.Background(), chain(t)).Success)

	out := buf.String()
	assert.Contains(t, out, "msg=run_start")
	assert.Contains(t, out, "msg=node_start node_id=A")
	assert.Contains(t, out, "msg=node_end node_id=B status=success")
	assert.Contains(t, out, "msg=run_end")
}
