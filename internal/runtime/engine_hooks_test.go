package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	nodes  []*domain.NodeEvent
	runEnd *domain.RunEvent
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, e *domain.RunEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "run_start")
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "run_end")
			r.runEnd = e
		},
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "start:"+e.NodeID)
		},
		OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "end:"+e.NodeID)
			r.nodes = append(r.nodes, e)
		},
	}
}

func TestEngine_LifecycleHooks(t *testing.T) {
	rec := &recorder{}
	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Add(), testutils.Multiply()),
		runtime.WithLifecycleHooks(rec.hooks()))
	g := testutils.Graph(t, "hooks", []testutils.Node{
		{ID: "A", Type: "add", Inputs: map[string]any{"a": 1, "b": 2}},
		{ID: "B", Type: "multiply", Inputs: map[string]any{"y": 4}},
	}, []testutils.Edge{{FromNode: "A", FromPort: "result", ToNode: "B", ToPort: "x"}})

	res := engine.ExecuteGraph(context.Background(), g)
	require.True(t, res.Success)

	assert.Equal(t, []string{"run_start", "start:A", "end:A", "start:B", "end:B", "run_end"}, rec.events)
	require.Len(t, rec.nodes, 2)
	assert.Equal(t, "multiply", rec.nodes[1].NodeType)
	assert.Equal(t, 1, rec.nodes[1].Level)
	assert.Equal(t, domain.StatusSuccess, rec.nodes[1].Status)
	assert.Equal(t, 1, rec.nodes[1].Attempts)
	assert.Equal(t, res.ExecutionID, rec.nodes[1].ExecutionID)
	assert.Equal(t, "hooks", rec.nodes[1].GraphID)

	require.NotNil(t, rec.runEnd)
	assert.True(t, rec.runEnd.Success)
	assert.Equal(t, 2, rec.runEnd.TotalNodes)
	assert.Nil(t, rec.runEnd.Err)
}

func TestEngine_LifecycleHooks_Failure(t *testing.T) {
	rec := &recorder{}
	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Fail("boom", errors.New("kaput"))),
		runtime.WithLifecycleHooks(rec.hooks()))
	g := testutils.Graph(t, "hooks-fail", []testutils.Node{{ID: "X", Type: "boom"}}, nil)

	res := engine.ExecuteGraph(context.Background(), g)
	require.False(t, res.Success)

	require.Len(t, rec.nodes, 1)
	assert.Equal(t, domain.StatusError, rec.nodes[0].Status)
	require.NotNil(t, rec.nodes[0].Err)
	assert.Equal(t, domain.CodeExecutionError, rec.nodes[0].Err.Code)

	require.NotNil(t, rec.runEnd)
	assert.False(t, rec.runEnd.Success)
	assert.Error(t, rec.runEnd.Err)
}

func TestEngine_MergedHooks(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	engine := runtime.NewEngine(testutils.NewRegistry(t, testutils.Add()),
		runtime.WithLifecycleHooks(domain.Merge(first.hooks(), second.hooks())))
	g := testutils.Graph(t, "merged", []testutils.Node{{ID: "A", Type: "add", Inputs: map[string]any{"a": 1, "b": 1}}}, nil)

	require.True(t, engine.ExecuteGraph(context.Background(), g).Success)
	assert.Equal(t, first.events, second.events)
	assert.Len(t, first.events, 4)
}

func TestEngine_ExecutionContextPassedToNodes(t *testing.T) {
	var seen *domain.ExecutionContext
	def := testutils.Add()
	inner := def.Executor
	def.Executor = domain.ExecutorFunc(func(ctx context.Context, in, cfg map[string]any, ec *domain.ExecutionContext) (map[string]any, error) {
		seen = ec
		return inner.Execute(ctx, in, cfg, ec)
	})

	engine := runtime.NewEngine(testutils.NewRegistry(t, def),
		runtime.WithUserID("alice"),
		runtime.WithIDGenerator(func() string { return "exec-1" }))
	g := testutils.Graph(t, "ctx", []testutils.Node{{ID: "A", Type: "add", Inputs: map[string]any{"a": 1, "b": 1}}}, nil)

	require.True(t, engine.ExecuteGraph(context.Background(), g).Success)
	require.NotNil(t, seen)
	assert.Equal(t, "exec-1", seen.ExecutionID)
	assert.Equal(t, "A", seen.NodeID)
	assert.Equal(t, "ctx", seen.GraphID)
	assert.Equal(t, "alice", seen.UserID)
	assert.NotNil(t, seen.Logger)
	assert.NotNil(t, seen.Cache)
}
