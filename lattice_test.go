package lattice_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/datablock"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
	"github.com/aretw0/lattice/pkg/nodes"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T) *domain.Graph {
	b := dsl.New("chain")
	b.Add("A", "math.add").Input("a", 1).Input("b", 2)
	b.Add("B", "math.multiply").Input("y", 4).From("x", "A.result")
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestEngine_StandardNodes(t *testing.T) {
	eng, err := lattice.New(lattice.WithStandardNodes())
	require.NoError(t, err)

	res := eng.ExecuteGraph(context.Background(), chain(t))
	require.True(t, res.Success, "run failed: %v", res.Error)
	out, _ := res.Output("B")
	assert.Equal(t, 12.0, out["result"])
	assert.Equal(t, res.ExecutionID, eng.ExecutionID())
	assert.Len(t, eng.NodeStates(), 2)
}

func TestEngine_RunThroughLoader(t *testing.T) {
	loader, err := memory.NewFromGraphs(chain(t))
	require.NoError(t, err)
	eng, err := lattice.New(lattice.WithStandardNodes(), lattice.WithLoader(loader))
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), "chain")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = eng.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	bare, err := lattice.New()
	require.NoError(t, err)
	_, err = bare.Run(context.Background(), "chain")
	assert.Error(t, err)
}

func TestEngine_ValidateAndPlan(t *testing.T) {
	eng, err := lattice.New(lattice.WithStandardNodes())
	require.NoError(t, err)

	v := eng.ValidateGraph(chain(t))
	assert.True(t, v.Valid)

	plan, err := eng.CreateExecutionPlan(chain(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, plan.Order)
}

func TestEngine_CacheReuseAttachesTracker(t *testing.T) {
	var calls atomic.Int32
	add := registry.Definition{}
	eng, err := lattice.New(lattice.WithStandardNodes(), lattice.WithCacheReuse())
	require.NoError(t, err)
	require.NotNil(t, eng.DirtyTracker())

	def, err := eng.Registry().Get("math.add")
	require.NoError(t, err)
	add.Manifest = def.Manifest
	inner := def.Executor
	add.Executor = domain.ExecutorFunc(func(ctx context.Context, in, cfg map[string]any, ec *domain.ExecutionContext) (map[string]any, error) {
		calls.Add(1)
		return inner.Execute(ctx, in, cfg, ec)
	})
	require.NoError(t, eng.Register(add))

	require.True(t, eng.ExecuteGraph(context.Background(), chain(t)).Success)
	require.True(t, eng.ExecuteGraph(context.Background(), chain(t)).Success)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, eng.CacheStats().TotalEntries)

	assert.Equal(t, []string{"B"}, eng.MarkDirty("A"))
	require.True(t, eng.ExecuteGraph(context.Background(), chain(t)).Success)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEngine_HooksMerge(t *testing.T) {
	var a, b int
	eng, err := lattice.New(
		lattice.WithStandardNodes(),
		lattice.WithLifecycleHooks(domain.LifecycleHooks{OnNodeEnd: func(context.Context, *domain.NodeEvent) { a++ }}),
		lattice.WithLifecycleHooks(domain.LifecycleHooks{OnNodeEnd: func(context.Context, *domain.NodeEvent) { b++ }}),
	)
	require.NoError(t, err)
	require.True(t, eng.ExecuteGraph(context.Background(), chain(t)).Success)
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}

func TestEngine_InvalidNodeDefinition(t *testing.T) {
	_, err := lattice.New(lattice.WithNodes(registry.Definition{}))
	assert.Error(t, err)
}

func TestEngine_StandardNodesRegistersWholeLibrary(t *testing.T) {
	eng, err := lattice.New(lattice.WithStandardNodes())
	require.NoError(t, err)

	var want []string
	for _, def := range nodes.All() {
		want = append(want, def.Manifest.Type)
	}
	assert.ElementsMatch(t, want, eng.Registry().List())

	b := dsl.New("text")
	b.Add("C", nodes.TypeConcat).Input("values", []any{"a", 1, true}).Config("separator", "+")
	g, err := b.Build()
	require.NoError(t, err)

	res := eng.ExecuteGraph(context.Background(), g)
	require.True(t, res.Success, "run failed: %v", res.Error)
	out, _ := res.Output("C")
	assert.Equal(t, "a+1+true", out["result"])
}

func TestEngine_ParallelCancellation(t *testing.T) {
	eng, err := lattice.New(lattice.WithStandardNodes(), lattice.WithParallelism(2))
	require.NoError(t, err)

	b := dsl.New("wide")
	for _, id := range []string{"a", "b", "c"} {
		b.Add(id, nodes.TypeDelay).Input("value", id).Config("duration", "200ms")
	}
	g, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	res := eng.ExecuteGraph(ctx, g)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, domain.CodeExecutionCancelled, res.Error.Code)
	assert.Equal(t, domain.StatusPending, res.NodeStates["c"].Status)
	assert.Zero(t, res.CountByStatus()[domain.StatusSuccess])
}

type staticAI string

func (s staticAI) Complete(context.Context, string, map[string]any) (string, error) {
	return string(s), nil
}

func TestEngine_NodeServices(t *testing.T) {
	blocks := datablock.NewManager()
	var (
		mu       sync.Mutex
		progress []float64
		reply    string
		stored   []byte
	)
	servicesNode := func(ctx context.Context, in, _ map[string]any, ec *domain.ExecutionContext) (map[string]any, error) {
		id, err := ec.DataBlocks.Write(ctx, []byte("payload"))
		if err != nil {
			return nil, err
		}
		if stored, err = ec.DataBlocks.Read(ctx, id); err != nil {
			return nil, err
		}
		if reply, err = ec.AI.Complete(ctx, "ping", nil); err != nil {
			return nil, err
		}
		return map[string]any{"value": in["value"]}, nil
	}
	manifest := nodes.Delay().Manifest
	manifest.Type = "test.services"
	manifest.Examples = nil

	eng, err := lattice.New(
		lattice.WithStandardNodes(),
		lattice.WithNodes(registry.Definition{Manifest: manifest, Executor: domain.ExecutorFunc(servicesNode)}),
		lattice.WithDataBlocks(blocks),
		lattice.WithAIExecutor(staticAI("pong")),
		lattice.WithProgress(func(_ context.Context, e *domain.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, e.Progress)
		}),
	)
	require.NoError(t, err)

	b := dsl.New("services")
	b.Add("S", "test.services").Input("value", "v")
	b.Add("D", nodes.TypeDelay).Config("duration", "1ms").From("value", "S.value")
	g, err := b.Build()
	require.NoError(t, err)

	res := eng.ExecuteGraph(context.Background(), g)
	require.True(t, res.Success, "run failed: %v", res.Error)
	assert.Equal(t, []byte("payload"), stored)
	assert.Equal(t, "pong", reply)
	assert.Equal(t, []float64{0, 1}, progress)
	out, _ := res.Output("D")
	assert.Equal(t, "v", out["value"])
}
