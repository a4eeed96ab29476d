package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/internal/presentation/tui"
	httpadapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/domain"
)

// ErrRunFailed is returned by RunGraph when the graph ran but did not succeed.
var ErrRunFailed = errors.New("run failed")

// ErrInvalidGraph is returned by Validate for a graph with errors.
var ErrInvalidGraph = errors.New("graph is invalid")

// RunOptions controls how RunGraph reports.
type RunOptions struct {
	JSON  bool
	Stats bool
}

// RunGraph loads ref, executes it and writes a report to w.
func (rt *Runtime) RunGraph(ctx context.Context, ref string, opts RunOptions, w io.Writer) (*domain.RunResult, error) {
	g, err := rt.Engine.LoadGraph(ctx, ref)
	if err != nil {
		return nil, err
	}
	res := rt.Engine.ExecuteGraph(ctx, g)

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return res, fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		md := tui.RunReport(g, res)
		if opts.Stats {
			md += "\n" + rt.Engine.Stats().Report()
		}
		if err := render(w, md); err != nil {
			return res, err
		}
	}

	if !res.Success {
		if res.Error == nil {
			return res, ErrRunFailed
		}
		return res, fmt.Errorf("%w: %w", ErrRunFailed, res.Error)
	}
	return res, nil
}

// Validate checks ref without executing it.
func (rt *Runtime) Validate(ctx context.Context, ref string, w io.Writer) error {
	g, err := rt.Engine.LoadGraph(ctx, ref)
	if err != nil {
		return err
	}
	v := rt.Engine.ValidateGraph(g)
	if v.Valid {
		fmt.Fprintf(w, "%s\n", tui.StatusLine(w, true, fmt.Sprintf("%s is valid (%d nodes, %d edges)", ref, g.NodeCount(), g.EdgeCount())))
		return nil
	}
	fmt.Fprintf(w, "%s\n", tui.StatusLine(w, false, fmt.Sprintf("%s has %d problem(s):", ref, len(v.Errors))))
	for _, e := range v.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	return ErrInvalidGraph
}

// Plan writes the execution plan of ref, as text or JSON.
func (rt *Runtime) Plan(ctx context.Context, ref string, asJSON bool, w io.Writer) error {
	g, err := rt.Engine.LoadGraph(ctx, ref)
	if err != nil {
		return err
	}
	plan, err := rt.Engine.CreateExecutionPlan(g)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	fmt.Fprintf(w, "Execution plan for %s (%d nodes)\n", g.ID, plan.TotalNodes)
	for level, ids := range plan.Groups {
		fmt.Fprintf(w, "  level %d: %s\n", level, strings.Join(ids, ", "))
	}
	return nil
}

// Graph writes ref as a Mermaid flowchart grouped by level. With withRun the
// graph is executed first and node states are painted onto the chart.
func (rt *Runtime) Graph(ctx context.Context, ref string, withRun bool, w io.Writer) error {
	g, err := rt.Engine.LoadGraph(ctx, ref)
	if err != nil {
		return err
	}
	var levels [][]string
	if plan, err := rt.Engine.CreateExecutionPlan(g); err == nil {
		levels = plan.Groups
	}
	var overlay *graph.Overlay
	if withRun {
		overlay = graph.OverlayFromResult(rt.Engine.ExecuteGraph(ctx, g))
	}
	_, err = io.WriteString(w, graph.GenerateMermaid(g, levels, overlay))
	return err
}

// Nodes lists the registered node types, as a table or as JSON manifests.
func (rt *Runtime) Nodes(asJSON bool, w io.Writer) error {
	manifests := rt.Engine.Registry().Manifests()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifests)
	}
	sort.SliceStable(manifests, func(i, j int) bool { return manifests[i].Category < manifests[j].Category })

	var b strings.Builder
	b.WriteString("| Type | Category | Version | Description |\n|---|---|---|---|\n")
	for _, m := range manifests {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", m.Type, m.Category, m.Version, m.Description.En)
	}
	return render(w, b.String())
}

// Serve runs the HTTP adapter on addr until ctx is done.
func (rt *Runtime) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr: addr,
		Handler: httpadapter.NewHandler(rt.Engine.Registry(),
			httpadapter.WithGatherer(rt.Metrics),
			httpadapter.WithLogger(rt.Logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		rt.Logger.Info("starting lattice server", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		rt.Logger.Info("shutting down lattice server")
		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		return nil
	}
}

func render(w io.Writer, md string) error {
	out, err := tui.NewRenderer(w)(md)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
