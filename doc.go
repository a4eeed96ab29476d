/*
Package lattice is an engine for typed node graphs.

Users register node types (a manifest with input, output and config schemas plus
an executor), wire node instances into a directed graph and execute it in
dependency order. Every node's inputs and outputs are validated against its
manifest, outputs are cached, and a dirty tracker decides what must be
recomputed after a change.

# Concept

A graph is a set of node instances and edges. An edge binds an output port of
one node to an input port of another, which makes the second depend on the
first. The engine validates the graph (no cycles, no unknown types, no dangling
edges), orders it topologically and runs one node at a time, or one dependency
level at a time with WithParallelism. The first failing node aborts the run.

# Key Features

  - Schema contracts: inputs, config and outputs are checked on every call.
  - Caching: outputs are kept in an LRU/TTL cache and optionally mirrored to a
    durable OutputStore (Redis, SQLite).
  - Incremental runs: with WithCacheReuse, clean nodes are served from cache.
  - Timeouts and retries: per-node deadlines and manifest retry policies.
  - Observability: lifecycle hooks feed Prometheus and OpenTelemetry.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/lattice"
		"github.com/aretw0/lattice/pkg/dsl"
	)

	func main() {
		eng, err := lattice.New(lattice.WithStandardNodes())
		if err != nil {
			log.Fatal(err)
		}

		b := dsl.New("demo")
		b.Add("A", "math.add").Input("a", 1).Input("b", 2)
		b.Add("B", "math.multiply").Input("y", 4).From("x", "A.result")

		g, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		res := eng.ExecuteGraph(context.Background(), g)
		out, _ := res.Output("B")
		fmt.Println(out["result"]) // 12
	}
*/
package lattice
