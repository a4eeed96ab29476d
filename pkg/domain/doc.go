/*
Package domain contains the core models shared by every Lattice component.

It defines the graph a caller submits for execution, the manifests that describe
node types, and the state produced while a graph runs. The package is kept free
of I/O and persistence concerns so that it can be imported by adapters and the
runtime alike.

# Key Entities

  - Graph: nodes keyed by id and typed edges between their ports, both kept in insertion order.
  - Manifest: static metadata of a node type (schemas, capabilities, cache and retry policies, examples).
  - NodeExecutor: the execution contract a node author implements.
  - ExecutionContext: the per-invocation bundle handed to an executor.
  - NodeExecutionState / RunResult: what the engine records while a graph runs.
  - Error: the structured error carried through registration, validation and execution.
*/
package domain
