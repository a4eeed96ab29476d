/*
Package ports defines the driven ports (interfaces) of the lattice engine.

These interfaces decouple the execution core from external implementations,
allowing the engine to mirror outputs to various storage backends, coordinate
runs across replicas and read graph definitions from different sources.

# Key Interfaces

  - OutputStore: Persists successful node outputs per graph (e.g., Redis, SQLite, Memory).
  - RunLocker: Provides distributed locking so only one replica runs a given graph at a time.
  - GraphLoader: Loads a graph definition (e.g., from a YAML/JSON file or memory).
*/
package ports
