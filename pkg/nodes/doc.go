// Package nodes provides the built-in node types.
//
// Every node declares input, output and config schemas plus examples that
// double as its self-test. Register them all with RegisterAll:
//
//	reg := registry.New()
//	if err := nodes.RegisterAll(reg); err != nil {
//		log.Fatal(err)
//	}
//
// Configs are decoded into typed structs with mapstructure, so a duration may
// be given as "250ms" and numbers may arrive as strings.
package nodes
