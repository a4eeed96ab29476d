/*
Package dsl provides a Go DSL for programmatically constructing lattice graphs.

It lets developers define graphs with a fluent builder instead of YAML or JSON
files. This is useful for dynamic graph generation, unit tests and IDE
autocompletion.

Example usage:

	b := dsl.New("pricing")

	b.Add("base", "data.constant").Config("value", 100)

	b.Add("tax", "math.multiply").
		Input("y", 1.2).
		From("x", "base.value")

	b.Add("label", "text.template").
		Config("template", "total: {{.total}}").
		From("total", "tax.result")

	g, err := b.Build()

Ports are addressed as "node.port"; the last dot separates the two.
*/
package dsl
