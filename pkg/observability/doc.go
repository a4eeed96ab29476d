/*
Package observability turns engine lifecycle events into telemetry.

Each constructor returns a domain.LifecycleHooks value that can be passed to
lattice.WithLifecycleHooks; several sets may be combined:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	spans := observability.NewTracer(otel.GetTracerProvider())
	eng, _ := lattice.New(
		lattice.WithLifecycleHooks(metrics.Hooks()),
		lattice.WithLifecycleHooks(spans.Hooks()),
		lattice.WithLifecycleHooks(observability.LoggingHooks(logger)),
	)
*/
package observability
