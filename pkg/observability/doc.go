/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log records.

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Combine(metrics.Hooks(), observability.LoggingHooks(logger))
	engine := convo.New(defs, sessions, convo.WithLifecycleHooks(hooks))
*/
package observability
