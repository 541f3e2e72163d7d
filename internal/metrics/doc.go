// Package metrics provides observability hooks for package assembly.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default so callers never need nil checks; PrometheusRecorder is swapped
// in when metrics are enabled:
//
//	reg := prom.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	assembler := assembly.New(source, catalog, opts, assembly.WithRecorder(recorder))
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
