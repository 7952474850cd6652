// Package metrics records manifest emission metrics.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	plugin := manifestplugin.New(manifestplugin.Options{
//	    Recorder: metrics.NewPrometheusRecorder(reg),
//	})
//
// PrometheusRecorder registers its collectors on the given registry and
// HTTPHandler serves that registry, which watch mode mounts on /metrics.
package metrics
