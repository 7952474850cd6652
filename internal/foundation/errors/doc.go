// Package errors provides classified error primitives used across the manifest pipeline.
//
// A ClassifiedError carries a category (config, serialize, hook, build, ...),
// a severity and a small context map. Errors are created through a fluent
// builder so that call sites stay uniform:
//
//	err := errors.ConfigError("map callback returned an empty name").
//		WithContext("asset", desc.Path).
//		Build()
//
// The CLI adapter turns classified errors into exit codes and log records.
package errors
