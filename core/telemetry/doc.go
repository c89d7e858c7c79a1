// Package telemetry wraps OpenTelemetry tracing behind a small Scope API.
//
// Services open one scope per operation and record errors and counters on it:
//
//	ctx, scope := tracer.NewScope(ctx, "sync", "Sync")
//	defer scope.End()
//	scope.TraceIfError(err)
//
// Without a collector endpoint New returns a tracer backed by the no-op provider.
package telemetry
