package port

import "convq/internal/domain"

// MediaConverter runs conversions asynchronously. Dispatch returns as soon
// as the work has been handed off; outcomes arrive later through the
// ConverterSink registered with the adapter.
type MediaConverter interface {
	// Dispatch starts converting according to params. durationSeconds is the
	// probed source duration, used to translate elapsed output time into a
	// percentage.
	Dispatch(params domain.ConversionParameters, durationSeconds float64) error

	// Halt requests a best-effort stop of the in-flight operation. Calling
	// it while idle is a no-op.
	Halt()
}

// ConverterSink receives the converter's event stream: zero or more
// progress updates followed by exactly one completion per dispatched job.
type ConverterSink interface {
	OnProgress(percentage int)
	OnCompleted(exitStatus int)
}
