package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through a call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldCategory is the listing category being refreshed or served
	FieldCategory = "category"

	// FieldURL is the image or listing URL being processed
	FieldURL = "url"

	// FieldSource is the content source identifier
	FieldSource = "source"
)

// Metric fields, attached per entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldAttempt is the 1-based attempt number of a retried operation
	FieldAttempt = "attempt"

	// FieldQuality is the encoder quality used for a compression pass
	FieldQuality = "quality"
)
