package logkey

// Common slog attribute keys so log lines stay grep-able across packages.
const (
	TraceID = "trace_id"
	ERROR   = "error"
	OrderID = "order_id"
)
