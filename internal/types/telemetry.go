package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"
	MetricLinkTestFailure = "LinkTestFailure"

	DimProvider = "Provider"
	DimResult   = "Result"

	// Default namespace when METRIC_NAMESPACE is unset.
	MetricNamespace = "EmergencyAlerts"
)

// Dispatch outcomes recorded under DimResult.
const (
	DispatchResultAck       = "ack"
	DispatchResultRetry     = "retry"
	DispatchResultIntegrity = "integrity"
)
