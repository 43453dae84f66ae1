// Package observability provides structured logging and Prometheus metrics
// for the esign server.
//
// Loggers are plain *zap.Logger values built by NewLogger. Request-scoped
// loggers carry the chi request id. Metrics are recorded through the Metrics
// interface so services can be tested with NopMetrics.
package observability
