// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown for the SSO
// service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("phase", "callback").Info("SSO authentication succeeded")
//
// Request-scoped loggers travel on the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx, fallback).Warn("missing routing hint")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordOutcome("callback", "success")
//	metrics.ObserveBrokerRequest("exchange", "ok", elapsed)
//
// A nil *Metrics is valid and records nothing.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "sso-server",
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Health Checks
//
// A failing critical dependency makes /readyz answer 503; a failing optional
// one reports "degraded" with 200.
//
//	checker := observability.NewHealthChecker(version,
//		observability.Dependency{Name: "state_store", Check: states.Ping, Critical: true},
//		observability.Dependency{Name: "broker", Check: observability.HTTPCheck(client, issuerURL)})
//	router.HandleFunc("/readyz", checker.Readiness)
package observability
