// Package httputil provides HTTP utilities for standardized response handling
// and common middleware.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteUnauthorized(w, "no user")
//	httputil.WriteErrorMessage(w, http.StatusInternalServerError, "authentication failed")
//
// Error bodies are always {"error": "<message>"}.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Rate limiting middleware
package httputil
