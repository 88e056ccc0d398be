// Package middleware provides rate limiting for the public SSO endpoints.
//
// Initiation and callback requests are cheap to send and each one costs a
// broker round trip or a state token, so they are limited per client IP.
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	router.Use(middleware.NewRateLimitMiddleware(limiter, logger).Handler)
//
// The client IP is the socket peer unless WithTrustedProxyHeaders is set.
//
// DistributedRateLimiter shares the counters across replicas through redis.
package middleware
