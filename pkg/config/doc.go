// Package config provides application configuration management from
// environment variables and an optional YAML file.
//
// # Overview
//
// Defaults are applied first, then the YAML file named by SSO_CONFIG_FILE,
// then environment variables. The result is validated before use.
//
// # Configuration Structure
//
// SSO settings:
//
//	SSO_CLIENT_ID="client_123"
//	SSO_CLIENT_SECRET="sk_live_..."
//	SSO_CALLBACK_URL="https://app.example.com/auth/sso/callback"
//	SSO_ALLOWED_DOMAINS="example.com,example.org"
//	SSO_ALLOWED_REDIRECT_URIS="https://app.example.com/auth/sso/callback"
//
// Broker settings:
//
//	SSO_BROKER="workos"  # workos, oidc
//	SSO_BROKER_BASE_URL="https://api.workos.com"
//	SSO_OIDC_ISSUER_URL="https://idp.example.com"
//	SSO_OIDC_SCOPES="openid,profile,email"
//	SSO_BROKER_TIMEOUT="10s"
//
// Server settings:
//
//	SSO_HOST="0.0.0.0"
//	SSO_PORT="8080"
//	SSO_METRICS_PORT="9090"
//	SSO_READ_TIMEOUT="15s"
//	SSO_SHUTDOWN_TIMEOUT="30s"
//
// State settings:
//
//	SSO_STATE_STORE="redis"  # memory, redis
//	SSO_STATE_TTL="10m"
//	SSO_REDIS_URL="redis://localhost:6379/0"
//
// Rate limit settings (per client IP, SSO routes only):
//
//	SSO_RATE_LIMIT_ENABLED="true"
//	SSO_RATE_LIMIT_REQUESTS="30"
//	SSO_RATE_LIMIT_WINDOW="1m"
//	SSO_RATE_LIMIT_BURST="10"
//	SSO_RATE_LIMIT_TRUST_PROXY="false"
//
// Audit settings (events always reach the application log):
//
//	SSO_AUDIT_LOG_DIR="/var/log/sso/audit"
//	SSO_AUDIT_MAX_SIZE_MB="100"
//	SSO_AUDIT_MAX_FILES="10"
//	SSO_AUDIT_SYNC="false"
//
// Observability settings:
//
//	SSO_LOG_LEVEL="info"  # debug, info, warn, error
//	SSO_METRICS_ENABLED="true"
//	SSO_OTEL_ENABLED="true"
//	SSO_OTEL_ENDPOINT="otel-collector:4317"
//	SSO_OTEL_SAMPLE_RATIO="1.0"
//
// The same settings in YAML:
//
//	sso:
//	  client_id: client_123
//	  callback_url: https://app.example.com/auth/sso/callback
//	broker:
//	  type: workos
//	state:
//	  store: redis
//	  redis_url: redis://localhost:6379/0
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
