// Package config loads the agent configuration from the `agent:` section of
// config.yaml and watches the file for changes.
//
// Each source names a Prometheus endpoint, the request counter to read from
// it (default http_requests_total), the label carrying the outcome (default
// "code"), and how to classify that label: status_code maps 2xx/3xx to ok,
// 4xx to warning and 5xx to error; outcome maps ok/success, warning/warn and
// everything else.
//
// Secrets are never stored in the file: key_env, token_env and password_env
// name environment variables resolved at call time.
package config
