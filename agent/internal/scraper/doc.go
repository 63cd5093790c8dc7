// Package scraper polls a service's Prometheus metrics endpoint and totals one
// request counter family (default http_requests_total) by the outcome carried
// in one of its labels (default "code").
//
// Results are raw cumulative counts; the compute engine derives per-interval
// deltas from consecutive scrapes.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the
// shared authRoundTripper in base.go; New builds one *http.Client per source
// and reuses it.
package scraper
