// Package condition parses and evaluates alert rule expressions such as
// "error_rate > 5" or "status == error" against a service report. It is
// shared by the alerts engine and config validation.
package condition
