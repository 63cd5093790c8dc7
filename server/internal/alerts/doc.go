// Package alerts implements the rule evaluation engine and webhook delivery
// for statuspulse alerting. Rules are evaluated against service reports after
// every ingest; webhooks are delivered to Teams, Slack, or generic HTTP targets.
package alerts
