// Package receiver accepts batches of raw rows pushed by statuspulse-agent
// instances (or any other producer) and files them into the row store.
//
// Receiver.Ingest rejects a batch without a service_id, normalizes each row
// (malformed rows are dropped and counted), appends the rest to the store,
// and then evaluates alert rules against the service's fresh report.
// Authentication and throttling are enforced upstream by the HTTP layer, so
// the receiver only performs structural validation.
package receiver
