// Package security inspects the TLS certificates of HTTPS source endpoints.
// The agent runs CheckAll at startup and once a day, and logs sources whose
// certificate is expiring, expired, or unreachable.
package security
