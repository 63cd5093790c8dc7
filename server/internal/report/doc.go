// Package report joins the store to the pure core: it buckets a service's rows
// for a profile, colors each bucket with the tiered classifier, aggregates the
// window and judges the service with the sample-floor classifier.
package report
