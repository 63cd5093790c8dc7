// Package probe exposes per-service health over the standard gRPC health
// protocol (grpc.health.v1.Health), so load balancers and Kubernetes probes
// can ask "is checkout healthy?" without parsing the REST API.
//
// The serving status of each service follows its report status over the
// configured profile:
//
//	healthy → SERVING
//	error   → NOT_SERVING
//	unknown → SERVICE_UNKNOWN
//
// The empty service name reports the server itself and is SERVING until
// Shutdown is called.
package probe
