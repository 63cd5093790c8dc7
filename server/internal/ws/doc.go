// Package ws streams service snapshots to browsers over WebSocket, mounted by
// the server at /ws/stream.
//
// Each subscriber gets the current snapshot on connect and a fresh one every
// broadcast interval:
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot body */ }}
//
// A subscriber whose queue fills up is disconnected instead of slowing the
// others down. Origins are not checked here; restrict them at the proxy.
package ws
