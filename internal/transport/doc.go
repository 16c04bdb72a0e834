// Package transport streams emitted audio chunks to a remote consumer.
// The production implementation speaks WebSocket: a JSON metadata message
// followed by the binary payload, acknowledged per sequence id.
package transport
