// SPDX-License-Identifier: MIT
// Package transport delivers analysis frames to consumers outside the
// process. Implementations must not block the caller: the analysis tick
// calls Send on every frame.
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}
