package feed

import "errors"

// errSubscriberClosed is returned internally when a subscriber sends a
// WebSocket close frame before the engine ever reaches a self_id-bearing
// snapshot; not surfaced to callers as a failure.
var errSubscriberClosed = errors.New("feed: subscriber closed before initial snapshot")
