package iap

import "errors"

// Error taxonomy for event processing. Controllers map these onto HTTP
// status codes; everything else bubbles up as a storage/internal failure.
var (
	// ErrUnsupportedEvent marks a vendor notification type we do not model.
	// Non-retryable.
	ErrUnsupportedEvent = errors.New("unsupported store event")

	// ErrMalformedEvent marks a notification missing required identifiers or
	// timestamps. Non-retryable.
	ErrMalformedEvent = errors.New("malformed store event")

	// ErrUnknownProduct marks an event referencing a store product id with no
	// catalog entry. Non-retryable.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrSubscriptionNotFound marks an event that requires an existing
	// subscription arriving before the purchase that establishes it.
	// Possibly transient: the caller should let the vendor redeliver.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// errStaleEvent is internal: stale events are discarded, not failed.
	errStaleEvent = errors.New("stale store event")
)
