// Package stream carries newly created karma activities from their point of
// append to every live observer of the affected user.
//
// Delivery guarantees: per-user insertion order is preserved, but events may
// be redelivered (reconnects, snapshot overlap). The aggregator's
// applied-set absorbs redelivery, so adapters here are free to be
// at-least-once.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"kudos/internal/karma"
)

// Publisher pushes newly appended activities onto the live stream.
// Implementations pair with a Source over the same transport.
type Publisher interface {
	Publish(ctx context.Context, act karma.Activity) error
}

// encodeActivity serializes an activity for the wire.
func encodeActivity(act karma.Activity) ([]byte, error) {
	if err := act.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("marshal activity: %w", err)
	}
	return payload, nil
}

// decodeActivity parses and validates a wire payload. Malformed payloads
// fail here instead of propagating half-populated records into the engine.
func decodeActivity(payload []byte) (karma.Activity, error) {
	var act karma.Activity
	if err := json.Unmarshal(payload, &act); err != nil {
		return karma.Activity{}, fmt.Errorf("unmarshal activity: %w", err)
	}
	if err := act.Validate(); err != nil {
		return karma.Activity{}, err
	}
	return act, nil
}
