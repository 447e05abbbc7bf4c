// Package mutation defines the wire shape of a single change operation and
// its structural validation. Business rules (required keys, reaction
// constraints, authorization) live in the engine, not here.
package mutation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindRemove Kind = "remove"
)

// Collection names the engine knows how to mutate.
const (
	CollectionContent      = "content"
	CollectionContentTypes = "content_types"
)

var ErrMalformed = errors.New("malformed mutation")

// Envelope is one requested change against a named collection. Key
// identifies the target row for update/remove as a string-encoded integer;
// Value carries the attributes to write for insert/update.
type Envelope struct {
	Kind       Kind           `json:"kind"`
	Collection string         `json:"collection"`
	Key        string         `json:"key,omitempty"`
	Value      map[string]any `json:"value,omitempty"`
}

// Parse decodes and structurally validates a single envelope.
func Parse(raw json.RawMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// ParseBatch decodes an ordered list of envelopes, failing on the first
// structurally invalid entry.
func ParseBatch(raw []json.RawMessage) ([]Envelope, error) {
	batch := make([]Envelope, 0, len(raw))
	for i, item := range raw {
		env, err := Parse(item)
		if err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
		batch = append(batch, env)
	}
	return batch, nil
}

// Validate checks shape only: a recognized operation kind and a non-empty
// collection. Key presence for update/remove is a runtime precondition
// enforced by the engine, since the envelope shape is the same for all
// three operation kinds.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindInsert, KindUpdate, KindRemove:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, e.Kind)
	}
	if strings.TrimSpace(e.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrMalformed)
	}
	return nil
}
