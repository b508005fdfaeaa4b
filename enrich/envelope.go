package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RawEnvelope is the message of an analysis response. The message is either
// an object or a JSON document encoded as a string.
type RawEnvelope interface {
	containers() (map[string]json.RawMessage, error)
}

// ObjectPayload is a message delivered as a plain JSON object.
type ObjectPayload json.RawMessage

// StringPayload is a message delivered as a JSON-encoded string.
type StringPayload string

type innerPayload struct {
	Containers map[string]json.RawMessage `json:"containers"`
}

func (p ObjectPayload) containers() (map[string]json.RawMessage, error) {
	var inner innerPayload
	if err := json.Unmarshal(p, &inner); err != nil {
		return nil, err
	}
	return inner.Containers, nil
}

func (p StringPayload) containers() (map[string]json.RawMessage, error) {
	return ObjectPayload(p).containers()
}

// wireEnvelope is {success, message}. Some deployments put containers at
// the top level instead of inside message.
type wireEnvelope struct {
	Success    *bool                      `json:"success"`
	Message    json.RawMessage            `json:"message"`
	Containers map[string]json.RawMessage `json:"containers"`
}

var (
	errNoContainers = errors.New("enrich: payload has no containers")
	errUnsuccessful = errors.New("enrich: analysis service reported success=false")
)

// decodeEnvelope resolves the envelope once: the message is tried first
// (string, then object), then the top-level containers object. An explicit
// success=false yields errUnsuccessful.
func decodeEnvelope(body []byte) (map[string]json.RawMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("enrich: decode envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		if msg := classify(env.Message); msg != nil {
			if s, ok := msg.(StringPayload); ok {
				return nil, fmt.Errorf("%w: %s", errUnsuccessful, truncate([]byte(s), 200))
			}
		}
		return nil, errUnsuccessful
	}

	if payload := classify(env.Message); payload != nil {
		if c, err := payload.containers(); err == nil && len(c) > 0 {
			return c, nil
		}
	}
	if len(env.Containers) > 0 {
		return env.Containers, nil
	}
	return nil, errNoContainers
}

// classify picks the union variant for a raw message field.
func classify(raw json.RawMessage) RawEnvelope {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return StringPayload(s)
	case '{':
		return ObjectPayload(raw)
	default:
		return nil
	}
}
