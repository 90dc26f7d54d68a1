package events

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// wireEnvelope is the shape every producer serializes onto its topic:
// family/type/entityId/timestamp/correlationId/topic pulled straight off the
// wire, plus an arbitrary payload object carrying the family-specific
// fields (spec §4.1 step 1, §6 wire format).
//
// Decode uses gjson rather than encoding/json's reflective Unmarshal for
// the envelope header fields: the Consumer Runtime calls this once per
// delivered record on the hot path, and only six scalar fields need to be
// pulled out before the full payload is handed to a family handler as a
// generic map.
func Decode(raw []byte, partition int32, offset int64) (*Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("events: malformed JSON record at partition %d offset %d", partition, offset)
	}

	root := gjson.ParseBytes(raw)

	family := root.Get("family")
	if !family.Exists() || family.String() == "" {
		return nil, fmt.Errorf("events: missing family field")
	}
	eventType := root.Get("type")
	if !eventType.Exists() || eventType.String() == "" {
		return nil, fmt.Errorf("events: missing type field")
	}

	ts := time.Now().UTC()
	if tsField := root.Get("timestamp"); tsField.Exists() {
		if parsed, err := time.Parse(time.RFC3339Nano, tsField.String()); err == nil {
			ts = parsed.UTC()
		}
	}

	payload := root.Get("payload")
	fields := map[string]any{}
	if payload.Exists() && payload.IsObject() {
		payload.ForEach(func(key, value gjson.Result) bool {
			fields[key.String()] = value.Value()
			return true
		})
	}

	return &Envelope{
		Family:        Family(family.String()),
		Type:          Type(eventType.String()),
		EntityID:      root.Get("entityId").String(),
		Timestamp:     ts,
		Partition:     partition,
		Offset:        offset,
		CorrelationID: root.Get("correlationId").String(),
		Topic:         root.Get("topic").String(),
		Payload:       fields,
		Raw:           raw,
	}, nil
}
