package qdrant

import (
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"github.com/vecscope/vecscope/internal/domain/record"
)

// payloadMetadata extracts record metadata from a point payload, skipping the
// document key. Payload maps are unordered, so keys are sorted for a stable
// metadata order.
func payloadMetadata(payload map[string]*qdrant.Value) *record.Metadata {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == payloadDoc {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	meta := record.NewMetadata()
	for _, k := range keys {
		meta.Set(k, payloadValue(payload[k]))
	}
	return meta
}

// payloadValue converts a Qdrant payload value to a record value.
func payloadValue(v *qdrant.Value) record.Value {
	if v == nil {
		return record.Null()
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return record.String(val.StringValue)
	case *qdrant.Value_IntegerValue:
		return record.Number(float64(val.IntegerValue))
	case *qdrant.Value_DoubleValue:
		return record.Number(val.DoubleValue)
	case *qdrant.Value_BoolValue:
		return record.Bool(val.BoolValue)
	case *qdrant.Value_ListValue:
		items := make([]record.Value, 0, len(val.ListValue.GetValues()))
		for _, item := range val.ListValue.GetValues() {
			items = append(items, payloadValue(item))
		}
		return record.Array(items...)
	case *qdrant.Value_StructValue:
		fields := val.StructValue.GetFields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]record.Member, 0, len(keys))
		for _, k := range keys {
			members = append(members, record.Member{Key: k, Value: payloadValue(fields[k])})
		}
		return record.Object(members...)
	default:
		return record.Null()
	}
}
