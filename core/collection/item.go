// Package collection keeps an in-memory view of remote resource collections and applies
// optimistic mutations to it, rolling them back when the remote system rejects them.
package collection

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// IDField is the mandatory identifier field of every Item.
const IDField = "id"

// Item is one record of a collection: an opaque JSON-like object with an `id` field.
type Item map[string]interface{}

// ID returns the normalised identifier of the item, or "" if it has none.
func (it Item) ID() string {
	return normalizeID(it[IDField])
}

// String returns the string value of field, or "" when it is absent or not a string.
func (it Item) String(field string) string {
	s, _ := it[field].(string)
	return s
}

// Clone returns a deep copy of the item: nested objects and arrays are copied too.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	return cloneMap(it)
}

// Merge returns a copy of the item with fields set on top of it.
func (it Item) Merge(fields Item) Item {
	merged := it.Clone()
	if merged == nil {
		merged = make(Item, len(fields))
	}
	for k, v := range fields {
		merged[k] = cloneValue(v)
	}
	return merged
}

func normalizeID(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	default:
		return fmt.Sprint(id)
	}
}

func cloneMap(m map[string]interface{}) Item {
	c := make(Item, len(m))
	for k, v := range m {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Item:
		return cloneMap(val)
	case map[string]interface{}:
		return map[string]interface{}(cloneMap(val))
	case []interface{}:
		c := make([]interface{}, len(val))
		for i, e := range val {
			c[i] = cloneValue(e)
		}
		return c
	case []Item:
		c := make([]Item, len(val))
		for i, e := range val {
			c[i] = e.Clone()
		}
		return c
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

func cloneItems(items []Item) []Item {
	c := make([]Item, len(items))
	for i, it := range items {
		c[i] = it.Clone()
	}
	return c
}
