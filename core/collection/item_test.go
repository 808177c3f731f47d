package collection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItem_ID(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{name: "missing", item: Item{"name": "x"}, want: ""},
		{name: "string", item: Item{"id": "abc"}, want: "abc"},
		{name: "int", item: Item{"id": 12}, want: "12"},
		{name: "json float", item: Item{"id": float64(12)}, want: "12"},
		{name: "json number", item: Item{"id": json.Number("12")}, want: "12"},
		{name: "uint64", item: Item{"id": uint64(7)}, want: "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.ID(); got != tt.want {
				t.Errorf("ID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItem_Merge(t *testing.T) {
	orig := Item{"id": 1, "status": "Active", "tags": []interface{}{"a"}}
	merged := orig.Merge(Item{"status": "Inactive"})

	assert.Equal(t, Item{"id": 1, "status": "Inactive", "tags": []interface{}{"a"}}, merged)
	assert.Equal(t, "Active", orig.String("status"))

	merged["tags"].([]interface{})[0] = "b"
	assert.Equal(t, "a", orig["tags"].([]interface{})[0])

	assert.Equal(t, Item{"status": "x"}, Item(nil).Merge(Item{"status": "x"}))
}
