package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/schoolbus/core"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())
	logger.Enable(false)

	errBoom := errors.New("boom")
	person := core.Person{ID: "1", Username: "op"}

	tests := []struct {
		name     string
		args     []interface{}
		wantArgs []interface{}
	}{
		{name: "no args", wantArgs: []interface{}{"msg"}},
		{name: "error", args: []interface{}{errBoom}, wantArgs: []interface{}{"msg", errBoom}},
		{
			name:     "person is not forwarded",
			args:     []interface{}{errBoom, person, core.Person{ID: "2"}},
			wantArgs: []interface{}{"msg", errBoom},
		},
		{name: "nil args are dropped", args: []interface{}{nil, "x"}, wantArgs: []interface{}{"msg", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantArgs, logger.prepare("msg", tt.args))
		})
	}

	logger.Warn("rolled back", errBoom)
	assert.Equal(t, "WARN: rolled back\nboom\n", buf.String())
}
