package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
	"github.com/drblury/faultline/transport/transporttest"
)

func TestResult_OK(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		result transport.Result
		ok     bool
	}{
		{name: "success", result: transport.Success("id"), ok: true},
		{name: "skipped", result: transport.Skipped("id"), ok: true},
		{name: "failed", result: transport.Failed("id", boom), ok: false},
		{name: "invalid", result: transport.Invalid("id", boom), ok: false},
		{name: "rate limited", result: transport.Result{Status: transport.StatusRateLimited}, ok: false},
		{name: "unknown", result: transport.Result{Status: transport.StatusUnknown}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.result.OK())
		})
	}
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "success(abc)", transport.Success("abc").String())
	assert.Equal(t, "failed(abc): boom", transport.Failed("abc", errors.New("boom")).String())
}

type plain struct{}

func (plain) Send(_ context.Context, evt *event.Event) transport.Result {
	return transport.Success(evt.ID())
}
func (plain) Close(context.Context) transport.Result { return transport.Success("") }

func TestFlush(t *testing.T) {
	rec := &transporttest.Recorder{}
	assert.True(t, transport.Flush(context.Background(), rec).OK())
	assert.Equal(t, 1, rec.Flushes())

	assert.Equal(t, transport.StatusSuccess, transport.Flush(context.Background(), plain{}).Status)
}
