package null

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
	"github.com/drblury/faultline/transport/transporttest"
)

func TestRegister(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.NullCapabilities, Capabilities())
}

func TestSendSkips(t *testing.T) {
	tr, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)

	evt := event.New()
	res := tr.Send(context.Background(), evt)
	assert.Equal(t, transport.StatusSkipped, res.Status)
	assert.Equal(t, evt.ID(), res.EventID)
	assert.True(t, res.OK())

	assert.Equal(t, transport.StatusSkipped, tr.Send(context.Background(), nil).Status)
	assert.True(t, tr.Close(context.Background()).OK())
}
