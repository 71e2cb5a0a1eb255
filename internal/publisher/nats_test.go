package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/cadran/internal/models"
)

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestNATSPublisher_HandleLotEvent(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "lots")

	ev := models.LotEvent{
		Kind:    models.EventSold,
		Version: 7,
		Lot: models.Lot{
			ID:           "lot1",
			CurrentPrice: 320,
			Status:       models.StatusSold,
			Winner:       "10.0.0.7",
		},
	}
	require.NoError(t, p.HandleLotEvent(context.Background(), ev))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "lots.lot1", msg.Subject)
	assert.Equal(t, "sold", msg.Header.Get("Lot-Event"))
	assert.Equal(t, "7", msg.Header.Get("Lot-Version"))
	assert.Equal(t, "lot1-7", msg.Header.Get(nats.MsgIdHdr))

	var got models.LotEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, models.StatusSold, got.Lot.Status)
	assert.Equal(t, "10.0.0.7", got.Lot.Winner)
	assert.Equal(t, 320, got.Lot.CurrentPrice)
}

func TestNATSPublisher_Subject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		lotID  string
		want   string
	}{
		{"Default", "lots", "abc", "lots.abc"},
		{"Nested", "cadran.lots", "abc", "cadran.lots.abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(&fakeConn{}, tt.prefix).Subject(tt.lotID))
		})
	}
}

func TestNATSPublisher_PublishError(t *testing.T) {
	boom := errors.New("connection closed")
	p := New(&fakeConn{err: boom}, "lots")

	err := p.HandleLotEvent(context.Background(), models.LotEvent{Lot: models.Lot{ID: "lot1"}})
	assert.ErrorIs(t, err, boom)
}
