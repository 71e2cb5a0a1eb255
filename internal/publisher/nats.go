package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/xtrntr/cadran/internal/models"
)

// MsgPublisher is the part of *nats.Conn the publisher needs
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher forwards lot events to NATS, one subject per lot
type NATSPublisher struct {
	conn   MsgPublisher
	prefix string
}

// Connect dials natsURL and returns a publisher writing under prefix
func Connect(natsURL, prefix string) (*NATSPublisher, *nats.Conn, error) {
	conn, err := nats.Connect(natsURL, nats.Name("cadran"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return New(conn, prefix), conn, nil
}

// New creates a new NATS publisher
func New(conn MsgPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject events for lotID are published on
func (p *NATSPublisher) Subject(lotID string) string {
	return fmt.Sprintf("%s.%s", p.prefix, lotID)
}

// HandleLotEvent publishes ev as JSON. The kind and version travel as headers
// so consumers can filter without decoding the body.
func (p *NATSPublisher) HandleLotEvent(_ context.Context, ev models.LotEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal lot event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(ev.Lot.ID))
	msg.Data = data
	msg.Header.Set("Lot-Event", string(ev.Kind))
	msg.Header.Set("Lot-Version", strconv.FormatInt(ev.Version, 10))
	msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("%s-%d", ev.Lot.ID, ev.Version))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish lot event: %w", err)
	}
	return nil
}
