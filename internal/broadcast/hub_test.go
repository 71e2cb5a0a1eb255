package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/cadran/internal/models"
)

func setupHub(t *testing.T, lots []models.Lot) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(func() []models.Lot { return lots }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_InitialSnapshot(t *testing.T) {
	lots := []models.Lot{
		{ID: "lot1", Product: "Arachide", CurrentPrice: 350, Status: models.StatusActive},
		{ID: "lot2", Product: "Mil", CurrentPrice: 220, Status: models.StatusInactive},
	}
	hub, conn := setupHub(t, lots)

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Type)
	require.Len(t, msg.Lots, 2)
	assert.Equal(t, "lot1", msg.Lots[0].ID)
	assert.Equal(t, 1, hub.Clients())
}

func TestHub_HandleLotEvent(t *testing.T) {
	hub, conn := setupHub(t, nil)
	readMessage(t, conn)

	ev := models.LotEvent{
		Kind:    models.EventTicked,
		Lot:     models.Lot{ID: "lot1", CurrentPrice: 349, TimeRemaining: 179, Status: models.StatusActive},
		Version: 3,
	}
	require.NoError(t, hub.HandleLotEvent(context.Background(), ev))

	msg := readMessage(t, conn)
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, models.EventTicked, msg.Event.Kind)
	assert.Equal(t, 349, msg.Event.Lot.CurrentPrice)
	assert.Equal(t, int64(3), msg.Event.Version)
}

func TestHub_DropsClosedClients(t *testing.T) {
	hub, conn := setupHub(t, nil)
	readMessage(t, conn)
	require.Equal(t, 1, hub.Clients())

	conn.Close()
	assert.Eventually(t, func() bool {
		return hub.Clients() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Run(t *testing.T) {
	hub, conn := setupHub(t, []models.Lot{{ID: "lot1"}})
	readMessage(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, 20*time.Millisecond)

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Type)
	require.Len(t, msg.Lots, 1)
}
