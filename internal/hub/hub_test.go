package hub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/internal/hub"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

type received struct {
	Type    hub.MessageType `json:"type"`
	Payload struct {
		Sport     string         `json:"sport"`
		Events    []models.Event `json:"events"`
		FetchedAt time.Time      `json:"fetched_at"`
		ClientID  string         `json:"client_id"`
	} `json:"payload"`
}

func startHub(t *testing.T, origins []string) (*hub.Hub, string, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(origins, zap.NewNop())
	go h.Run(ctx)

	srv := httptest.NewServer(h.ServeWS(ctx))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return h, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func snapshot(sport string) models.Snapshot {
	return models.Snapshot{
		SportKey:  sport,
		Timestamp: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Events: []models.Event{{
			EventID:  "evt-1",
			SportKey: sport,
			HomeTeam: "Kansas City Chiefs",
			AwayTeam: "Buffalo Bills",
		}},
	}
}

func TestHub_BroadcastsSnapshot(t *testing.T) {
	h, url, _ := startHub(t, nil)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.OnOddsUpdated(context.Background(), snapshot("americanfootball_nfl")))

	msg := readMessage(t, conn)
	assert.Equal(t, hub.MessageTypeOddsUpdated, msg.Type)
	assert.Equal(t, "americanfootball_nfl", msg.Payload.Sport)
	require.Len(t, msg.Payload.Events, 1)
	assert.Equal(t, "evt-1", msg.Payload.Events[0].EventID)
	assert.True(t, msg.Payload.FetchedAt.Equal(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)))
}

func TestHub_SubscriptionFiltersSports(t *testing.T) {
	h, url, _ := startHub(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(hub.ClientMessage{Type: hub.MessageTypeSubscribe, Sports: []string{"basketball_nba"}}))
	require.NoError(t, conn.WriteJSON(hub.ClientMessage{Type: hub.MessageTypeHeartbeat}))

	// heartbeat reply confirms the subscription was applied
	ack := readMessage(t, conn)
	require.Equal(t, hub.MessageTypeHeartbeat, ack.Type)
	assert.NotEmpty(t, ack.Payload.ClientID)

	require.NoError(t, h.OnOddsUpdated(context.Background(), snapshot("americanfootball_nfl")))
	require.NoError(t, h.OnOddsUpdated(context.Background(), snapshot("basketball_nba")))

	msg := readMessage(t, conn)
	assert.Equal(t, "basketball_nba", msg.Payload.Sport)
}

func TestHub_UnknownMessageType(t *testing.T) {
	h, url, _ := startHub(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))

	msg := readMessage(t, conn)
	assert.Equal(t, hub.MessageTypeError, msg.Type)
}

func TestHub_ClientDisconnect(t *testing.T) {
	h, url, _ := startHub(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h, url, cancel := startHub(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RejectsDisallowedOrigin(t *testing.T) {
	_, url, _ := startHub(t, []string{"https://pythia.example"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://pythia.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHub_OnOddsUpdatedWithoutClients(t *testing.T) {
	h := hub.NewHub(nil, zap.NewNop())
	assert.Equal(t, "live-hub", h.Name())
	assert.NoError(t, h.OnOddsUpdated(context.Background(), snapshot("americanfootball_nfl")))
	assert.Equal(t, 0, h.ClientCount())
}
