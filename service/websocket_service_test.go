package service

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpariksha/pariksha-be/types"
)

type progressFrame struct {
	Type    string              `json:"type"`
	Payload types.ProgressEvent `json:"payload"`
}

func dialProgress(t *testing.T, svc *WebSocketService) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(svc.HandleProgress))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return svc.Subscribers() == 1 },
		time.Second, 10*time.Millisecond, "subscriber never registered")
	return conn
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	svc := NewWebSocketService(logger)
	defer svc.Close()

	conn := dialProgress(t, svc)

	svc.Broadcast(types.ProgressEvent{
		RunID:     "run-1",
		Paper:     "sample",
		Step:      types.StepMarksMapping,
		Status:    types.STEP_STATUS_COMPLETED,
		Timestamp: 1700000000,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame progressFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, types.TypeWebsocketProgress, frame.Type)
	assert.Equal(t, "run-1", frame.Payload.RunID)
	assert.Equal(t, types.StepMarksMapping, frame.Payload.Step)
	assert.Equal(t, types.STEP_STATUS_COMPLETED, frame.Payload.Status)
}

func TestPingGetsPong(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	svc := NewWebSocketService(logger)
	defer svc.Close()

	conn := dialProgress(t, svc)

	require.NoError(t, conn.WriteJSON(types.WebsocketMessage{Type: types.TypeWebsocketPing}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame progressFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, types.TypeWebsocketPong, frame.Type)
}

func TestCloseDropsSubscribers(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	svc := NewWebSocketService(logger)

	dialProgress(t, svc)

	svc.Close()
	assert.Zero(t, svc.Subscribers())
}
