package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-bulbs/internal/services/playback"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pubsub"
)

func dialWebSocket(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return env.pubsub.SubscriberCount(pubsub.TopicPatternRunUpdated) == 1
	}, waitTimeout, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocket_FiltersByDevice(t *testing.T) {
	env := newTestEnv(t, playback.PolicyReplace)
	conn := dialWebSocket(t, env, "?deviceId=10.0.0.7")

	env.pubsub.Publish(pubsub.TopicPatternRunUpdated, "10.0.0.8", &playback.RunStatus{RunID: "other", DeviceID: "10.0.0.8"})
	env.pubsub.Publish(pubsub.TopicPatternRunUpdated, "10.0.0.7", &playback.RunStatus{
		RunID:        "mine",
		DeviceID:     "10.0.0.7",
		State:        playback.StateRunning,
		CurrentColor: "#00FF00",
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "PATTERN_RUN_UPDATED", msg["type"])
	payload, ok := msg["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mine", payload["runId"])
	assert.Equal(t, "#00FF00", payload["currentColor"])
}

func TestWebSocket_ScheduleChanges(t *testing.T) {
	env := newTestEnv(t, playback.PolicyReplace)
	conn := dialWebSocket(t, env, "")

	require.Eventually(t, func() bool {
		return env.pubsub.SubscriberCount(pubsub.TopicSchedulesUpdated) == 1
	}, waitTimeout, 10*time.Millisecond)
	env.pubsub.PublishAll(pubsub.TopicSchedulesUpdated, struct{}{})

	msg := readMessage(t, conn)
	assert.Equal(t, "SCHEDULES_UPDATED", msg["type"])
}

func TestWebSocket_SendsActiveRunsOnConnect(t *testing.T) {
	env := newTestEnv(t, playback.PolicyReplace)

	w := env.do(t, "POST", "/api/patterns", redBlue)
	require.Equal(t, 202, w.Code)

	conn := dialWebSocket(t, env, "?deviceId=10.0.0.7")

	msg := readMessage(t, conn)
	assert.Equal(t, "PATTERN_RUN_UPDATED", msg["type"])
	payload, ok := msg["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.7", payload["deviceId"])
}

func TestWebSocket_UnsubscribesOnClose(t *testing.T) {
	env := newTestEnv(t, playback.PolicyReplace)
	conn := dialWebSocket(t, env, "")

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return env.pubsub.SubscriberCount(pubsub.TopicPatternRunUpdated) == 0
	}, waitTimeout, 10*time.Millisecond)
}
