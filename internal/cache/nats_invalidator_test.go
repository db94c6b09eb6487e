package cache

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestDedupe_SuppressesWithinWindow(t *testing.T) {
	d := newDedupe(50 * time.Millisecond)

	require.False(t, d.isDuplicate("map:demo"), "Новый ключ не должен считаться дублем")

	d.record("map:demo")
	require.True(t, d.isDuplicate("map:demo"), "Записанный ключ обязан считаться дублем внутри окна")

	require.Eventually(t, func() bool {
		return !d.isDuplicate("map:demo")
	}, 2*time.Second, 10*time.Millisecond, "После окна ключ обязан пропускаться снова")
}

func TestDedupe_CleanupKeepsFresh(t *testing.T) {
	d := newDedupe(time.Minute)

	d.record("fresh")
	d.mu.Lock()
	d.seen["stale"] = time.Now().Add(-2 * time.Minute)
	d.mu.Unlock()

	remaining := d.cleanup()
	require.Equal(t, 1, remaining, "Уборка обязана оставить только свежие ключи")
	require.True(t, d.isDuplicate("fresh"))
	require.False(t, d.isDuplicate("stale"))
}

// offlineInvalidator собирает NATSInvalidator без соединения:
// handleInvalidationMessage не трогает conn, поэтому логику доставки
// можно проверить без запущенного сервера.
func offlineInvalidator(nodeID string) *NATSInvalidator {
	return &NATSInvalidator{
		config: &InvalidatorConfig{DedupeWindow: time.Second},
		nodeID: nodeID,
		recent: newDedupe(time.Second),
	}
}

func invalidationPayload(t *testing.T, key, nodeID string) []byte {
	t.Helper()
	data, err := json.Marshal(InvalidationMessage{
		Key:       key,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	})
	require.NoError(t, err)
	return data
}

func TestInvalidator_HandlesForeignMessage(t *testing.T) {
	inv := offlineInvalidator("node-a")

	var got []string
	inv.handler = func(key string) error {
		got = append(got, key)
		return nil
	}

	inv.handleInvalidationMessage(&nats.Msg{Data: invalidationPayload(t, "map:demo", "node-b")})

	require.Equal(t, []string{"map:demo"}, got, "Чужое уведомление обязано дойти до обработчика")
	require.Equal(t, int64(1), atomic.LoadInt64(&inv.receivedCount))
}

func TestInvalidator_IgnoresOwnMessage(t *testing.T) {
	inv := offlineInvalidator("node-a")

	called := false
	inv.handler = func(key string) error {
		called = true
		return nil
	}

	inv.handleInvalidationMessage(&nats.Msg{Data: invalidationPayload(t, "map:demo", "node-a")})

	require.False(t, called, "Собственное уведомление не должно вызывать обработчик")
}

func TestInvalidator_SuppressesDuplicateDelivery(t *testing.T) {
	inv := offlineInvalidator("node-a")

	calls := 0
	inv.handler = func(key string) error {
		calls++
		return nil
	}

	payload := invalidationPayload(t, "map:demo", "node-b")
	inv.handleInvalidationMessage(&nats.Msg{Data: payload})
	inv.handleInvalidationMessage(&nats.Msg{Data: payload})

	require.Equal(t, 1, calls, "Повтор внутри окна дедупликации обязан подавляться")
}

func TestInvalidator_CountsMalformedMessages(t *testing.T) {
	inv := offlineInvalidator("node-a")

	inv.handleInvalidationMessage(&nats.Msg{Data: []byte("{битый json")})

	require.Equal(t, int64(1), atomic.LoadInt64(&inv.errorsCount))
	require.Equal(t, int64(1), atomic.LoadInt64(&inv.receivedCount))
}
