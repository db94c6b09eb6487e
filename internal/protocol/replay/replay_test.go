package replay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/journal"
	"github.com/annel0/voxcity/internal/protocol/events"
)

// seedJournal наполняет хранилище журналом из трёх событий с интервалом 10мс
func seedJournal(t *testing.T) journal.BatchStore {
	t.Helper()

	store := journal.NewMemoryBatchStore()
	j := journal.NewJournal(store, nil, 100, time.Hour)

	base := time.Now().Add(-time.Minute)
	names := []string{events.MapGenerated, events.MapSaved, events.HostageRescued}
	for i, name := range names {
		j.Add(journal.Record{
			ID:        name,
			Timestamp: base.Add(time.Duration(i) * 10 * time.Millisecond),
			Source:    "test",
			Name:      name,
			Payload:   json.RawMessage(`{"name":"demo"}`),
		})
	}
	j.Flush()
	j.Stop()
	return store
}

func collectReplayed(t *testing.T, bus eventbus.EventBus) (*sync.Mutex, *[]*eventbus.Envelope) {
	t.Helper()

	var mu sync.Mutex
	var got []*eventbus.Envelope
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Sources: []string{"replay"}},
		func(_ context.Context, env *eventbus.Envelope) {
			mu.Lock()
			got = append(got, env)
			mu.Unlock()
		})
	require.NoError(t, err, "Подписка на переигранные события должна удаваться")
	return &mu, &got
}

func TestPlayer_ReplaysAllRecords(t *testing.T) {
	store := seedJournal(t)
	bus := eventbus.NewMemoryBus(16)
	mu, got := collectReplayed(t, bus)

	player := NewPlayer(journal.NewReader(store, nil), bus)
	session, err := player.Play(context.Background(), ReplayFilter{}, 100)
	require.NoError(t, err)

	assert.Equal(t, 3, session.Replayed, "Все записи журнала должны быть переиграны")
	assert.NotEmpty(t, session.ID)
	assert.False(t, session.EndTime.Before(session.StartTime), "Сессия должна закрываться корректным временем")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*got) == 3
	}, 2*time.Second, 10*time.Millisecond, "Шина должна доставить все переигранные события")

	mu.Lock()
	defer mu.Unlock()
	first := (*got)[0]
	assert.Equal(t, "replay", first.Source, "Источник переигранного конверта должен быть replay")
	assert.Equal(t, session.ID, first.CorrelationID, "Конверты должны связываться идентификатором сессии")
	assert.Equal(t, "test", first.Metadata["original_source"], "Исходный источник должен сохраниться в метаданных")
}

func TestPlayer_FilterByArea(t *testing.T) {
	store := seedJournal(t)
	bus := eventbus.NewMemoryBus(16)
	mu, got := collectReplayed(t, bus)

	player := NewPlayer(journal.NewReader(store, nil), bus)
	session, err := player.Play(context.Background(), ReplayFilter{
		EventTypes: []events.EventType{events.EventTypeMap},
	}, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, session.Replayed, "Фильтр по области map должен отсечь событие entity")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, env := range *got {
		assert.Equal(t, events.EventTypeMap, events.AreaOf(env.EventType))
	}
}

func TestPlayer_FilterByName(t *testing.T) {
	store := seedJournal(t)
	bus := eventbus.NewMemoryBus(16)

	player := NewPlayer(journal.NewReader(store, nil), bus)
	session, err := player.Play(context.Background(), ReplayFilter{
		Names: []string{events.HostageRescued},
	}, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, session.Replayed, "Фильтр по имени должен оставить одно событие")
}

func TestPlayer_CancelledContext(t *testing.T) {
	store := seedJournal(t)
	bus := eventbus.NewMemoryBus(16)

	player := NewPlayer(journal.NewReader(store, nil), bus)

	// Скорость 0.001 растягивает паузы; отмена должна прервать воспроизведение
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	session, err := player.Play(ctx, ReplayFilter{}, 0.001)
	require.Error(t, err, "Отменённый контекст должен прервать воспроизведение")
	require.NotNil(t, session, "Сессия возвращается и при прерывании")
	assert.Less(t, session.Replayed, 3, "Часть записей должна остаться непереигранной")
}

func TestPlayer_DefaultSpeed(t *testing.T) {
	store := seedJournal(t)
	bus := eventbus.NewMemoryBus(16)

	player := NewPlayer(journal.NewReader(store, nil), bus)
	session, err := player.Play(context.Background(), ReplayFilter{Names: []string{events.MapSaved}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, session.Speed, "Нулевая скорость должна заменяться единицей")
}
