package camera

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/vec"
)

// flagQuery — управляемый запрос видимости для тестов
type flagQuery struct {
	visible bool
	err     error
	calls   int
}

func (q *flagQuery) query(target vec.Vec3Float) (bool, error) {
	q.calls++
	return q.visible, q.err
}

func testTrackerConfig(interval, threshold int) CameraConfig {
	cfg := DefaultCameraConfig()
	cfg.SampleInterval = interval
	cfg.DebounceThreshold = threshold
	return cfg
}

func TestVisibilityTracker_StartsVisible(t *testing.T) {
	q := &flagQuery{visible: true}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(1, 5))

	assert.True(t, tracker.Visible(), "Трекер должен стартовать в состоянии «видима»")
	assert.True(t, tracker.RawVisible())
}

func TestVisibilityTracker_HysteresisThreshold(t *testing.T) {
	q := &flagQuery{visible: true}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(1, 5))
	target := vec.Vec3Float{X: 5, Y: 5, Z: 1}

	for i := 0; i < 3; i++ {
		tracker.Update(target)
	}
	require.True(t, tracker.Visible())

	// 4 подряд скрытых кадра порог не пробивают
	q.visible = false
	for i := 0; i < 4; i++ {
		tracker.Update(target)
		assert.True(t, tracker.Visible(), "После %d скрытых кадров флаг ещё не должен перевернуться", i+1)
	}

	// 5-й переворачивает
	tracker.Update(target)
	assert.False(t, tracker.Visible(), "5-й скрытый кадр должен перевернуть флаг")

	// Обратно так же: 4 видимых держат, 5-й возвращает
	q.visible = true
	for i := 0; i < 4; i++ {
		tracker.Update(target)
		assert.False(t, tracker.Visible(), "После %d видимых кадров флаг ещё не должен вернуться", i+1)
	}
	tracker.Update(target)
	assert.True(t, tracker.Visible(), "5-й видимый кадр должен вернуть флаг")
}

func TestVisibilityTracker_ExactlyOneCounterNonzero(t *testing.T) {
	q := &flagQuery{visible: true}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(1, 3))
	target := vec.Vec3Float{}

	pattern := []bool{true, true, false, false, false, true, false, true, true}
	for i, v := range pattern {
		q.visible = v
		tracker.Update(target)

		visZero := tracker.consecutiveVisible == 0
		hidZero := tracker.consecutiveHidden == 0
		assert.NotEqual(t, visZero, hidZero,
			"Тик %d: ровно один счётчик должен быть ненулевым (visible=%d hidden=%d)",
			i, tracker.consecutiveVisible, tracker.consecutiveHidden)
	}
}

func TestVisibilityTracker_SampleIntervalHoldsValue(t *testing.T) {
	q := &flagQuery{visible: false}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(3, 2))
	target := vec.Vec3Float{}

	// Первый тик сэмплирует «скрыта», второй тик без сэмпла держит
	// значение и добивает счётчик до порога
	tracker.Update(target)
	assert.True(t, tracker.Visible())
	tracker.Update(target)
	assert.False(t, tracker.Visible(), "Удержанное значение должно накапливать счётчик между сэмплами")

	for i := 0; i < 5; i++ {
		tracker.Update(target)
	}
	assert.Equal(t, 3, q.calls, "За 7 тиков при интервале 3 должно быть ровно 3 сэмпла")
}

func TestVisibilityTracker_FailOpenNilQuery(t *testing.T) {
	tracker := NewVisibilityTracker(nil, testTrackerConfig(1, 2))
	target := vec.Vec3Float{}

	for i := 0; i < 10; i++ {
		tracker.Update(target)
		assert.True(t, tracker.Visible(), "Без запроса трекер должен считать цель видимой")
	}
}

func TestVisibilityTracker_FailOpenOnError(t *testing.T) {
	q := &flagQuery{visible: false}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(1, 3))
	target := vec.Vec3Float{}

	for i := 0; i < 3; i++ {
		tracker.Update(target)
	}
	require.False(t, tracker.Visible())

	// Сбойный запрос трактуется как «видима» и выводит трекер из скрытости
	q.err = errors.New("occlusion query timeout")
	for i := 0; i < 3; i++ {
		tracker.Update(target)
	}
	assert.True(t, tracker.Visible(), "Ошибка запроса должна вести себя как видимость")
	assert.True(t, tracker.RawVisible())
}

func TestVisibilityTracker_Reset(t *testing.T) {
	q := &flagQuery{visible: false}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(1, 2))
	target := vec.Vec3Float{}

	for i := 0; i < 4; i++ {
		tracker.Update(target)
	}
	require.False(t, tracker.Visible())

	tracker.Reset()
	assert.True(t, tracker.Visible())
	assert.True(t, tracker.RawVisible())
	assert.Equal(t, 0, tracker.consecutiveVisible)
	assert.Equal(t, 0, tracker.consecutiveHidden)
}

func TestVisibilityTracker_SetConfigKeepsCounters(t *testing.T) {
	q := &flagQuery{visible: false}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(1, 10))
	target := vec.Vec3Float{}

	for i := 0; i < 4; i++ {
		tracker.Update(target)
	}
	require.True(t, tracker.Visible())

	// Понижение порога до уже накопленного срабатывает на следующем тике
	tracker.SetConfig(testTrackerConfig(1, 5))
	tracker.Update(target)
	assert.False(t, tracker.Visible())
}

// Benchmarks

func BenchmarkVisibilityTracker_Update(b *testing.B) {
	q := &flagQuery{visible: true}
	tracker := NewVisibilityTracker(q.query, testTrackerConfig(3, 5))
	target := vec.Vec3Float{X: 30, Y: 30, Z: 2}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.visible = i%7 != 0
		tracker.Update(target)
	}
}
