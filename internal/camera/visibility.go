package camera

import (
	"github.com/annel0/voxcity/internal/vec"
)

// VisibilityQuery отвечает, видна ли цель камере в текущем кадре.
// Реализацию поставляет рендер (raycast, occlusion query), ядро о ней
// ничего не знает. Ошибка трактуется как «видима» — потеря цели из-за
// сбойного запроса хуже лишнего тика слежения.
type VisibilityQuery func(target vec.Vec3Float) (bool, error)

// VisibilityTracker сглаживает шумный сигнал видимости. Сырой запрос
// дорогой, поэтому сэмплируется раз в SampleInterval тиков, между
// сэмплами держится последнее значение. Дебаунс переворачивает итоговый
// флаг только после DebounceThreshold подряд противоположных кадров.
type VisibilityTracker struct {
	query          VisibilityQuery
	sampleInterval int
	threshold      int

	tick               int
	rawVisible         bool
	consecutiveVisible int
	consecutiveHidden  int
	debouncedVisible   bool
}

// NewVisibilityTracker создаёт трекер. Стартовое состояние — «видима»:
// до первого сэмпла камере не с чего паниковать.
func NewVisibilityTracker(query VisibilityQuery, cfg CameraConfig) *VisibilityTracker {
	t := &VisibilityTracker{
		query:            query,
		rawVisible:       true,
		debouncedVisible: true,
	}
	t.applyConfig(cfg)
	return t
}

// Update продвигает трекер на один тик
func (t *VisibilityTracker) Update(target vec.Vec3Float) {
	if t.tick%t.sampleInterval == 0 {
		t.sample(target)
	}
	t.tick++

	// Счётчики считают кадры, а не сэмплы: между сэмплами удержанное
	// сырое значение продолжает накапливать свой счётчик. Ненулевым
	// всегда ровно один из двух.
	if t.rawVisible {
		t.consecutiveVisible++
		t.consecutiveHidden = 0
	} else {
		t.consecutiveHidden++
		t.consecutiveVisible = 0
	}

	if t.debouncedVisible && t.consecutiveHidden >= t.threshold {
		t.debouncedVisible = false
	} else if !t.debouncedVisible && t.consecutiveVisible >= t.threshold {
		t.debouncedVisible = true
	}
}

// sample выполняет сырой запрос видимости с fail-open на nil и ошибке
func (t *VisibilityTracker) sample(target vec.Vec3Float) {
	if t.query == nil {
		t.rawVisible = true
		return
	}
	visible, err := t.query(target)
	if err != nil {
		t.rawVisible = true
		return
	}
	t.rawVisible = visible
}

// Visible возвращает дебаунсированную видимость (опрашивается каждый тик)
func (t *VisibilityTracker) Visible() bool {
	return t.debouncedVisible
}

// RawVisible возвращает последнее сырое значение без дебаунса
func (t *VisibilityTracker) RawVisible() bool {
	return t.rawVisible
}

// SetConfig применяет новые параметры сэмплирования и дебаунса.
// Счётчики не сбрасываются: смена порога действует со следующего тика.
func (t *VisibilityTracker) SetConfig(cfg CameraConfig) {
	t.applyConfig(cfg)
}

// Reset возвращает трекер в стартовое состояние «видима»
func (t *VisibilityTracker) Reset() {
	t.tick = 0
	t.rawVisible = true
	t.debouncedVisible = true
	t.consecutiveVisible = 0
	t.consecutiveHidden = 0
}

func (t *VisibilityTracker) applyConfig(cfg CameraConfig) {
	t.sampleInterval = cfg.SampleInterval
	if t.sampleInterval < 1 {
		t.sampleInterval = 1
	}
	t.threshold = cfg.DebounceThreshold
	if t.threshold < 1 {
		t.threshold = 1
	}
}
