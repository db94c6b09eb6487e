package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/vec"
)

// testRigConfig — минимальные пороги, чтобы прогнать полный цикл за десяток тиков
func testRigConfig() CameraConfig {
	cfg := DefaultCameraConfig()
	cfg.SampleInterval = 1
	cfg.DebounceThreshold = 2
	cfg.SearchDelaySec = 0.1
	cfg.TicksPerStep = 1
	cfg.StepDegrees = 180
	cfg.Distance = 10
	cfg.DownAngleDeg = 0
	cfg.Smoothing = 1.0
	return cfg
}

func TestRig_FullCycle(t *testing.T) {
	q := &flagQuery{visible: true}
	rig := NewRig(testRigConfig(), q.query)
	target := vec.Vec3Float{X: 30, Y: 30, Z: 2}

	// Слежение: угол 0, камера на +X от цели
	tr := rig.Tick(testDT, target)
	require.Equal(t, PhaseTracking, rig.Search.Phase())
	assert.InDelta(t, 40, tr.Position.X, placerDelta)
	assert.InDelta(t, 30, tr.Position.Y, placerDelta)

	// Потеря цели: 2 тика на дебаунс, затем ожидание и поиск
	q.visible = false
	rig.Tick(testDT, target)
	require.Equal(t, PhaseTracking, rig.Search.Phase(), "Один скрытый кадр дебаунс держит")
	rig.Tick(testDT, target)
	require.Equal(t, PhaseHiddenPending, rig.Search.Phase())
	rig.Tick(testDT, target)
	require.Equal(t, PhaseSearching, rig.Search.Phase())

	// Два шага по 180° закрывают оборот: камера замерзает на угле 0
	tr = rig.Tick(testDT, target)
	assert.InDelta(t, 20, tr.Position.X, placerDelta, "Шаг 180° уводит камеру на -X от цели")
	rig.Tick(testDT, target)
	require.Equal(t, PhaseFrozen, rig.Search.Phase())
	assert.Equal(t, 0.0, rig.Search.Angle())

	// Реаквизиция: 2 тика на дебаунс, затем слежение с сохранённым углом
	q.visible = true
	rig.Tick(testDT, target)
	require.Equal(t, PhaseFrozen, rig.Search.Phase())
	rig.Tick(testDT, target)
	assert.Equal(t, PhaseTracking, rig.Search.Phase())
	assert.Equal(t, 0.0, rig.Search.Angle())
}

func TestRig_SetConfigValidates(t *testing.T) {
	rig := NewRig(testRigConfig(), nil)

	bad := testRigConfig()
	bad.Distance = -5
	assert.Error(t, rig.SetConfig(bad), "Невалидная конфигурация должна отклоняться")

	good := testRigConfig()
	good.Distance = 25
	assert.NoError(t, rig.SetConfig(good))
}

func TestCameraConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultCameraConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*CameraConfig)
	}{
		{"нулевая дистанция", func(c *CameraConfig) { c.Distance = 0 }},
		{"наклон за пределами", func(c *CameraConfig) { c.DownAngleDeg = 120 }},
		{"нулевое сглаживание", func(c *CameraConfig) { c.Smoothing = 0 }},
		{"сглаживание больше единицы", func(c *CameraConfig) { c.Smoothing = 1.5 }},
		{"отрицательная задержка", func(c *CameraConfig) { c.SearchDelaySec = -1 }},
		{"нулевой шаг", func(c *CameraConfig) { c.StepDegrees = 0 }},
		{"шаг больше круга", func(c *CameraConfig) { c.StepDegrees = 400 }},
		{"нулевые тики на шаг", func(c *CameraConfig) { c.TicksPerStep = 0 }},
		{"нулевой интервал сэмплов", func(c *CameraConfig) { c.SampleInterval = 0 }},
		{"нулевой порог дебаунса", func(c *CameraConfig) { c.DebounceThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCameraConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
