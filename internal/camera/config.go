// Package camera реализует логику камеры: трекер экранной видимости цели
// с дебаунсом, конечный автомат орбитального поиска и размещение камеры
// по сферическим координатам со сглаживанием. Весь пакет — чистая логика,
// работает синхронно раз в тик; рендер поставляет только запрос видимости.
package camera

import "fmt"

// CameraConfig — явное значение конфигурации камеры. Горячая перезагрузка —
// забота вызывающего: он вливает новое значение через SetConfig, ядро само
// ни к какому сетевому слою не обращается.
type CameraConfig struct {
	DownAngleDeg      float64 `json:"downAngleDeg" yaml:"down_angle_deg"`
	Distance          float64 `json:"distance" yaml:"distance"`
	SearchDelaySec    float64 `json:"searchDelaySec" yaml:"search_delay_sec"`
	Smoothing         float64 `json:"smoothing" yaml:"smoothing"`
	StepDegrees       float64 `json:"stepDegrees" yaml:"step_degrees"`
	TicksPerStep      int     `json:"ticksPerStep" yaml:"ticks_per_step"`
	SampleInterval    int     `json:"sampleInterval" yaml:"sample_interval"`
	DebounceThreshold int     `json:"debounceThreshold" yaml:"debounce_threshold"`
}

// DefaultCameraConfig возвращает конфигурацию по умолчанию
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		DownAngleDeg:      55,
		Distance:          14,
		SearchDelaySec:    1.5,
		Smoothing:         0.12,
		StepDegrees:       90,
		TicksPerStep:      30,
		SampleInterval:    3,
		DebounceThreshold: 5,
	}
}

// Validate проверяет значение конфигурации перед применением
func (c CameraConfig) Validate() error {
	if c.Distance <= 0 {
		return fmt.Errorf("distance должна быть положительной, получено %.2f", c.Distance)
	}
	if c.DownAngleDeg < 0 || c.DownAngleDeg > 90 {
		return fmt.Errorf("down_angle_deg должен быть в [0,90], получено %.2f", c.DownAngleDeg)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing должен быть в (0,1], получено %.3f", c.Smoothing)
	}
	if c.SearchDelaySec < 0 {
		return fmt.Errorf("search_delay_sec не может быть отрицательной, получено %.2f", c.SearchDelaySec)
	}
	if c.StepDegrees <= 0 || c.StepDegrees > 360 {
		return fmt.Errorf("step_degrees должен быть в (0,360], получено %.1f", c.StepDegrees)
	}
	if c.TicksPerStep < 1 {
		return fmt.Errorf("ticks_per_step должен быть не меньше 1, получено %d", c.TicksPerStep)
	}
	if c.SampleInterval < 1 {
		return fmt.Errorf("sample_interval должен быть не меньше 1, получено %d", c.SampleInterval)
	}
	if c.DebounceThreshold < 1 {
		return fmt.Errorf("debounce_threshold должен быть не меньше 1, получено %d", c.DebounceThreshold)
	}
	return nil
}
