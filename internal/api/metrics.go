package api

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics снимает метрики процесса для статусных эндпоинтов
type ServerMetrics struct {
	StartTime time.Time
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
	}
}

// Uptime возвращает время работы сервера в человекочитаемом виде
func (sm *ServerMetrics) Uptime() string {
	uptime := time.Since(sm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	} else if hours > 0 {
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}

// MemoryMB возвращает текущий размер кучи в мегабайтах
func (sm *ServerMetrics) MemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024
}

// ProcessCPU возвращает использование CPU процессом в процентах.
// Если метрика процесса недоступна, возвращается системная.
func (sm *ServerMetrics) ProcessCPU() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
		if err != nil || len(cpuPercents) == 0 {
			return 0, err
		}
		return cpuPercents[0], nil
	}

	return cpuPercent, nil
}

// SystemCPU возвращает общее использование CPU системы
func (sm *ServerMetrics) SystemCPU() (float64, error) {
	cpuPercents, err := cpu.Percent(time.Second, false)
	if err != nil || len(cpuPercents) == 0 {
		return 0, err
	}
	return cpuPercents[0], nil
}

// MemoryDetails возвращает детальную статистику памяти и GC
func (sm *ServerMetrics) MemoryDetails() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_mb":       float64(m.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(m.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(m.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(m.HeapAlloc) / 1024 / 1024,
		"heap_sys_mb":    float64(m.HeapSys) / 1024 / 1024,
		"num_gc":         m.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}
}

// Snapshot собирает сводку метрик для статусных ответов
func (sm *ServerMetrics) Snapshot() map[string]interface{} {
	memoryMB := sm.MemoryMB()
	cpuPercent, _ := sm.ProcessCPU()

	return map[string]interface{}{
		"uptime":      sm.Uptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"goroutines":  runtime.NumGoroutine(),
		"server_time": time.Now().Unix(),
	}
}

// gameMetrics — доменные счётчики REST-слоя поверх HTTP-метрик middleware:
// * voxcity_maps_generated_total{recipe} — counter
// * voxcity_map_generation_duration_seconds — histogram
// * voxcity_camera_config_updates_total — counter
type gameMetrics struct {
	mapsGenerated *prometheus.CounterVec
	generation    prometheus.Histogram
	cameraUpdates prometheus.Counter
}

// newGameMetrics регистрирует доменные метрики. Несколько серверов в
// одном процессе (тесты) переиспользуют уже зарегистрированные коллекторы.
func newGameMetrics(reg prometheus.Registerer) *gameMetrics {
	gm := &gameMetrics{
		mapsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxcity",
			Name:      "maps_generated_total",
			Help:      "Число карт, сгенерированных через REST, по рецептам.",
		}, []string{"recipe"}),
		generation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxcity",
			Name:      "map_generation_duration_seconds",
			Help:      "Длительность генерации карты рецептом.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		cameraUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxcity",
			Name:      "camera_config_updates_total",
			Help:      "Число применённых обновлений конфигурации камеры.",
		}),
	}
	gm.mapsGenerated = registerOrReuse(reg, gm.mapsGenerated).(*prometheus.CounterVec)
	gm.generation = registerOrReuse(reg, gm.generation).(prometheus.Histogram)
	gm.cameraUpdates = registerOrReuse(reg, gm.cameraUpdates).(prometheus.Counter)
	return gm
}

// registerOrReuse регистрирует коллектор либо возвращает уже
// зарегистрированный с теми же дескрипторами.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// observeGeneration фиксирует успешно сгенерированную и сохранённую карту
func (gm *gameMetrics) observeGeneration(recipe string, elapsed time.Duration) {
	gm.mapsGenerated.WithLabelValues(recipe).Inc()
	gm.generation.Observe(elapsed.Seconds())
}

// cameraUpdated фиксирует применённое обновление конфигурации камеры
func (gm *gameMetrics) cameraUpdated() {
	gm.cameraUpdates.Inc()
}
