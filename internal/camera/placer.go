package camera

import (
	"math"

	"github.com/annel0/voxcity/internal/vec"
)

// CameraTransform — готовая трансформация камеры на тик. Хост отдаёт её
// рендеру как есть, ось Z смотрит вверх.
type CameraTransform struct {
	Position vec.Vec3Float
	LookAt   vec.Vec3Float
	Up       vec.Vec3Float
}

// CameraPlacer переводит (угол орбиты, угол наклона, дистанцию) в позицию
// камеры и экспоненциально сглаживает её между тиками. Смена дистанции или
// наклона в конфигурации применяется мгновенно: один тик со сглаживанием 1.0.
type CameraPlacer struct {
	cfg         CameraConfig
	pos         vec.Vec3Float
	initialized bool
	snapNext    bool
}

// NewCameraPlacer создаёт размещатель; первая Place всегда снапается
func NewCameraPlacer(cfg CameraConfig) *CameraPlacer {
	return &CameraPlacer{cfg: cfg}
}

// SetConfig применяет новую конфигурацию. Изменение Distance или
// DownAngleDeg помечает следующий тик как мгновенный.
func (p *CameraPlacer) SetConfig(cfg CameraConfig) {
	if cfg.Distance != p.cfg.Distance || cfg.DownAngleDeg != p.cfg.DownAngleDeg {
		p.snapNext = true
	}
	p.cfg = cfg
}

// Place вычисляет трансформацию камеры для цели и угла орбиты.
// Сферические координаты: горизонтальный радиус = Distance*cos(наклон),
// высота = Distance*sin(наклон), камера = цель + (r*cosθ, r*sinθ, h).
func (p *CameraPlacer) Place(target vec.Vec3Float, orbitAngleDeg float64) CameraTransform {
	down := p.cfg.DownAngleDeg * math.Pi / 180
	theta := orbitAngleDeg * math.Pi / 180

	r := p.cfg.Distance * math.Cos(down)
	h := p.cfg.Distance * math.Sin(down)

	desired := vec.Vec3Float{
		X: target.X + r*math.Cos(theta),
		Y: target.Y + r*math.Sin(theta),
		Z: target.Z + h,
	}

	factor := p.cfg.Smoothing
	if p.snapNext || !p.initialized {
		factor = 1.0
		p.snapNext = false
		p.initialized = true
	}

	// pos += (desired - pos) * factor
	p.pos = p.pos.Add(desired.Sub(p.pos).Mul(factor))

	return CameraTransform{
		Position: p.pos,
		LookAt:   target,
		Up:       vec.Vec3Float{X: 0, Y: 0, Z: 1},
	}
}

// Position возвращает текущую сглаженную позицию камеры
func (p *CameraPlacer) Position() vec.Vec3Float {
	return p.pos
}
