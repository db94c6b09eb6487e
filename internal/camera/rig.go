package camera

import (
	"github.com/annel0/voxcity/internal/vec"
)

// Rig связывает трекер видимости, орбитальный поиск и размещение в один
// покадровый конвейер. Хост вызывает Tick раз в тик и забирает готовую
// трансформацию; никаких коллбеков, только опрос.
type Rig struct {
	Tracker *VisibilityTracker
	Search  *OrbitSearchController
	Placer  *CameraPlacer
}

// NewRig собирает камеру целиком из одной конфигурации
func NewRig(cfg CameraConfig, query VisibilityQuery) *Rig {
	return &Rig{
		Tracker: NewVisibilityTracker(query, cfg),
		Search:  NewOrbitSearchController(cfg),
		Placer:  NewCameraPlacer(cfg),
	}
}

// Tick продвигает все три подсистемы на один тик и возвращает трансформацию
func (r *Rig) Tick(dt float64, target vec.Vec3Float) CameraTransform {
	r.Tracker.Update(target)
	r.Search.Update(dt, r.Tracker.Visible())
	return r.Placer.Place(target, r.Search.Angle())
}

// SetConfig вливает новое значение конфигурации во все подсистемы
func (r *Rig) SetConfig(cfg CameraConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.Tracker.SetConfig(cfg)
	r.Search.SetConfig(cfg)
	r.Placer.SetConfig(cfg)
	return nil
}
