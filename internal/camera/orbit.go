package camera

import (
	"math"

	"github.com/annel0/voxcity/internal/logging"
)

// SearchPhase идентифицирует текущую фазу орбитального поиска для опроса извне
type SearchPhase int

const (
	PhaseTracking SearchPhase = iota
	PhaseHiddenPending
	PhaseSearching
	PhaseFrozen
)

// String возвращает имя фазы
func (p SearchPhase) String() string {
	switch p {
	case PhaseTracking:
		return "tracking"
	case PhaseHiddenPending:
		return "hidden_pending"
	case PhaseSearching:
		return "searching"
	case PhaseFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// searchState — состояние конечного автомата орбитального поиска
type searchState interface {
	// Enter вызывается при входе в состояние
	Enter(c *OrbitSearchController)
	// Update обновляет состояние и возвращает следующее (или себя)
	Update(c *OrbitSearchController, dt float64) searchState
	// Exit вызывается при выходе из состояния
	Exit(c *OrbitSearchController)
	// Phase возвращает фазу, которую представляет состояние
	Phase() SearchPhase
}

// OrbitSearchController управляет углом орбиты камеры. Пока цель видима,
// угол не трогается. После потери цели и выдержки SearchDelaySec контроллер
// начинает дискретный обход по кругу; полный оборот без реаквизиции
// замораживает угол. Возврат видимости из любой фазы мгновенно возвращает
// слежение, текущий угол при этом сохраняется.
type OrbitSearchController struct {
	cfg     CameraConfig
	angle   float64 // градусы, [0,360)
	visible bool    // дебаунс-видимость, переданная в последний Update
	current searchState
}

// NewOrbitSearchController создаёт контроллер в фазе слежения с углом 0°
func NewOrbitSearchController(cfg CameraConfig) *OrbitSearchController {
	c := &OrbitSearchController{cfg: cfg}
	c.current = &trackingState{}
	c.current.Enter(c)
	return c
}

// Update продвигает автомат на один тик. visible — дебаунсированная
// видимость цели от VisibilityTracker.
func (c *OrbitSearchController) Update(dt float64, visible bool) {
	c.visible = visible

	next := c.current.Update(c, dt)
	if next != c.current {
		c.current.Exit(c)
		c.current = next
		c.current.Enter(c)
	}
}

// Phase возвращает текущую фазу поиска
func (c *OrbitSearchController) Phase() SearchPhase {
	return c.current.Phase()
}

// Angle возвращает текущий угол орбиты в градусах, [0,360)
func (c *OrbitSearchController) Angle() float64 {
	return c.angle
}

// SetAngle выставляет угол орбиты напрямую (ручное вращение игроком)
func (c *OrbitSearchController) SetAngle(deg float64) {
	c.angle = normalizeAngle(deg)
}

// SetConfig применяет новую конфигурацию со следующего тика
func (c *OrbitSearchController) SetConfig(cfg CameraConfig) {
	c.cfg = cfg
}

// normalizeAngle приводит угол к диапазону [0,360)
func normalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// --- Состояния ---

// trackingState — цель видима, угол орбиты не меняется
type trackingState struct{}

func (s *trackingState) Enter(c *OrbitSearchController) {}

func (s *trackingState) Update(c *OrbitSearchController, dt float64) searchState {
	if !c.visible {
		return &hiddenPendingState{}
	}
	return s
}

func (s *trackingState) Exit(c *OrbitSearchController) {}

func (s *trackingState) Phase() SearchPhase { return PhaseTracking }

// hiddenPendingState — цель скрыта, копим длительность до старта поиска
type hiddenPendingState struct {
	hiddenFor float64
}

func (s *hiddenPendingState) Enter(c *OrbitSearchController) {
	s.hiddenFor = 0
}

func (s *hiddenPendingState) Update(c *OrbitSearchController, dt float64) searchState {
	if c.visible {
		return &trackingState{}
	}

	s.hiddenFor += dt
	if s.hiddenFor >= c.cfg.SearchDelaySec {
		return &searchingState{}
	}
	return s
}

func (s *hiddenPendingState) Exit(c *OrbitSearchController) {}

func (s *hiddenPendingState) Phase() SearchPhase { return PhaseHiddenPending }

// searchingState — дискретный обход орбиты фиксированными шагами
type searchingState struct {
	startAngle float64 // угол на момент начала обхода
	rotated    float64 // суммарный поворот с начала обхода, градусы
	tickCount  int     // тиков с последнего шага
}

func (s *searchingState) Enter(c *OrbitSearchController) {
	s.startAngle = c.angle
	s.rotated = 0
	s.tickCount = 0
	logging.Debug("📷 Камера: орбитальный поиск с угла %.1f°", s.startAngle)
}

func (s *searchingState) Update(c *OrbitSearchController, dt float64) searchState {
	if c.visible {
		return &trackingState{}
	}

	s.tickCount++
	if s.tickCount >= c.cfg.TicksPerStep {
		s.tickCount = 0
		c.angle = normalizeAngle(c.angle + c.cfg.StepDegrees)
		s.rotated += c.cfg.StepDegrees
		if s.rotated >= 360 {
			return &frozenState{}
		}
	}
	return s
}

func (s *searchingState) Exit(c *OrbitSearchController) {}

func (s *searchingState) Phase() SearchPhase { return PhaseSearching }

// frozenState — полный оборот не нашёл цель, угол заморожен до реаквизиции
type frozenState struct{}

func (s *frozenState) Enter(c *OrbitSearchController) {
	logging.Debug("📷 Камера: полный оборот без цели, угол заморожен на %.1f°", c.angle)
}

func (s *frozenState) Update(c *OrbitSearchController, dt float64) searchState {
	if c.visible {
		return &trackingState{}
	}
	return s
}

func (s *frozenState) Exit(c *OrbitSearchController) {}

func (s *frozenState) Phase() SearchPhase { return PhaseFrozen }
