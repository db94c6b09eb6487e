package protocol

import (
	"encoding/json"
	"time"

	"github.com/annel0/voxcity/internal/camera"
)

// ===== Аутентификация =====

// AuthRequest представляет запрос на аутентификацию канала
type AuthRequest struct {
	Token string `json:"token"` // JWT, выданный REST-эндпоинтом /api/auth/login
}

// AuthResponse представляет ответ на запрос аутентификации
type AuthResponse struct {
	Success  bool   `json:"success"`
	PlayerID uint64 `json:"player_id,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ===== Ping/Pong =====

// PingPayload несёт клиентскую метку времени для замера RTT
type PingPayload struct {
	Time int64 `json:"time"` // UnixMilli клиента
}

// PongPayload возвращает клиентскую метку вместе с серверной
type PongPayload struct {
	Time       int64 `json:"time"`        // Эхо клиентской метки
	ServerTime int64 `json:"server_time"` // UnixMilli сервера
}

// ===== Ошибки =====

// Коды ошибок протокола
const (
	ErrCodeBadMessage   = 400
	ErrCodeUnauthorized = 401
	ErrCodeNotFound     = 404
	ErrCodeInternal     = 500
)

// ErrorPayload описывает ошибку обработки сообщения
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ===== Карты =====

// MapInfo описывает карту в списке без полного снапшота
type MapInfo struct {
	Name      string    `json:"name"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// MapListPayload представляет ответ на запрос списка карт
type MapListPayload struct {
	Maps []MapInfo `json:"maps"`
}

// MapSnapshotPayload несёт полный снапшот карты. Snapshot встраивает
// JSON-документ в формате snapshot.MapSnapshot; клиент разбирает его
// тем же декодером, что и файлы карт.
type MapSnapshotPayload struct {
	Name     string          `json:"name"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// MapDeletedPayload уведомляет об удалении карты
type MapDeletedPayload struct {
	Name string `json:"name"`
}

// ===== Камера =====

// ConfigUpdatePayload несёт новую конфигурацию камеры для применения на
// клиенте со следующего тика
type ConfigUpdatePayload struct {
	Camera camera.CameraConfig `json:"camera"`
}
