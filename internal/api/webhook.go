package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol/events"
)

// webhookSource — имя источника для событий, пришедших извне
const webhookSource = "webhook"

// WebhookEvent представляет входящее webhook событие
type WebhookEvent struct {
	EventType string                 `json:"event_type"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source,omitempty"`
}

// WebhookConfig конфигурация входящих webhook'ов
type WebhookConfig struct {
	SecretKey        string
	RequireSignature bool
	EnableLogging    bool
}

// HandleWebhook принимает событие от внешней системы, проверяет подпись
// и пробрасывает его во внутреннюю шину. Тело читается целиком до
// разбора: подпись считается от исходных байт.
func (rs *RestServer) HandleWebhook(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Требуется Content-Type: application/json",
		})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Не удалось прочитать тело запроса",
		})
		return
	}

	if rs.webhookConfig.RequireSignature {
		signature := c.GetHeader("X-Webhook-Signature")
		if !rs.verifyWebhookSignature(body, signature) {
			logging.Warn("🔐 Webhook с неверной подписью от %s", c.ClientIP())
			c.JSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Неверная подпись webhook",
			})
			return
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат события: " + err.Error(),
		})
		return
	}
	if event.EventType == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Обязательное поле: event_type",
		})
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	if rs.webhookConfig.EnableLogging {
		logging.Info("📧 Webhook событие: %s от %s", event.EventType, c.ClientIP())
	}

	result := rs.processWebhookEvent(c, event)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook обработан",
		Data: map[string]interface{}{
			"event_id":     fmt.Sprintf("%d_%s", event.Timestamp, event.EventType),
			"processed_at": time.Now().Unix(),
			"result":       result,
		},
	})
}

// processWebhookEvent обрабатывает событие по области и пробрасывает
// его во внутреннюю шину. События неизвестных областей не публикуются.
func (rs *RestServer) processWebhookEvent(c *gin.Context, event WebhookEvent) map[string]interface{} {
	result := map[string]interface{}{
		"event_type": event.EventType,
		"status":     "processed",
	}

	switch events.AreaOf(event.EventType) {
	case events.EventTypeMap:
		result["details"] = rs.handleMapWebhook(event)
	case events.EventTypeSession:
		result["details"] = rs.handleSessionWebhook(event)
	case events.EventTypeSystem:
		result["details"] = rs.handleSystemWebhook(event)
	default:
		result["status"] = "unknown_event"
		result["details"] = "Неизвестная область события"
		return result
	}

	if err := eventbus.PublishEvent(c.Request.Context(), webhookSource, events.New(event.EventType, event.Data), 4); err != nil {
		logging.Warn("Не удалось опубликовать webhook событие %s: %v", event.EventType, err)
		result["status"] = "publish_failed"
	}

	return result
}

// handleMapWebhook обрабатывает внешние события карт
func (rs *RestServer) handleMapWebhook(event WebhookEvent) string {
	name, _ := event.Data["name"].(string)

	logging.Info("🔔 Внешнее событие карты: %s (%s)", event.EventType, name)
	return fmt.Sprintf("Событие карты %s принято", name)
}

// handleSessionWebhook обрабатывает внешние события игровых сессий
func (rs *RestServer) handleSessionWebhook(event WebhookEvent) string {
	sessionID, _ := event.Data["session_id"].(string)

	logging.Info("🎮 Внешнее событие сессии: %s (%s)", event.EventType, sessionID)
	return fmt.Sprintf("Событие сессии %s принято", sessionID)
}

// handleSystemWebhook обрабатывает системные оповещения
func (rs *RestServer) handleSystemWebhook(event WebhookEvent) string {
	level, _ := event.Data["level"].(string)
	message, _ := event.Data["message"].(string)

	switch level {
	case "critical", "error":
		logging.Warn("🚨 Системное оповещение [%s]: %s", level, message)
	default:
		logging.Info("ℹ️ Системное оповещение [%s]: %s", level, message)
	}
	return fmt.Sprintf("Обработано оповещение уровня %s", level)
}

// verifyWebhookSignature проверяет HMAC-подпись тела запроса.
// Требование подписи без настроенного ключа отклоняет все запросы:
// это ошибка конфигурации, которую нельзя молча пропускать.
func (rs *RestServer) verifyWebhookSignature(body []byte, signature string) bool {
	if rs.webhookConfig.SecretKey == "" {
		return false
	}

	expected := webhookSignature(body, rs.webhookConfig.SecretKey)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// webhookSignature считает подпись тела в формате "sha256=<hex>".
// Тот же формат используется для исходящих webhook'ов.
func webhookSignature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
