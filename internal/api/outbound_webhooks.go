package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol/events"
)

// OutboundWebhook представляет исходящий webhook
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // События, на которые подписан
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Таймаут в секундах
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent представляет событие для отправки
type OutboundWebhookEvent struct {
	EventType   string                 `json:"event_type"`
	Timestamp   int64                  `json:"timestamp"`
	ServerID    string                 `json:"server_id"`
	Data        map[string]interface{} `json:"data"`
	Source      string                 `json:"source"`
	Environment string                 `json:"environment"`
}

// OutboundWebhookManager рассылает события сервера внешним подписчикам.
// События приходят двумя путями: напрямую через SendEvent и с шины
// событий после AttachBus. Доставка идет из фонового воркера с
// повторами и подписью тела.
type OutboundWebhookManager struct {
	webhooks    map[uint64]*OutboundWebhook
	eventQueue  chan OutboundWebhookEvent
	mu          sync.RWMutex
	nextID      uint64
	httpClient  *http.Client
	serverID    string
	environment string
	sub         eventbus.Subscription
	quit        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewOutboundWebhookManager создает новый менеджер исходящих webhook'ов
func NewOutboundWebhookManager(serverID, environment string) *OutboundWebhookManager {
	manager := &OutboundWebhookManager{
		webhooks:    make(map[uint64]*OutboundWebhook),
		eventQueue:  make(chan OutboundWebhookEvent, 1000), // Буфер для событий
		nextID:      1,
		serverID:    serverID,
		environment: environment,
		quit:        make(chan struct{}),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	manager.wg.Add(1)
	go manager.eventWorker()

	return manager
}

// AttachBus подписывает менеджер на все события шины: каждое событие
// уходит webhook'ам, подписанным на его тип.
func (owm *OutboundWebhookManager) AttachBus(ctx context.Context, bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{}, owm.handleBusEvent)
	if err != nil {
		return fmt.Errorf("подписка webhook-менеджера на шину: %w", err)
	}
	owm.sub = sub
	return nil
}

// handleBusEvent превращает конверт шины в исходящее событие.
// Payload событий map.*/camera.* — голые структуры, поэтому данные
// разворачиваются в произвольную map.
func (owm *OutboundWebhookManager) handleBusEvent(_ context.Context, env *eventbus.Envelope) {
	data := make(map[string]interface{})
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &data); err != nil {
			data = map[string]interface{}{"raw": string(env.Payload)}
		}
	}

	owm.enqueue(OutboundWebhookEvent{
		EventType:   env.EventType,
		Timestamp:   env.Timestamp.Unix(),
		ServerID:    owm.serverID,
		Data:        data,
		Source:      env.Source,
		Environment: owm.environment,
	})
}

// AddWebhook добавляет новый webhook и возвращает его копию
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true

	if webhook.Timeout == 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount == 0 {
		webhook.RetryCount = 3
	}

	stored := webhook
	owm.webhooks[stored.ID] = &stored
	return &webhook
}

// GetWebhooks возвращает копии всех webhook'ов. Копии нужны, чтобы
// статистику доставки не читали без блокировки.
func (owm *OutboundWebhookManager) GetWebhooks() []*OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhooks := make([]*OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		copied := *webhook
		webhooks = append(webhooks, &copied)
	}
	return webhooks
}

// GetWebhook возвращает копию webhook'а по ID
func (owm *OutboundWebhookManager) GetWebhook(id uint64) *OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return nil
	}
	copied := *webhook
	return &copied
}

// UpdateWebhook обновляет webhook
func (owm *OutboundWebhookManager) UpdateWebhook(id uint64, updates OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return nil
	}

	if updates.Name != "" {
		webhook.Name = updates.Name
	}
	if updates.URL != "" {
		webhook.URL = updates.URL
	}
	if updates.Secret != "" {
		webhook.Secret = updates.Secret
	}
	if len(updates.Events) > 0 {
		webhook.Events = updates.Events
	}
	if updates.Timeout > 0 {
		webhook.Timeout = updates.Timeout
	}
	if updates.RetryCount > 0 {
		webhook.RetryCount = updates.RetryCount
	}
	webhook.Active = updates.Active

	copied := *webhook
	return &copied
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	_, exists := owm.webhooks[id]
	if !exists {
		return false
	}

	delete(owm.webhooks, id)
	return true
}

// SendEvent отправляет событие всем подписанным webhook'ам
func (owm *OutboundWebhookManager) SendEvent(eventType string, data map[string]interface{}) {
	owm.enqueue(OutboundWebhookEvent{
		EventType:   eventType,
		Timestamp:   time.Now().Unix(),
		ServerID:    owm.serverID,
		Data:        data,
		Source:      restSource,
		Environment: owm.environment,
	})
}

// enqueue кладет событие в очередь без блокировки: при переполнении
// событие теряется, доставка webhook'ов не должна тормозить сервер
func (owm *OutboundWebhookManager) enqueue(event OutboundWebhookEvent) {
	select {
	case owm.eventQueue <- event:
		logging.Debug("📤 Событие %s добавлено в очередь webhook'ов", event.EventType)
	default:
		logging.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", event.EventType)
	}
}

// eventWorker обрабатывает события из очереди до остановки менеджера
func (owm *OutboundWebhookManager) eventWorker() {
	defer owm.wg.Done()
	for {
		select {
		case event := <-owm.eventQueue:
			owm.processEvent(event)
		case <-owm.quit:
			return
		}
	}
}

// processEvent раздает одно событие всем подписанным webhook'ам
func (owm *OutboundWebhookManager) processEvent(event OutboundWebhookEvent) {
	owm.mu.RLock()
	webhooks := make([]*OutboundWebhook, 0)
	for _, webhook := range owm.webhooks {
		if webhook.Active && owm.isSubscribedToEvent(webhook, event.EventType) {
			webhooks = append(webhooks, webhook)
		}
	}
	owm.mu.RUnlock()

	for _, webhook := range webhooks {
		owm.wg.Add(1)
		go func(w *OutboundWebhook) {
			defer owm.wg.Done()
			owm.sendToWebhook(w, event)
		}(webhook)
	}
}

// isSubscribedToEvent проверяет, подписан ли webhook на событие
func (owm *OutboundWebhookManager) isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribedEvent := range webhook.Events {
		if subscribedEvent == eventType || subscribedEvent == "*" {
			return true
		}
	}
	return false
}

// sendToWebhook доставляет событие одному webhook'у с повторами.
// Тело запроса одноразовое, поэтому запрос собирается заново на
// каждую попытку.
func (owm *OutboundWebhookManager) sendToWebhook(webhook *OutboundWebhook, event OutboundWebhookEvent) {
	owm.mu.RLock()
	url := webhook.URL
	secret := webhook.Secret
	name := webhook.Name
	timeout := time.Duration(webhook.Timeout) * time.Second
	retries := webhook.RetryCount
	owm.mu.RUnlock()

	jsonData, err := json.Marshal(event)
	if err != nil {
		logging.Error("❌ Ошибка маршалинга события для webhook %s: %v", name, err)
		return
	}

	success := false
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-owm.quit:
				return
			}
		}

		status, err := owm.deliver(url, jsonData, event, secret, timeout)
		if err != nil {
			logging.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, retries+1, name, err)
			continue
		}

		if status >= 200 && status < 300 {
			success = true
			logging.Info("✅ Событие %s успешно отправлено в webhook %s", event.EventType, name)
			break
		}
		logging.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", name, status, attempt+1)
	}

	owm.mu.Lock()
	now := time.Now()
	webhook.LastUsed = &now
	if !success {
		webhook.FailureCount++
	}
	owm.mu.Unlock()
}

// deliver выполняет одну попытку доставки и возвращает HTTP-статус
func (owm *OutboundWebhookManager) deliver(url string, jsonData []byte, event OutboundWebhookEvent, secret string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "VoxCity-Server/1.0")
	req.Header.Set("X-Event-Type", event.EventType)
	req.Header.Set("X-Server-ID", event.ServerID)
	if secret != "" {
		req.Header.Set("X-Webhook-Signature", webhookSignature(jsonData, secret))
	}

	resp, err := owm.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	return resp.StatusCode, nil
}

// Stop останавливает воркер и дожидается завершения доставок
func (owm *OutboundWebhookManager) Stop() {
	owm.stopOnce.Do(func() {
		if owm.sub != nil {
			owm.sub.Unsubscribe()
		}
		close(owm.quit)
		owm.wg.Wait()
	})
}

// GetEventTypes возвращает доступные типы событий
func (owm *OutboundWebhookManager) GetEventTypes() []string {
	return []string{
		"server.started",
		"server.stopped",
		"user.created",
		"user.login",
		events.MapGenerated,
		events.MapSaved,
		events.MapDeleted,
		events.CameraConfigUpdated,
		events.EnemySpotted,
		events.PlayerCaught,
		events.HostageFollowing,
		events.HostageRescued,
		events.SessionStarted,
		events.SessionEnded,
		"webhook.test",
	}
}
