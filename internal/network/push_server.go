package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/voxcity/internal/camera"
	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol"
	"github.com/annel0/voxcity/internal/protocol/events"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// clientTimeout отключает клиентов без входящих сообщений; игровые клиенты
// шлют MsgPing не реже раза в 10 секунд
const clientTimeout = 30 * time.Second

// MapSource отдаёт снапшоты карт для рассылки. Реализуется хранилищем
// карт; серверу пуша нужна только читающая часть.
type MapSource interface {
	LoadMap(name string) (*snapshot.MapSnapshot, error)
	ListMaps() ([]string, error)
}

// ChannelAuthenticator проверяет рукопожатие канала. nil-аутентификатор
// означает открытый сервер: клиенты получают рассылку без MsgAuth.
type ChannelAuthenticator interface {
	Authenticate(req *protocol.AuthRequest) (*protocol.AuthResponse, error)
}

// ClientChannel хранит информацию о клиентском канале
type ClientChannel struct {
	ID            string
	Channel       NetChannel
	Authenticated bool
	PlayerID      uint64
	Username      string
	LastSeen      time.Time
}

// PushServer принимает игровые каналы (KCP напрямую, WebSocket через
// HTTP-upgrade) и рассылает подключённым клиентам снапшоты карт и
// обновления конфигурации камеры по событиям шины.
type PushServer struct {
	addr     string
	listener net.Listener
	config   *ChannelConfig

	maps MapSource
	auth ChannelAuthenticator

	// Клиенты
	clients   map[string]*ClientChannel
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
	monitor  *ChannelMonitor
	sub      eventbus.Subscription

	// Состояние
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logging.Logger
}

// NewPushServer создаёт сервер рассылки. addr слушается по KCP; WebSocket
// подключается отдельно через HandleWS на HTTP-сервере.
func NewPushServer(addr string, config *ChannelConfig, maps MapSource) *PushServer {
	return &PushServer{
		addr:    addr,
		config:  config,
		maps:    maps,
		clients: make(map[string]*ClientChannel),
		monitor: NewChannelMonitor(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logging.GetNetworkLogger(),
	}
}

// SetAuthenticator включает проверку MsgAuth при рукопожатии
func (ps *PushServer) SetAuthenticator(auth ChannelAuthenticator) {
	ps.auth = auth
}

// Monitor возвращает монитор каналов для админских эндпоинтов
func (ps *PushServer) Monitor() *ChannelMonitor {
	return ps.monitor
}

// Start запускает KCP-листенер и служебные циклы
func (ps *PushServer) Start() error {
	listener, err := kcp.ListenWithOptions(ps.addr, nil, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ps.addr, err)
	}

	ps.listener = listener
	ps.ctx, ps.cancel = context.WithCancel(context.Background())

	ps.wg.Add(2)
	go ps.acceptLoop()
	go ps.timeoutLoop()

	ps.logger.Info("🚀 Push server started on %s", ps.addr)
	return nil
}

// Stop останавливает сервер и отключает всех клиентов
func (ps *PushServer) Stop() error {
	if ps.sub != nil {
		ps.sub.Unsubscribe()
	}

	if ps.cancel != nil {
		ps.cancel()
	}

	if ps.listener != nil {
		ps.listener.Close()
	}

	ps.wg.Wait()

	ps.clientsMu.Lock()
	for id, client := range ps.clients {
		client.Channel.Close()
		delete(ps.clients, id)
	}
	ps.clientsMu.Unlock()

	ps.logger.Info("🛑 Push server stopped")
	return nil
}

// AttachBus подписывает сервер на события карт и камеры
func (ps *PushServer) AttachBus(ctx context.Context, bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{
		Types: []string{events.MapSaved, events.MapDeleted, events.CameraConfigUpdated},
	}, ps.handleBusEvent)
	if err != nil {
		return fmt.Errorf("подписка на события рассылки: %w", err)
	}

	ps.sub = sub
	return nil
}

// handleBusEvent превращает событие шины в push-сообщение
func (ps *PushServer) handleBusEvent(_ context.Context, env *eventbus.Envelope) {
	switch env.EventType {
	case events.MapSaved:
		var payload events.MapEvent
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			ps.logger.Error("Bad map.saved payload: %v", err)
			return
		}
		ps.pushMapSnapshot(payload.Name)

	case events.MapDeleted:
		var payload events.MapEvent
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			ps.logger.Error("Bad map.deleted payload: %v", err)
			return
		}
		msg, err := protocol.NewMessage(protocol.MsgMapDeleted, protocol.MapDeletedPayload{Name: payload.Name})
		if err != nil {
			return
		}
		ps.Broadcast(msg, nil)

	case events.CameraConfigUpdated:
		var cfg camera.CameraConfig
		if err := json.Unmarshal(env.Payload, &cfg); err != nil {
			ps.logger.Error("Bad camera config payload: %v", err)
			return
		}
		msg, err := protocol.NewMessage(protocol.MsgConfigUpdate, protocol.ConfigUpdatePayload{Camera: cfg})
		if err != nil {
			return
		}
		ps.Broadcast(msg, nil)
	}
}

// pushMapSnapshot загружает снапшот и рассылает его всем клиентам
func (ps *PushServer) pushMapSnapshot(name string) {
	if ps.maps == nil {
		return
	}

	snap, err := ps.maps.LoadMap(name)
	if err != nil {
		ps.logger.Error("Failed to load map %q for push: %v", name, err)
		return
	}

	data, err := snap.Encode()
	if err != nil {
		ps.logger.Error("Failed to encode map %q: %v", name, err)
		return
	}

	msg, err := protocol.NewMessage(protocol.MsgMapSnapshot, protocol.MapSnapshotPayload{
		Name:     name,
		Snapshot: data,
	})
	if err != nil {
		return
	}

	ps.logger.Info("📡 Pushing map %q to %d clients", name, ps.GetClientCount())
	ps.Broadcast(msg, nil)
}

// HandleWS обслуживает WebSocket-подключение: upgrade, регистрация канала
// и чтение до отключения клиента. Монтируется на HTTP-роутер как GET /ws.
func (ps *PushServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	if ps.ctx == nil || ps.ctx.Err() != nil {
		http.Error(w, "server stopped", http.StatusServiceUnavailable)
		return
	}

	conn, err := ps.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ps.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	config := *ps.config
	config.Type = ChannelWebSocket
	channel := NewWSChannelFromConn(conn, &config, ps.logger)

	clientID := fmt.Sprintf("ws-%s-%d", conn.RemoteAddr(), time.Now().UnixNano())
	ps.registerClient(clientID, channel)

	// Блокируемся до отключения: upgrade захватил соединение
	ps.readLoop(ps.getClient(clientID))
	ps.disconnectClient(clientID)
}

// acceptLoop принимает входящие KCP-соединения
func (ps *PushServer) acceptLoop() {
	defer ps.wg.Done()

	for {
		select {
		case <-ps.ctx.Done():
			return
		default:
		}

		conn, err := ps.listener.Accept()
		if err != nil {
			select {
			case <-ps.ctx.Done():
				return
			default:
				ps.logger.Error("Failed to accept connection: %v", err)
				continue
			}
		}

		ps.wg.Add(1)
		go ps.handleConnection(conn)
	}
}

// handleConnection обрабатывает новое KCP-соединение
func (ps *PushServer) handleConnection(conn net.Conn) {
	defer ps.wg.Done()

	kcpConn, ok := conn.(*kcp.UDPSession)
	if !ok {
		ps.logger.Error("Invalid connection type")
		conn.Close()
		return
	}

	channel := NewKCPChannelFromConn(kcpConn, ps.config, ps.logger)

	clientID := fmt.Sprintf("kcp-%s-%d", conn.RemoteAddr(), time.Now().UnixNano())
	ps.registerClient(clientID, channel)

	ps.readLoop(ps.getClient(clientID))
	ps.disconnectClient(clientID)
}

// registerClient сохраняет клиента и уведомляет монитор
func (ps *PushServer) registerClient(clientID string, channel NetChannel) {
	client := &ClientChannel{
		ID:       clientID,
		Channel:  channel,
		LastSeen: time.Now(),
	}

	ps.clientsMu.Lock()
	ps.clients[clientID] = client
	ps.clientsMu.Unlock()

	ps.monitor.RegisterChannel(clientID, channel)
	ps.logger.Info("✅ Client %s connected", clientID)
}

// getClient возвращает клиента по идентификатору
func (ps *PushServer) getClient(clientID string) *ClientChannel {
	ps.clientsMu.RLock()
	defer ps.clientsMu.RUnlock()
	return ps.clients[clientID]
}

// readLoop читает сообщения клиента до отключения
func (ps *PushServer) readLoop(client *ClientChannel) {
	if client == nil {
		return
	}

	for {
		select {
		case <-ps.ctx.Done():
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		msg, err := client.Channel.Receive(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				continue
			}
			// Канал закрыт или поток оборван
			return
		}

		ps.clientsMu.Lock()
		client.LastSeen = time.Now()
		ps.clientsMu.Unlock()

		ps.handleMessage(client, msg)
	}
}

// handleMessage обрабатывает входящее сообщение клиента
func (ps *PushServer) handleMessage(client *ClientChannel, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgAuth:
		ps.handleAuth(client, msg)

	case protocol.MsgPing:
		var ping protocol.PingPayload
		msg.DecodePayload(&ping) // пустой ping тоже валиден

		pong, err := protocol.NewMessage(protocol.MsgPong, protocol.PongPayload{
			Time:       ping.Time,
			ServerTime: time.Now().UnixMilli(),
		})
		if err == nil {
			ps.send(client, pong)
		}

	case protocol.MsgMapList:
		if !ps.requireAuth(client) {
			return
		}
		ps.sendMapList(client)

	case protocol.MsgMapSnapshot:
		if !ps.requireAuth(client) {
			return
		}
		var req protocol.MapSnapshotPayload
		if err := msg.DecodePayload(&req); err != nil || req.Name == "" {
			ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeBadMessage, "имя карты не указано"))
			return
		}
		ps.sendMapSnapshot(client, req.Name)

	default:
		ps.monitor.RecordEvent("bad_message", client.ID,
			fmt.Sprintf("unexpected message type %s", msg.Type))
		ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeBadMessage,
			fmt.Sprintf("неожиданный тип сообщения %s", msg.Type)))
	}
}

// handleAuth проверяет токен клиента через аутентификатор
func (ps *PushServer) handleAuth(client *ClientChannel, msg *protocol.Message) {
	if ps.auth == nil {
		ps.send(client, mustMessage(protocol.MsgAuthResponse, protocol.AuthResponse{
			Success: true,
			Message: "аутентификация отключена",
		}))
		ps.setAuthenticated(client, 0, "")
		return
	}

	var req protocol.AuthRequest
	if err := msg.DecodePayload(&req); err != nil {
		ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeBadMessage, "некорректный запрос аутентификации"))
		return
	}

	resp, err := ps.auth.Authenticate(&req)
	if err != nil {
		ps.logger.Warn("🚨 Auth failed for %s: %v", client.ID, err)
		ps.send(client, mustMessage(protocol.MsgAuthResponse, protocol.AuthResponse{
			Success: false,
			Message: "неверный токен",
		}))
		return
	}

	ps.setAuthenticated(client, resp.PlayerID, resp.Username)
	ps.monitor.RecordEvent("authenticated", client.ID, resp.Username)
	ps.logger.Info("🔑 Client %s authenticated as %s", client.ID, resp.Username)
	ps.send(client, mustMessage(protocol.MsgAuthResponse, *resp))
}

// setAuthenticated помечает клиента прошедшим рукопожатие
func (ps *PushServer) setAuthenticated(client *ClientChannel, playerID uint64, username string) {
	ps.clientsMu.Lock()
	client.Authenticated = true
	client.PlayerID = playerID
	client.Username = username
	ps.clientsMu.Unlock()
}

// requireAuth отклоняет запросы до рукопожатия, когда аутентификатор включён
func (ps *PushServer) requireAuth(client *ClientChannel) bool {
	if ps.auth == nil {
		return true
	}

	ps.clientsMu.RLock()
	ok := client.Authenticated
	ps.clientsMu.RUnlock()

	if !ok {
		ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeUnauthorized, "требуется аутентификация"))
	}
	return ok
}

// sendMapList отправляет клиенту список карт
func (ps *PushServer) sendMapList(client *ClientChannel) {
	infos := []protocol.MapInfo{}
	if ps.maps != nil {
		names, err := ps.maps.ListMaps()
		if err != nil {
			ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeInternal, "список карт недоступен"))
			return
		}
		for _, name := range names {
			infos = append(infos, protocol.MapInfo{Name: name})
		}
	}

	msg, err := protocol.NewMessage(protocol.MsgMapList, protocol.MapListPayload{Maps: infos})
	if err == nil {
		ps.send(client, msg)
	}
}

// sendMapSnapshot отправляет клиенту снапшот конкретной карты
func (ps *PushServer) sendMapSnapshot(client *ClientChannel, name string) {
	if ps.maps == nil {
		ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeNotFound, "хранилище карт недоступно"))
		return
	}

	snap, err := ps.maps.LoadMap(name)
	if err != nil {
		ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeNotFound,
			fmt.Sprintf("карта %q не найдена", name)))
		return
	}

	data, err := snap.Encode()
	if err != nil {
		ps.send(client, protocol.NewErrorMessage(protocol.ErrCodeInternal, "снапшот не сериализуется"))
		return
	}

	msg, err := protocol.NewMessage(protocol.MsgMapSnapshot, protocol.MapSnapshotPayload{
		Name:     name,
		Snapshot: data,
	})
	if err == nil {
		ps.send(client, msg)
	}
}

// send отправляет сообщение одному клиенту с таймаутом канала
func (ps *PushServer) send(client *ClientChannel, msg *protocol.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Channel.Send(ctx, msg, nil); err != nil {
		ps.logger.Error("Failed to send %s to %s: %v", msg.Type, client.ID, err)
	}
}

// timeoutLoop проверяет таймауты клиентов
func (ps *PushServer) timeoutLoop() {
	defer ps.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ps.ctx.Done():
			return
		case <-ticker.C:
			ps.checkTimeouts()
		}
	}
}

// checkTimeouts отключает неактивных клиентов. Активностью считается и
// входящее сообщение, и живой трафик канала (pong у WebSocket).
func (ps *PushServer) checkTimeouts() {
	now := time.Now()

	ps.clientsMu.RLock()
	var stale []string
	for id, client := range ps.clients {
		lastActivity := client.LastSeen
		if chActivity := client.Channel.Stats().LastActivity; chActivity.After(lastActivity) {
			lastActivity = chActivity
		}
		if now.Sub(lastActivity) > clientTimeout {
			stale = append(stale, id)
		}
	}
	ps.clientsMu.RUnlock()

	for _, id := range stale {
		ps.logger.Warn("⏱️ Client %s timed out", id)
		go ps.disconnectClient(id)
	}
}

// disconnectClient отключает клиента и снимает его с учёта
func (ps *PushServer) disconnectClient(clientID string) {
	ps.clientsMu.Lock()
	client, exists := ps.clients[clientID]
	if !exists {
		ps.clientsMu.Unlock()
		return
	}
	delete(ps.clients, clientID)
	ps.clientsMu.Unlock()

	client.Channel.Close()
	ps.monitor.UnregisterChannel(clientID)

	ps.logger.Info("👋 Client %s disconnected", clientID)
}

// Broadcast отправляет сообщение всем клиентам, прошедшим рукопожатие
func (ps *PushServer) Broadcast(msg *protocol.Message, opts *SendOptions) {
	ps.clientsMu.RLock()
	clients := make([]*ClientChannel, 0, len(ps.clients))
	for _, client := range ps.clients {
		if ps.auth != nil && !client.Authenticated {
			continue
		}
		clients = append(clients, client)
	}
	ps.clientsMu.RUnlock()

	var wg sync.WaitGroup
	for _, client := range clients {
		wg.Add(1)
		go func(c *ClientChannel) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Каждому клиенту своя копия: канал проставляет Seq
			copied := *msg
			if err := c.Channel.Send(ctx, &copied, opts); err != nil {
				ps.logger.Error("Failed to send to %s: %v", c.ID, err)
			}
		}(client)
	}
	wg.Wait()
}

// SendToClient отправляет сообщение конкретному клиенту
func (ps *PushServer) SendToClient(clientID string, msg *protocol.Message, opts *SendOptions) error {
	ps.clientsMu.RLock()
	client, exists := ps.clients[clientID]
	ps.clientsMu.RUnlock()

	if !exists {
		return errors.New("client not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Channel.Send(ctx, msg, opts)
}

// GetClientCount возвращает количество подключенных клиентов
func (ps *PushServer) GetClientCount() int {
	ps.clientsMu.RLock()
	defer ps.clientsMu.RUnlock()
	return len(ps.clients)
}

// mustMessage собирает сообщение с заведомо сериализуемым payload
func mustMessage(msgType protocol.MsgType, payload interface{}) *protocol.Message {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		panic(fmt.Sprintf("несериализуемый payload %s: %v", msgType, err))
	}
	return msg
}
