package network

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol"
)

// WSChannel реализует NetChannel поверх WebSocket. Кадры протокола ходят
// бинарными сообщениями без заголовка длины: границы сообщений сохраняет
// сам WebSocket. Keep-alive делается контрольными ping-кадрами.
type WSChannel struct {
	conn   *websocket.Conn
	config *ChannelConfig
	logger *logging.Logger

	// Статистика
	stats ConnectionStats

	// Обработчики событий
	onMessage    func(*protocol.Message)
	onConnect    func()
	onDisconnect func(error)
	onError      func(error)

	// Контроль выполнения
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Кодек кадров
	codec *protocol.Codec

	// Буферы
	sendBuffer chan outbound
	recvBuffer chan *protocol.Message

	// Нумерация сообщений
	sendSequence uint32
	lastReceived uint32

	mu sync.RWMutex
}

var _ NetChannel = (*WSChannel)(nil)

// NewWSChannel создаёт новый WebSocket канал
func NewWSChannel(config *ChannelConfig, logger *logging.Logger) *WSChannel {
	ctx, cancel := context.WithCancel(context.Background())

	channel := &WSChannel{
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		sendBuffer: make(chan outbound, config.BufferSize),
		recvBuffer: make(chan *protocol.Message, config.BufferSize),
	}

	codec, err := protocol.NewCodec()
	if err != nil {
		logger.Error("Failed to create codec: %v", err)
	}
	channel.codec = codec

	return channel
}

// NewWSChannelFromConn создаёт канал из принятого сервером соединения
func NewWSChannelFromConn(conn *websocket.Conn, config *ChannelConfig, logger *logging.Logger) *WSChannel {
	channel := NewWSChannel(config, logger)
	channel.conn = conn

	channel.stats.Connected = true
	channel.stats.RemoteAddr = conn.RemoteAddr().String()
	channel.stats.LastActivity = time.Now()

	channel.start()

	logger.Info("WebSocket channel created from connection: addr=%s", conn.RemoteAddr().String())
	return channel
}

// start настраивает keep-alive и запускает горутины обработки
func (wc *WSChannel) start() {
	// Pong продлевает дедлайн чтения; без трафика соединение закрывается
	deadline := wc.config.KeepAlive * 2
	wc.conn.SetReadDeadline(time.Now().Add(deadline))
	wc.conn.SetPongHandler(func(string) error {
		wc.mu.Lock()
		wc.stats.LastActivity = time.Now()
		wc.mu.Unlock()
		return wc.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	wc.wg.Add(3)
	go wc.sendLoop()
	go wc.receiveLoop()
	go wc.pingLoop()

	if wc.onConnect != nil {
		wc.onConnect()
	}
}

// Connect устанавливает соединение с сервером по ws:// или wss:// адресу
func (wc *WSChannel) Connect(ctx context.Context, addr string) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.conn != nil {
		return fmt.Errorf("already connected")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: wc.config.Timeout,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
	}

	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	wc.conn = conn
	wc.stats.Connected = true
	wc.stats.RemoteAddr = addr
	wc.stats.LastActivity = time.Now()

	wc.start()

	wc.logger.Info("WebSocket channel connected: addr=%s", addr)
	return nil
}

// Send отправляет сообщение
func (wc *WSChannel) Send(ctx context.Context, msg *protocol.Message, opts *SendOptions) error {
	if !wc.IsConnected() {
		return fmt.Errorf("not connected")
	}

	msg.Seq = atomic.AddUint32(&wc.sendSequence, 1)

	comp := wc.config.CompressionType
	if opts != nil {
		comp = opts.Compression
	}

	select {
	case wc.sendBuffer <- outbound{msg: msg, comp: comp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wc.ctx.Done():
		return ErrChannelClosed
	}
}

// Receive получает сообщение
func (wc *WSChannel) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case msg := <-wc.recvBuffer:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wc.ctx.Done():
		return nil, ErrChannelClosed
	}
}

// Close закрывает канал
func (wc *WSChannel) Close() error {
	wc.mu.Lock()
	conn := wc.conn
	wc.conn = nil
	wc.stats.Connected = false
	wc.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Вежливое закрытие, затем разрыв соединения разблокирует чтение
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	wc.cancel()
	err := conn.Close()
	wc.wg.Wait()

	if wc.codec != nil {
		wc.codec.Close()
	}

	if wc.onDisconnect != nil {
		wc.onDisconnect(err)
	}

	wc.logger.Info("WebSocket channel closed")
	return err
}

// IsConnected проверяет состояние соединения
func (wc *WSChannel) IsConnected() bool {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.conn != nil && wc.stats.Connected
}

// RemoteAddr возвращает адрес удалённого узла
func (wc *WSChannel) RemoteAddr() string {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.stats.RemoteAddr
}

// Stats возвращает статистику соединения
func (wc *WSChannel) Stats() ConnectionStats {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	stats := wc.stats
	stats.PacketsSent = atomic.LoadUint64(&wc.stats.PacketsSent)
	stats.PacketsReceived = atomic.LoadUint64(&wc.stats.PacketsReceived)
	stats.PacketsLost = atomic.LoadUint64(&wc.stats.PacketsLost)
	stats.BytesSent = atomic.LoadUint64(&wc.stats.BytesSent)
	stats.BytesReceived = atomic.LoadUint64(&wc.stats.BytesReceived)
	return stats
}

// RTT возвращает текущий RTT
func (wc *WSChannel) RTT() time.Duration {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	return wc.stats.RTT
}

// SetTimeout устанавливает таймаут
func (wc *WSChannel) SetTimeout(timeout time.Duration) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	wc.config.Timeout = timeout
	if wc.conn != nil {
		return wc.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	return nil
}

// SetKeepAlive устанавливает интервал keep-alive
func (wc *WSChannel) SetKeepAlive(interval time.Duration) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.config.KeepAlive = interval
	return nil
}

// OnMessage устанавливает обработчик сообщений
func (wc *WSChannel) OnMessage(handler func(*protocol.Message)) error {
	wc.onMessage = handler
	return nil
}

// OnConnect устанавливает обработчик подключения
func (wc *WSChannel) OnConnect(handler func()) error {
	wc.onConnect = handler
	return nil
}

// OnDisconnect устанавливает обработчик отключения
func (wc *WSChannel) OnDisconnect(handler func(error)) error {
	wc.onDisconnect = handler
	return nil
}

// OnError устанавливает обработчик ошибок
func (wc *WSChannel) OnError(handler func(error)) error {
	wc.onError = handler
	return nil
}

// sendLoop единственный писатель данных в соединение: гарантия gorilla
// на один конкурентный WriteMessage
func (wc *WSChannel) sendLoop() {
	defer wc.wg.Done()

	for {
		select {
		case out := <-wc.sendBuffer:
			if err := wc.sendMessage(out); err != nil {
				wc.logger.Error("Failed to send message: %v", err)
				if wc.onError != nil {
					wc.onError(err)
				}
			}
		case <-wc.ctx.Done():
			return
		}
	}
}

// receiveLoop читает сообщения и раскладывает их по буферу приёма
func (wc *WSChannel) receiveLoop() {
	defer wc.wg.Done()

	wc.mu.RLock()
	conn := wc.conn
	wc.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-wc.ctx.Done():
				return
			default:
			}

			wc.mu.Lock()
			wc.stats.Connected = false
			wc.mu.Unlock()

			if wc.onError != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				wc.onError(err)
			}
			if wc.onDisconnect != nil {
				wc.onDisconnect(err)
			}
			wc.cancel()
			return
		}

		msg, err := wc.codec.Unmarshal(data)
		if err != nil {
			wc.logger.Error("Failed to decode message: %v", err)
			continue
		}

		atomic.AddUint64(&wc.stats.PacketsReceived, 1)
		atomic.AddUint64(&wc.stats.BytesReceived, uint64(len(data)))
		wc.mu.Lock()
		wc.stats.LastActivity = time.Now()
		wc.mu.Unlock()

		wc.trackSequence(msg.Seq)

		select {
		case wc.recvBuffer <- msg:
		default:
			wc.logger.Warn("Receive buffer full, dropping message")
		}

		if wc.onMessage != nil {
			wc.onMessage(msg)
		}
	}
}

// pingLoop шлёт контрольные ping-кадры; WriteControl у gorilla безопасен
// параллельно с sendLoop
func (wc *WSChannel) pingLoop() {
	defer wc.wg.Done()

	interval := wc.config.KeepAlive
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wc.mu.RLock()
			conn := wc.conn
			wc.mu.RUnlock()
			if conn == nil {
				return
			}

			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				wc.logger.Warn("Failed to send ping: %v", err)
			}
		case <-wc.ctx.Done():
			return
		}
	}
}

// sendMessage кодирует сообщение и пишет его бинарным кадром
func (wc *WSChannel) sendMessage(out outbound) error {
	payload, err := wc.codec.Marshal(out.msg, out.comp)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	wc.mu.RLock()
	conn := wc.conn
	wc.mu.RUnlock()

	if conn == nil {
		return ErrChannelClosed
	}

	conn.SetWriteDeadline(time.Now().Add(wc.config.Timeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	atomic.AddUint64(&wc.stats.PacketsSent, 1)
	atomic.AddUint64(&wc.stats.BytesSent, uint64(len(payload)))
	wc.mu.Lock()
	wc.stats.LastActivity = time.Now()
	wc.mu.Unlock()

	return nil
}

// trackSequence считает разрывы в номерах входящих сообщений
func (wc *WSChannel) trackSequence(seq uint32) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.lastReceived != 0 && seq > wc.lastReceived+1 {
		atomic.AddUint64(&wc.stats.PacketsLost, uint64(seq-wc.lastReceived-1))
	}
	if seq > wc.lastReceived {
		wc.lastReceived = seq
	}
}
