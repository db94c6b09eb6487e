package network

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol"
)

// outbound связывает сообщение с выбранным для него сжатием
type outbound struct {
	msg  *protocol.Message
	comp protocol.CompressionType
}

// KCPChannel реализует NetChannel для KCP (надёжный UDP)
type KCPChannel struct {
	conn   *kcp.UDPSession
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

var _ NetChannel = (*KCPChannel)(nil)

// NewKCPChannel создаёт новый KCP канал
func NewKCPChannel(config *ChannelConfig, logger *logging.Logger) *KCPChannel {
	ctx, cancel := context.WithCancel(context.Background())

	channel := &KCPChannel{
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

// NewKCPChannelFromConn создаёт новый KCP канал из существующего соединения
func NewKCPChannelFromConn(conn *kcp.UDPSession, config *ChannelConfig, logger *logging.Logger) *KCPChannel {
	channel := NewKCPChannel(config, logger)
	channel.conn = conn

	tuneKCP(conn)

	channel.stats.Connected = true
	channel.stats.RemoteAddr = conn.RemoteAddr().String()
	channel.stats.LastActivity = time.Now()

	channel.start()

	logger.Info("KCP channel created from connection: addr=%s", conn.RemoteAddr().String())
	return channel
}

// tuneKCP настраивает KCP параметры для игрового трафика
func tuneKCP(conn *kcp.UDPSession) {
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	conn.SetWindowSize(512, 512) // Увеличиваем окно для пропускной способности
	conn.SetMtu(1400)            // Стандартный MTU для интернета
}

// start запускает горутины обработки и уведомляет о подключении
func (kc *KCPChannel) start() {
	kc.wg.Add(3)
	go kc.sendLoop()
	go kc.receiveLoop()
	go kc.statsLoop()

	if kc.onConnect != nil {
		kc.onConnect()
	}
}

// Connect устанавливает соединение с сервером
func (kc *KCPChannel) Connect(ctx context.Context, addr string) error {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	if kc.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := kcp.DialWithOptions(addr, nil, 10, 3)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	tuneKCP(conn)

	kc.conn = conn
	kc.stats.Connected = true
	kc.stats.RemoteAddr = addr
	kc.stats.LastActivity = time.Now()

	kc.start()

	kc.logger.Info("KCP channel connected: addr=%s", addr)
	return nil
}

// Send отправляет сообщение
func (kc *KCPChannel) Send(ctx context.Context, msg *protocol.Message, opts *SendOptions) error {
	if !kc.IsConnected() {
		return fmt.Errorf("not connected")
	}

	msg.Seq = atomic.AddUint32(&kc.sendSequence, 1)

	comp := kc.config.CompressionType
	if opts != nil {
		comp = opts.Compression
	}

	select {
	case kc.sendBuffer <- outbound{msg: msg, comp: comp}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-kc.ctx.Done():
		return ErrChannelClosed
	}
}

// Receive получает сообщение
func (kc *KCPChannel) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case msg := <-kc.recvBuffer:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-kc.ctx.Done():
		return nil, ErrChannelClosed
	}
}

// Close закрывает канал
func (kc *KCPChannel) Close() error {
	kc.mu.Lock()
	conn := kc.conn
	kc.conn = nil
	kc.stats.Connected = false
	kc.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Останавливаем горутины; закрытие соединения разблокирует чтение
	kc.cancel()
	err := conn.Close()
	kc.wg.Wait()

	if kc.codec != nil {
		kc.codec.Close()
	}

	if kc.onDisconnect != nil {
		kc.onDisconnect(err)
	}

	kc.logger.Info("KCP channel closed")
	return err
}

// IsConnected проверяет состояние соединения
func (kc *KCPChannel) IsConnected() bool {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return kc.conn != nil && kc.stats.Connected
}

// RemoteAddr возвращает адрес удалённого узла
func (kc *KCPChannel) RemoteAddr() string {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return kc.stats.RemoteAddr
}

// Stats возвращает статистику соединения
func (kc *KCPChannel) Stats() ConnectionStats {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	stats := kc.stats
	stats.PacketsSent = atomic.LoadUint64(&kc.stats.PacketsSent)
	stats.PacketsReceived = atomic.LoadUint64(&kc.stats.PacketsReceived)
	stats.PacketsLost = atomic.LoadUint64(&kc.stats.PacketsLost)
	stats.BytesSent = atomic.LoadUint64(&kc.stats.BytesSent)
	stats.BytesReceived = atomic.LoadUint64(&kc.stats.BytesReceived)
	return stats
}

// RTT возвращает текущий RTT
func (kc *KCPChannel) RTT() time.Duration {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return kc.stats.RTT
}

// SetTimeout устанавливает таймаут
func (kc *KCPChannel) SetTimeout(timeout time.Duration) error {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	if kc.conn != nil {
		return kc.conn.SetDeadline(time.Now().Add(timeout))
	}
	return nil
}

// SetKeepAlive устанавливает интервал keep-alive
func (kc *KCPChannel) SetKeepAlive(interval time.Duration) error {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.config.KeepAlive = interval
	return nil
}

// OnMessage устанавливает обработчик сообщений
func (kc *KCPChannel) OnMessage(handler func(*protocol.Message)) error {
	kc.onMessage = handler
	return nil
}

// OnConnect устанавливает обработчик подключения
func (kc *KCPChannel) OnConnect(handler func()) error {
	kc.onConnect = handler
	return nil
}

// OnDisconnect устанавливает обработчик отключения
func (kc *KCPChannel) OnDisconnect(handler func(error)) error {
	kc.onDisconnect = handler
	return nil
}

// OnError устанавливает обработчик ошибок
func (kc *KCPChannel) OnError(handler func(error)) error {
	kc.onError = handler
	return nil
}

// sendLoop обрабатывает отправку сообщений
func (kc *KCPChannel) sendLoop() {
	defer kc.wg.Done()

	for {
		select {
		case out := <-kc.sendBuffer:
			if err := kc.sendMessage(out); err != nil {
				kc.logger.Error("Failed to send message: %v", err)
				if kc.onError != nil {
					kc.onError(err)
				}
			}
		case <-kc.ctx.Done():
			return
		}
	}
}

// receiveLoop читает кадры из потока и раскладывает их по буферу приёма
func (kc *KCPChannel) receiveLoop() {
	defer kc.wg.Done()

	kc.mu.RLock()
	conn := kc.conn
	kc.mu.RUnlock()
	if conn == nil {
		return
	}

	reader := bufio.NewReaderSize(conn, 64*1024)

	for {
		payload, err := protocol.ReadFrame(reader)
		if err != nil {
			select {
			case <-kc.ctx.Done():
				return
			default:
			}

			// Ошибка потока фатальна: границы кадров потеряны
			kc.mu.Lock()
			kc.stats.Connected = false
			kc.mu.Unlock()

			if kc.onError != nil {
				kc.onError(err)
			}
			if kc.onDisconnect != nil {
				kc.onDisconnect(err)
			}
			kc.cancel()
			return
		}

		msg, err := kc.codec.Unmarshal(payload)
		if err != nil {
			kc.logger.Error("Failed to decode message: %v", err)
			continue
		}

		atomic.AddUint64(&kc.stats.PacketsReceived, 1)
		atomic.AddUint64(&kc.stats.BytesReceived, uint64(len(payload)+4))
		kc.mu.Lock()
		kc.stats.LastActivity = time.Now()
		kc.mu.Unlock()

		kc.trackSequence(msg.Seq)

		select {
		case kc.recvBuffer <- msg:
		default:
			kc.logger.Warn("Receive buffer full, dropping message")
		}

		if kc.onMessage != nil {
			kc.onMessage(msg)
		}
	}
}

// statsLoop следит за активностью соединения
func (kc *KCPChannel) statsLoop() {
	defer kc.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			kc.mu.Lock()
			if kc.conn != nil && time.Since(kc.stats.LastActivity) > kc.config.KeepAlive*2 {
				kc.stats.Connected = false
			}
			kc.mu.Unlock()
		case <-kc.ctx.Done():
			return
		}
	}
}

// sendMessage кодирует сообщение и пишет кадр в соединение
func (kc *KCPChannel) sendMessage(out outbound) error {
	payload, err := kc.codec.Marshal(out.msg, out.comp)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	kc.mu.RLock()
	conn := kc.conn
	kc.mu.RUnlock()

	if conn == nil {
		return ErrChannelClosed
	}

	if err := protocol.WriteFrame(conn, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	atomic.AddUint64(&kc.stats.PacketsSent, 1)
	atomic.AddUint64(&kc.stats.BytesSent, uint64(len(payload)+4))
	kc.mu.Lock()
	kc.stats.LastActivity = time.Now()
	kc.mu.Unlock()

	return nil
}

// trackSequence считает разрывы в номерах входящих сообщений
func (kc *KCPChannel) trackSequence(seq uint32) {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	if kc.lastReceived != 0 && seq > kc.lastReceived+1 {
		atomic.AddUint64(&kc.stats.PacketsLost, uint64(seq-kc.lastReceived-1))
	}
	if seq > kc.lastReceived {
		kc.lastReceived = seq
	}
}

// isTimeout отличает сетевой таймаут от фатальной ошибки чтения
func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
