package network

import (
	"sort"
	"sync"
	"time"
)

// maxMonitorEvents ограничивает кольцо последних событий монитора
const maxMonitorEvents = 100

// MonitorEvent описывает событие жизненного цикла канала
type MonitorEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	ChannelID   string    `json:"channel_id"`
	Description string    `json:"description"`
}

// ChannelInfo снимок состояния одного канала
type ChannelInfo struct {
	ID              string    `json:"id"`
	Connected       bool      `json:"connected"`
	RemoteAddr      string    `json:"remote_addr"`
	RTTMs           int64     `json:"rtt_ms"`
	PacketsSent     uint64    `json:"packets_sent"`
	PacketsReceived uint64    `json:"packets_received"`
	PacketsLost     uint64    `json:"packets_lost"`
	BytesSent       uint64    `json:"bytes_sent"`
	BytesReceived   uint64    `json:"bytes_received"`
	LastActivity    time.Time `json:"last_activity"`
}

// RTTSummary агрегирует RTT по живым каналам
type RTTSummary struct {
	MinMs int64 `json:"min_ms"`
	MaxMs int64 `json:"max_ms"`
	AvgMs int64 `json:"avg_ms"`
	P95Ms int64 `json:"p95_ms"`
}

// MonitorStatus снимок состояния сетевой подсистемы для админки
type MonitorStatus struct {
	Timestamp      time.Time      `json:"timestamp"`
	TotalChannels  int            `json:"total_channels"`
	ActiveChannels int            `json:"active_channels"`
	TotalBytesIn   uint64         `json:"total_bytes_in"`
	TotalBytesOut  uint64         `json:"total_bytes_out"`
	RTT            RTTSummary     `json:"rtt"`
	Channels       []ChannelInfo  `json:"channels"`
	RecentEvents   []MonitorEvent `json:"recent_events"`
}

// ChannelMonitor ведёт реестр живых каналов и историю событий. Статус
// отдаётся админским эндпоинтом; сам монитор HTTP не поднимает.
type ChannelMonitor struct {
	channels map[string]NetChannel
	mu       sync.RWMutex

	events  []MonitorEvent
	eventMu sync.RWMutex
}

// NewChannelMonitor создаёт пустой монитор
func NewChannelMonitor() *ChannelMonitor {
	return &ChannelMonitor{
		channels: make(map[string]NetChannel),
		events:   make([]MonitorEvent, 0, maxMonitorEvents),
	}
}

// RegisterChannel добавляет канал под наблюдение
func (cm *ChannelMonitor) RegisterChannel(id string, channel NetChannel) {
	cm.mu.Lock()
	cm.channels[id] = channel
	cm.mu.Unlock()

	cm.RecordEvent("connected", id, channel.RemoteAddr())
}

// UnregisterChannel снимает канал с наблюдения
func (cm *ChannelMonitor) UnregisterChannel(id string) {
	cm.mu.Lock()
	delete(cm.channels, id)
	cm.mu.Unlock()

	cm.RecordEvent("disconnected", id, "")
}

// RecordEvent добавляет событие в кольцо истории
func (cm *ChannelMonitor) RecordEvent(eventType, channelID, description string) {
	cm.eventMu.Lock()
	defer cm.eventMu.Unlock()

	cm.events = append(cm.events, MonitorEvent{
		Timestamp:   time.Now(),
		Type:        eventType,
		ChannelID:   channelID,
		Description: description,
	})
	if len(cm.events) > maxMonitorEvents {
		cm.events = cm.events[1:]
	}
}

// ChannelCount возвращает число каналов под наблюдением
func (cm *ChannelMonitor) ChannelCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.channels)
}

// Status собирает полный снимок состояния
func (cm *ChannelMonitor) Status() MonitorStatus {
	cm.mu.RLock()
	infos := make([]ChannelInfo, 0, len(cm.channels))
	for id, channel := range cm.channels {
		stats := channel.Stats()
		infos = append(infos, ChannelInfo{
			ID:              id,
			Connected:       stats.Connected,
			RemoteAddr:      stats.RemoteAddr,
			RTTMs:           stats.RTT.Milliseconds(),
			PacketsSent:     stats.PacketsSent,
			PacketsReceived: stats.PacketsReceived,
			PacketsLost:     stats.PacketsLost,
			BytesSent:       stats.BytesSent,
			BytesReceived:   stats.BytesReceived,
			LastActivity:    stats.LastActivity,
		})
	}
	cm.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	status := MonitorStatus{
		Timestamp:     time.Now(),
		TotalChannels: len(infos),
		Channels:      infos,
		RTT:           summarizeRTT(infos),
	}

	for _, info := range infos {
		if info.Connected {
			status.ActiveChannels++
		}
		status.TotalBytesIn += info.BytesReceived
		status.TotalBytesOut += info.BytesSent
	}

	cm.eventMu.RLock()
	status.RecentEvents = append([]MonitorEvent(nil), cm.events...)
	cm.eventMu.RUnlock()

	return status
}

// summarizeRTT считает минимум, максимум, среднее и 95-й перцентиль по
// каналам с ненулевым RTT
func summarizeRTT(infos []ChannelInfo) RTTSummary {
	samples := make([]int64, 0, len(infos))
	for _, info := range infos {
		if info.RTTMs > 0 {
			samples = append(samples, info.RTTMs)
		}
	}
	if len(samples) == 0 {
		return RTTSummary{}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum int64
	for _, s := range samples {
		sum += s
	}

	p95 := samples[(len(samples)*95)/100]
	return RTTSummary{
		MinMs: samples[0],
		MaxMs: samples[len(samples)-1],
		AvgMs: sum / int64(len(samples)),
		P95Ms: p95,
	}
}
