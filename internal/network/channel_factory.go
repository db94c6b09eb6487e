package network

import (
	"fmt"

	"github.com/annel0/voxcity/internal/logging"
)

// StandardChannelFactory реализует ChannelFactory для поддерживаемых типов каналов
type StandardChannelFactory struct {
	logger *logging.Logger
}

var _ ChannelFactory = (*StandardChannelFactory)(nil)

// NewStandardChannelFactory создаёт новую фабрику каналов
func NewStandardChannelFactory(logger *logging.Logger) *StandardChannelFactory {
	return &StandardChannelFactory{
		logger: logger,
	}
}

// CreateChannel создаёт канал указанного типа с заданной конфигурацией
func (f *StandardChannelFactory) CreateChannel(config *ChannelConfig) (NetChannel, error) {
	switch config.Type {
	case ChannelKCP:
		return NewKCPChannel(config, f.logger), nil
	case ChannelWebSocket:
		return NewWSChannel(config, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported channel type: %v", config.Type)
	}
}

// SupportedTypes возвращает список поддерживаемых типов каналов
func (f *StandardChannelFactory) SupportedTypes() []ChannelType {
	return []ChannelType{
		ChannelKCP,
		ChannelWebSocket,
	}
}
