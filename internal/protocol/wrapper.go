// Package protocol определяет формат сообщений push-канала: JSON-конверт
// Message с типом и номером, кодек с опциональным zstd-сжатием и кадрирование
// потока заголовком длины. Формат симметричен для KCP и WebSocket транспортов.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MsgType определяет тип сообщения в системе
type MsgType int32

// Определение констант для типов сообщений
const (
	MsgUnknown      MsgType = 0
	MsgAuth         MsgType = 1
	MsgAuthResponse MsgType = 2
	MsgPing         MsgType = 3
	MsgPong         MsgType = 4
	MsgError        MsgType = 5

	// Карты
	MsgMapList     MsgType = 10
	MsgMapSnapshot MsgType = 11
	MsgMapDeleted  MsgType = 12

	// Камера
	MsgConfigUpdate MsgType = 20
)

// String возвращает имя типа для логов
func (t MsgType) String() string {
	switch t {
	case MsgAuth:
		return "auth"
	case MsgAuthResponse:
		return "auth_response"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	case MsgError:
		return "error"
	case MsgMapList:
		return "map_list"
	case MsgMapSnapshot:
		return "map_snapshot"
	case MsgMapDeleted:
		return "map_deleted"
	case MsgConfigUpdate:
		return "config_update"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Message представляет основное сообщение протокола. Payload хранит
// JSON-представление одной из структур из messages.go; Seq проставляется
// каналом при отправке.
type Message struct {
	Type    MsgType         `json:"type"`
	Seq     uint32          `json:"seq"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage создаёт сообщение с сериализованной полезной нагрузкой.
// nil payload даёт сообщение без тела (ping, запрос списка карт).
func NewMessage(msgType MsgType, payload interface{}) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация payload %s: %w", msgType, err)
	}
	msg.Payload = data
	return msg, nil
}

// DecodePayload разбирает полезную нагрузку сообщения в указанную структуру
func (m *Message) DecodePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("сообщение %s без payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("разбор payload %s: %w", m.Type, err)
	}
	return nil
}

// NewErrorMessage создаёт сообщение об ошибке протокола
func NewErrorMessage(code int, text string) *Message {
	msg, _ := NewMessage(MsgError, ErrorPayload{Code: code, Message: text})
	return msg
}
