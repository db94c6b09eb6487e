package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/camera"
)

func TestNewMessage_WithPayload(t *testing.T) {
	msg, err := NewMessage(MsgPing, PingPayload{Time: 1234})
	require.NoError(t, err, "Создание сообщения не должно вызывать ошибку")

	assert.Equal(t, MsgPing, msg.Type, "Тип сообщения должен сохраниться")
	assert.NotEmpty(t, msg.Payload, "Payload должен быть сериализован")

	var ping PingPayload
	require.NoError(t, msg.DecodePayload(&ping), "Payload должен разбираться")
	assert.Equal(t, int64(1234), ping.Time, "Метка времени должна совпадать")
}

func TestNewMessage_NilPayload(t *testing.T) {
	msg, err := NewMessage(MsgMapList, nil)
	require.NoError(t, err)

	assert.Empty(t, msg.Payload, "Сообщение без тела не должно нести payload")

	var info MapListPayload
	assert.Error(t, msg.DecodePayload(&info), "Разбор пустого payload должен вернуть ошибку")
}

func TestMessage_ConfigUpdateRoundTrip(t *testing.T) {
	cfg := camera.DefaultCameraConfig()
	cfg.Distance = 20

	msg, err := NewMessage(MsgConfigUpdate, ConfigUpdatePayload{Camera: cfg})
	require.NoError(t, err)

	var decoded ConfigUpdatePayload
	require.NoError(t, msg.DecodePayload(&decoded))
	assert.Equal(t, cfg, decoded.Camera, "Конфигурация камеры должна пройти без потерь")
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(ErrCodeNotFound, "карта не найдена")
	require.Equal(t, MsgError, msg.Type)

	var errPayload ErrorPayload
	require.NoError(t, msg.DecodePayload(&errPayload))
	assert.Equal(t, ErrCodeNotFound, errPayload.Code, "Код ошибки должен сохраниться")
	assert.Equal(t, "карта не найдена", errPayload.Message)
}

func TestMsgType_String(t *testing.T) {
	assert.Equal(t, "ping", MsgPing.String())
	assert.Equal(t, "map_snapshot", MsgMapSnapshot.String())
	assert.Equal(t, "config_update", MsgConfigUpdate.String())
	assert.Contains(t, MsgType(99).String(), "unknown", "Неизвестный тип должен подписываться как unknown")
}
