package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressionType определяет тип сжатия полезной нагрузки
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionZstd
)

const (
	// MaxFrameSize ограничивает размер одного кадра; снапшот самой большой
	// карты укладывается с большим запасом
	MaxFrameSize = 8 << 20

	// compressThreshold — сообщения короче не сжимаются: ping и списки карт
	// меньше заголовка zstd
	compressThreshold = 512
)

// zstdMagic — первые байты zstd-кадра. JSON-сообщение всегда начинается
// с '{', поэтому приёмник различает сжатый и сырой payload по префиксу.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Codec сериализует сообщения в байты кадра и обратно. Сжатие включается
// на отправителе по порогу размера, приёмник распознаёт его по магии zstd,
// так что кодеки на концах канала не требуют согласования настроек.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec создаёт кодек с готовыми zstd-кодерами
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("создание zstd-кодера: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("создание zstd-декодера: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Marshal сериализует сообщение в payload кадра. При comp == CompressionZstd
// сообщения длиннее порога сжимаются целиком.
func (c *Codec) Marshal(msg *Message, comp CompressionType) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("сериализация сообщения %s: %w", msg.Type, err)
	}

	if comp == CompressionZstd && len(data) >= compressThreshold {
		data = c.encoder.EncodeAll(data, nil)
	}
	return data, nil
}

// Unmarshal разбирает payload кадра в сообщение, прозрачно распаковывая zstd
func (c *Codec) Unmarshal(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("пустой кадр")
	}

	if bytes.HasPrefix(data, zstdMagic) {
		decompressed, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("распаковка кадра: %w", err)
		}
		data = decompressed
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("разбор сообщения: %w", err)
	}
	return &msg, nil
}

// Close освобождает ресурсы zstd-кодеров
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// WriteFrame пишет кадр в поток: заголовок длины uint32 LE, затем payload.
// Используется потоковыми транспортами (KCP); WebSocket сохраняет границы
// сообщений сам и передаёт payload без заголовка.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("кадр %d байт превышает лимит %d", len(payload), MaxFrameSize)
	}

	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("запись заголовка кадра: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("запись кадра: %w", err)
	}
	return nil
}

// ReadFrame читает один кадр из потока целиком
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header)
	if length == 0 {
		return nil, fmt.Errorf("кадр нулевой длины")
	}
	if length > MaxFrameSize {
		return nil, fmt.Errorf("кадр %d байт превышает лимит %d", length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("чтение кадра: %w", err)
	}
	return payload, nil
}
