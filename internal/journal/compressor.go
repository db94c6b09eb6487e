package journal

import (
	"github.com/klauspost/compress/zstd"
)

// Compressor сжимает сериализованные пакеты журнала перед записью в
// хранилище и распаковывает их при чтении.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

type passthroughCompressor struct{}

// NewPassthroughCompressor возвращает компрессор без сжатия
func NewPassthroughCompressor() Compressor { return &passthroughCompressor{} }

func (p *passthroughCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (p *passthroughCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (p *passthroughCompressor) Name() string                           { return "none" }

// zstdCompressor держит общие encoder/decoder: EncodeAll/DecodeAll
// безопасны для конкурентных вызовов.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCompressor создаёт zstd-компрессор со стандартным уровнем сжатия
func NewZstdCompressor() (Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.enc.EncodeAll(data, nil), nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	return z.dec.DecodeAll(data, nil)
}

func (z *zstdCompressor) Name() string { return "zstd" }
