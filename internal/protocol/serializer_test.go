package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec()
	require.NoError(t, err, "Кодек должен создаваться")
	t.Cleanup(codec.Close)
	return codec
}

func TestCodec_RoundTripUncompressed(t *testing.T) {
	codec := newTestCodec(t)

	msg, err := NewMessage(MsgPing, PingPayload{Time: 42})
	require.NoError(t, err)
	msg.Seq = 7

	data, err := codec.Marshal(msg, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0], "Несжатый кадр должен начинаться с JSON")

	decoded, err := codec.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, decoded.Type)
	assert.Equal(t, uint32(7), decoded.Seq, "Номер сообщения должен сохраниться")
}

func TestCodec_CompressesLargePayload(t *testing.T) {
	codec := newTestCodec(t)

	// Хорошо сжимаемый payload заметно больше порога
	big := strings.Repeat("voxcity ", 1024)
	msg, err := NewMessage(MsgMapSnapshot, MapSnapshotPayload{
		Name:     "demo",
		Snapshot: json.RawMessage(`"` + big + `"`),
	})
	require.NoError(t, err)

	data, err := codec.Marshal(msg, CompressionZstd)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, zstdMagic), "Большой кадр должен быть сжат")
	assert.Less(t, len(data), len(big), "Сжатый кадр должен быть меньше исходного текста")

	decoded, err := codec.Unmarshal(data)
	require.NoError(t, err, "Приёмник должен распаковать кадр без настройки сжатия")
	assert.Equal(t, MsgMapSnapshot, decoded.Type)

	var payload MapSnapshotPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "demo", payload.Name)
}

func TestCodec_SmallPayloadStaysRaw(t *testing.T) {
	codec := newTestCodec(t)

	msg, err := NewMessage(MsgPing, PingPayload{Time: 1})
	require.NoError(t, err)

	data, err := codec.Marshal(msg, CompressionZstd)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0], "Короткое сообщение не сжимается даже при включённом zstd")
}

func TestCodec_RejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Unmarshal([]byte("не json"))
	assert.Error(t, err, "Мусор не должен разбираться")

	_, err = codec.Unmarshal(nil)
	assert.Error(t, err, "Пустой кадр не должен разбираться")
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	first := []byte(`{"type":3,"seq":1}`)
	second := []byte(`{"type":4,"seq":2}`)
	require.NoError(t, WriteFrame(&buf, first))
	require.NoError(t, WriteFrame(&buf, second))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, first, got, "Первый кадр должен читаться целиком")

	got, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, second, got, "Кадры в потоке не должны слипаться")
}

func TestFrame_RejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.Error(t, err, "Кадр больше лимита не должен записываться")

	// Заголовок с завышенной длиной отклоняется до чтения тела
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err = ReadFrame(bytes.NewReader(header))
	assert.Error(t, err, "Заголовок с завышенной длиной должен отклоняться")
}

func TestFrame_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("payload")))

	truncated := buf.Bytes()[:buf.Len()-3]
	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.Error(t, err, "Оборванный кадр должен вернуть ошибку")
}

// Benchmarks

func BenchmarkCodec_MarshalSnapshot(b *testing.B) {
	codec, err := NewCodec()
	if err != nil {
		b.Fatal(err)
	}
	defer codec.Close()

	big := strings.Repeat(`{"mask":511},`, 2048)
	msg, _ := NewMessage(MsgMapSnapshot, MapSnapshotPayload{
		Name:     "bench",
		Snapshot: json.RawMessage(`[` + big[:len(big)-1] + `]`),
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := codec.Marshal(msg, CompressionZstd)
		if err != nil {
			b.Fatal(err)
		}
	}
}
