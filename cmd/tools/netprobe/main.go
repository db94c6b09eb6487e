package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/voxcity/internal/protocol"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// netprobe — отладочный клиент push-канала: проходит рукопожатие,
// меряет RTT, запрашивает карты и при -follow печатает пуш-сообщения.
func main() {
	var (
		server   = flag.String("server", "localhost:8088", "Адрес сервера (REST и /ws)")
		username = flag.String("user", "test", "Имя пользователя для REST-логина")
		password = flag.String("password", "test", "Пароль для REST-логина")
		token    = flag.String("token", "", "Готовый JWT (пропускает REST-логин)")
		mapName  = flag.String("map", "", "Карта для запроса снапшота")
		follow   = flag.Bool("follow", false, "Оставаться подключённым и печатать пуши")
		hex      = flag.Bool("hex", false, "Печатать hex-дампы кадров")
	)
	flag.Parse()

	fmt.Println("=== ПРОБА PUSH-КАНАЛА ===")

	jwt := *token
	if jwt == "" {
		var err error
		jwt, err = restLogin(*server, *username, *password)
		if err != nil {
			log.Fatalf("❌ REST-логин не удался: %v", err)
		}
		fmt.Printf("✅ Токен получен через REST (%d символов)\n", len(jwt))
	}

	wsURL := fmt.Sprintf("ws://%s/ws", *server)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к %s: %v", wsURL, err)
	}
	defer conn.Close()
	fmt.Printf("✅ Подключен к %s\n", wsURL)

	codec, err := protocol.NewCodec()
	if err != nil {
		log.Fatalf("❌ Ошибка создания кодека: %v", err)
	}
	defer codec.Close()

	probe := &probeSession{conn: conn, codec: codec, hexDump: *hex}

	fmt.Println("\n=== ТЕСТ 1: АУТЕНТИФИКАЦИЯ ===")
	if !probe.testAuth(jwt) {
		os.Exit(1)
	}

	fmt.Println("\n=== ТЕСТ 2: PING ===")
	probe.testPing()

	fmt.Println("\n=== ТЕСТ 3: СПИСОК КАРТ ===")
	probe.testMapList()

	if *mapName != "" {
		fmt.Printf("\n=== ТЕСТ 4: СНАПШОТ КАРТЫ %s ===\n", *mapName)
		probe.testMapSnapshot(*mapName)
	}

	if *follow {
		fmt.Println("\n=== РЕЖИМ СЛЕЖЕНИЯ (Ctrl+C для выхода) ===")
		probe.follow()
	}

	fmt.Println("\n=== ПРОБА ЗАВЕРШЕНА ===")
}

type probeSession struct {
	conn    *websocket.Conn
	codec   *protocol.Codec
	hexDump bool
}

// send кодирует и отправляет сообщение одним websocket-кадром
func (p *probeSession) send(msgType protocol.MsgType, payload interface{}) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := p.codec.Marshal(msg, protocol.CompressionZstd)
	if err != nil {
		return err
	}

	fmt.Printf("📤 Отправка %s (%d байт)\n", msgType, len(data))
	if p.hexDump {
		logHexDump(fmt.Sprintf("%s REQUEST", msgType), data)
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

// receive ждет следующий кадр не дольше таймаута
func (p *probeSession) receive(timeout time.Duration) (*protocol.Message, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	if p.hexDump {
		logHexDump("RESPONSE", data[:min(len(data), 256)])
	}
	return p.codec.Unmarshal(data)
}

func (p *probeSession) testAuth(jwt string) bool {
	if err := p.send(protocol.MsgAuth, protocol.AuthRequest{Token: jwt}); err != nil {
		log.Printf("❌ Ошибка отправки AUTH: %v", err)
		return false
	}

	msg, err := p.receive(5 * time.Second)
	if err != nil {
		log.Printf("❌ Ошибка чтения ответа AUTH: %v", err)
		return false
	}

	var resp protocol.AuthResponse
	if err := msg.DecodePayload(&resp); err != nil {
		log.Printf("❌ Ошибка разбора AuthResponse: %v", err)
		return false
	}

	if resp.Success {
		fmt.Printf("✅ Аутентификация успешна! PlayerID: %d, username: %s\n", resp.PlayerID, resp.Username)
		return true
	}
	fmt.Printf("❌ Аутентификация неудачна: %s\n", resp.Message)
	return false
}

func (p *probeSession) testPing() {
	start := time.Now()
	if err := p.send(protocol.MsgPing, protocol.PingPayload{Time: start.UnixMilli()}); err != nil {
		log.Printf("❌ Ошибка отправки PING: %v", err)
		return
	}

	msg, err := p.receive(5 * time.Second)
	if err != nil {
		log.Printf("❌ Ошибка чтения PONG: %v", err)
		return
	}

	var pong protocol.PongPayload
	if err := msg.DecodePayload(&pong); err != nil {
		log.Printf("❌ Ошибка разбора PongPayload: %v", err)
		return
	}
	fmt.Printf("✅ RTT: %v (серверное время %s)\n",
		time.Since(start).Round(time.Microsecond),
		time.UnixMilli(pong.ServerTime).Format("15:04:05.000"))
}

func (p *probeSession) testMapList() {
	if err := p.send(protocol.MsgMapList, protocol.MapListPayload{}); err != nil {
		log.Printf("❌ Ошибка отправки MAP_LIST: %v", err)
		return
	}

	msg, err := p.receive(5 * time.Second)
	if err != nil {
		log.Printf("❌ Ошибка чтения списка карт: %v", err)
		return
	}

	var list protocol.MapListPayload
	if err := msg.DecodePayload(&list); err != nil {
		log.Printf("❌ Ошибка разбора MapListPayload: %v", err)
		return
	}

	fmt.Printf("✅ Карт на сервере: %d\n", len(list.Maps))
	for _, info := range list.Maps {
		fmt.Printf("  📦 %s\n", info.Name)
	}
}

func (p *probeSession) testMapSnapshot(name string) {
	if err := p.send(protocol.MsgMapSnapshot, protocol.MapSnapshotPayload{Name: name}); err != nil {
		log.Printf("❌ Ошибка отправки MAP_SNAPSHOT: %v", err)
		return
	}

	msg, err := p.receive(10 * time.Second)
	if err != nil {
		log.Printf("❌ Ошибка чтения снапшота: %v", err)
		return
	}
	printPush(msg)
}

// follow слушает пуши, поддерживая соединение пингами
func (p *probeSession) follow() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		p.conn.Close()
	}()

	pingTicker := time.NewTicker(10 * time.Second)
	defer pingTicker.Stop()
	go func() {
		for range pingTicker.C {
			msg, err := protocol.NewMessage(protocol.MsgPing, protocol.PingPayload{Time: time.Now().UnixMilli()})
			if err != nil {
				continue
			}
			data, err := p.codec.Marshal(msg, protocol.CompressionNone)
			if err != nil {
				continue
			}
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := p.receive(time.Minute)
		if err != nil {
			fmt.Printf("👋 Соединение закрыто: %v\n", err)
			return
		}
		printPush(msg)
	}
}

// printPush печатает пуш-сообщение в читаемом виде
func printPush(msg *protocol.Message) {
	timestamp := time.Now().Format("15:04:05")

	switch msg.Type {
	case protocol.MsgMapSnapshot:
		var payload protocol.MapSnapshotPayload
		if err := msg.DecodePayload(&payload); err != nil {
			log.Printf("❌ Ошибка разбора MapSnapshotPayload: %v", err)
			return
		}
		snap, err := snapshot.Decode(payload.Snapshot)
		if err != nil {
			log.Printf("❌ Снапшот %s не разбирается: %v", payload.Name, err)
			return
		}
		fmt.Printf("[%s] 🏙️ Снапшот %s: %dx%d, уровней %d, рамп %d (%d байт)\n",
			timestamp, snap.Name, snap.Width, snap.Height, snap.MaxLevels,
			len(snap.Ramps), len(payload.Snapshot))

	case protocol.MsgMapDeleted:
		var payload protocol.MapDeletedPayload
		if err := msg.DecodePayload(&payload); err == nil {
			fmt.Printf("[%s] 🗑️ Карта удалена: %s\n", timestamp, payload.Name)
		}

	case protocol.MsgConfigUpdate:
		var payload protocol.ConfigUpdatePayload
		if err := msg.DecodePayload(&payload); err == nil {
			fmt.Printf("[%s] 📷 Конфигурация камеры: наклон %.1f°, дистанция %.1f, шаг %.0f°\n",
				timestamp, payload.Camera.DownAngleDeg, payload.Camera.Distance, payload.Camera.StepDegrees)
		}

	case protocol.MsgPong:
		// Пинги в режиме слежения не печатаем

	case protocol.MsgError:
		var payload protocol.ErrorPayload
		if err := msg.DecodePayload(&payload); err == nil {
			fmt.Printf("[%s] ❌ Ошибка %d: %s\n", timestamp, payload.Code, payload.Message)
		}

	default:
		fmt.Printf("[%s] ❓ Сообщение %s\n", timestamp, msg.Type)
	}
}

// restLogin получает JWT через REST, как это делает мобильный клиент
func restLogin(server, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://%s/api/auth/login", server)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("сервер вернул %s", resp.Status)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	if loginResp.Token == "" {
		return "", fmt.Errorf("в ответе нет токена")
	}
	return loginResp.Token, nil
}

func logHexDump(title string, data []byte) {
	fmt.Printf("=== %s HEX DUMP ===\n", title)
	const bytesPerLine = 16
	for i := 0; i < len(data); i += bytesPerLine {
		end := i + bytesPerLine
		if end > len(data) {
			end = len(data)
		}

		fmt.Printf("%08x: ", i)
		for j := i; j < end; j++ {
			fmt.Printf("%02x ", data[j])
		}
		for j := end; j < i+bytesPerLine; j++ {
			fmt.Printf("   ")
		}

		fmt.Printf(" |")
		for j := i; j < end; j++ {
			if data[j] >= 32 && data[j] < 127 {
				fmt.Printf("%c", data[j])
			} else {
				fmt.Printf(".")
			}
		}
		fmt.Printf("|\n")
	}
	fmt.Println()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
