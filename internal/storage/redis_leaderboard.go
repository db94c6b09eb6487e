package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/voxcity/internal/logging"
)

// tickBand — ширина полосы очков на одного спасённого заложника.
// Внутри полосы меньшая длительность сессии даёт больший счёт.
const tickBand uint64 = 1_000_000_000_000

// RedisLeaderboard ведёт таблицы лидеров по картам в Redis sorted sets.
// Счёт собирается из числа спасённых и длительности сессии: больше
// спасённых всегда выше, при равенстве быстрее сессия выше.
type RedisLeaderboard struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// LeaderboardEntry — строка таблицы лидеров
type LeaderboardEntry struct {
	Username string `json:"username"`
	Rescued  int    `json:"rescued"`
	Ticks    uint64 `json:"ticks"`
	Rank     int64  `json:"rank"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни таблиц (0 — бессрочно)
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		KeyPrefix: "voxcity:lb:",
		TTL:       30 * 24 * time.Hour,
	}
}

// NewRedisLeaderboard создаёт таблицу лидеров поверх Redis
func NewRedisLeaderboard(config *RedisConfig) (*RedisLeaderboard, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logging.Info("🔴 Подключение к Redis установлено: %s", config.Addr)
	return &RedisLeaderboard{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

func (lb *RedisLeaderboard) key(mapName string) string {
	return lb.keyPrefix + mapName
}

// composeScore упаковывает итог в счёт sorted set. Обратная операция —
// decomposeScore; обе работают в пределах точности float64.
func composeScore(rescued int, ticks uint64) float64 {
	if ticks >= tickBand {
		ticks = tickBand - 1
	}
	return float64(rescued)*float64(tickBand) + float64(tickBand-1-ticks)
}

func decomposeScore(score float64) (rescued int, ticks uint64) {
	band := float64(tickBand)
	rescued = int(score / band)
	rem := score - float64(rescued)*band
	ticks = tickBand - 1 - uint64(rem)
	return rescued, ticks
}

// Submit записывает итог игрока. Худший результат не затирает лучший.
func (lb *RedisLeaderboard) Submit(ctx context.Context, mapName, username string, rescued int, ticks uint64) error {
	if mapName == "" || username == "" {
		return fmt.Errorf("пустое имя карты или игрока")
	}
	if rescued < 0 {
		return fmt.Errorf("отрицательное число спасённых: %d", rescued)
	}

	key := lb.key(mapName)
	score := composeScore(rescued, ticks)

	existing, err := lb.client.ZScore(ctx, key, username).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("ошибка чтения счёта: %w", err)
	}
	if err == nil && existing >= score {
		return nil // Уже есть результат не хуже
	}

	if err := lb.client.ZAdd(ctx, key, &redis.Z{Score: score, Member: username}).Err(); err != nil {
		return fmt.Errorf("ошибка записи счёта: %w", err)
	}
	if lb.ttl > 0 {
		lb.client.Expire(ctx, key, lb.ttl)
	}
	return nil
}

// Top возвращает первые n строк таблицы лидеров карты
func (lb *RedisLeaderboard) Top(ctx context.Context, mapName string, n int64) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := lb.client.ZRevRangeWithScores(ctx, lb.key(mapName), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы лидеров: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		name, ok := row.Member.(string)
		if !ok {
			continue
		}
		rescued, ticks := decomposeScore(row.Score)
		entries = append(entries, LeaderboardEntry{
			Username: name,
			Rescued:  rescued,
			Ticks:    ticks,
			Rank:     int64(i) + 1,
		})
	}
	return entries, nil
}

// Rank возвращает позицию игрока в таблице (с единицы).
// Второй результат false, если игрок в таблице отсутствует.
func (lb *RedisLeaderboard) Rank(ctx context.Context, mapName, username string) (int64, bool, error) {
	rank, err := lb.client.ZRevRank(ctx, lb.key(mapName), username).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения позиции: %w", err)
	}
	return rank + 1, true, nil
}

// Remove удаляет игрока из таблицы карты
func (lb *RedisLeaderboard) Remove(ctx context.Context, mapName, username string) error {
	if err := lb.client.ZRem(ctx, lb.key(mapName), username).Err(); err != nil {
		return fmt.Errorf("ошибка удаления из таблицы: %w", err)
	}
	return nil
}

// Size возвращает число игроков в таблице карты
func (lb *RedisLeaderboard) Size(ctx context.Context, mapName string) (int64, error) {
	n, err := lb.client.ZCard(ctx, lb.key(mapName)).Result()
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта таблицы: %w", err)
	}
	return n, nil
}

// Close закрывает соединение с Redis
func (lb *RedisLeaderboard) Close() error {
	return lb.client.Close()
}
