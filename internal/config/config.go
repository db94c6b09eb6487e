package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxcity/internal/camera"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/world/citygen"
)

// Config корневая структура конфигурации сервера.
// Все секции имеют рабочие значения по умолчанию, пустой конфиг валиден.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Storage   StorageConfig       `yaml:"storage"`
	Redis     RedisConfig         `yaml:"redis"`
	EventBus  EventBusConfig      `yaml:"eventbus"`
	Journal   JournalConfig       `yaml:"journal"`
	Auth      AuthConfig          `yaml:"auth"`
	Camera    camera.CameraConfig `yaml:"camera"`
	Maps      MapsConfig          `yaml:"maps"`
	Webhook   WebhookConfig       `yaml:"webhook"`
	Logging   LoggingConfig       `yaml:"logging"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
}

// ServerConfig задает порты внешних поверхностей. WebSocket-канал живет
// на REST-порту (GET /ws), отдельного порта у него нет.
type ServerConfig struct {
	ID          string `yaml:"id"`          // идентификатор узла в исходящих событиях
	Environment string `yaml:"environment"` // development | staging | production
	RESTPort    int    `yaml:"rest_port"`
	KCPPort     int    `yaml:"kcp_port"`
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetKCPPort возвращает KCP порт с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "GAME_KCP_PORT", 7777)
}

// StorageConfig выбирает бэкенд хранилища карт.
type StorageConfig struct {
	Backend     string `yaml:"backend"`      // badger | file
	DataPath    string `yaml:"data_path"`    // каталог badger
	SnapshotDir string `yaml:"snapshot_dir"` // каталог файлового бэкенда
}

// RedisConfig подключает лидерборд и кеш. При Enabled=false сервер
// работает на внутренних заменах (memory-кеш, без лидерборда).
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventBusConfig описывает шину событий. Пустой URL означает
// внутрипроцессную шину без JetStream. MetricsAddr поднимает отдельный
// Prometheus-экспортер счетчиков шины (например ":2112"); пустая строка
// выключает его.
type EventBusConfig struct {
	URL         string `yaml:"url"`
	Stream      string `yaml:"stream"`
	Retention   int    `yaml:"retention_hours"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// RetentionOrDefault возвращает срок хранения потока
func (e *EventBusConfig) RetentionOrDefault() time.Duration {
	if e.Retention <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.Retention) * time.Hour
}

// JournalConfig управляет журналом событий.
type JournalConfig struct {
	BatchSize  int  `yaml:"batch_size"`
	FlushEvery int  `yaml:"flush_every_seconds"`
	Compress   bool `yaml:"compress"`
}

// BatchSizeOrDefault возвращает ёмкость пакета записей
func (j *JournalConfig) BatchSizeOrDefault() int {
	if j.BatchSize <= 0 {
		return 256
	}
	return j.BatchSize
}

// FlushInterval возвращает период сброса журнала
func (j *JournalConfig) FlushInterval() time.Duration {
	if j.FlushEvery <= 0 {
		return 5 * time.Second
	}
	return time.Duration(j.FlushEvery) * time.Second
}

// AuthConfig выбирает репозиторий пользователей и секрет подписи JWT.
type AuthConfig struct {
	Backend   string      `yaml:"backend"`    // memory | mongo | maria
	JWTSecret string      `yaml:"jwt_secret"` // base64, минимум 32 байта
	Mongo     MongoConfig `yaml:"mongo"`
	Maria     MariaConfig `yaml:"maria"`
}

// MongoConfig параметры MongoDB-репозитория пользователей.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// MariaConfig параметры MariaDB: пользователи и прогресс.
type MariaConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MapsConfig перечисляет карты, которые сервер генерирует при старте,
// если их еще нет в хранилище.
type MapsConfig struct {
	Autogen []MapSpec `yaml:"autogen"`
}

// MapSpec описывает одну автогенерируемую карту.
type MapSpec struct {
	Name   string `yaml:"name"`
	Recipe string `yaml:"recipe"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Seed   int64  `yaml:"seed"`
}

// WebhookConfig настраивает входящие webhook'и REST-сервера.
type WebhookConfig struct {
	SecretKey        string `yaml:"secret_key"`
	RequireSignature bool   `yaml:"require_signature"`
	EnableLogging    bool   `yaml:"enable_logging"`
}

// LoggingConfig задает уровень консоли и каталог файловых логов.
type LoggingConfig struct {
	Level string `yaml:"level"` // trace|debug|info|warn|error
	Dir   string `yaml:"dir"`
}

// TelemetryConfig включает экспорт трейсов по OTLP/HTTP.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // host:port коллектора
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default возвращает конфигурацию одноузлового сервера без внешних
// зависимостей: память вместо Redis/NATS/MongoDB, badger для карт.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ID:          "voxcity_01",
			Environment: "development",
		},
		Storage: StorageConfig{
			Backend:  "badger",
			DataPath: "./data/maps",
		},
		Journal: JournalConfig{
			BatchSize:  256,
			FlushEvery: 5,
			Compress:   true,
		},
		Auth: AuthConfig{
			Backend: "memory",
		},
		Camera: camera.DefaultCameraConfig(),
		Maps: MapsConfig{
			Autogen: []MapSpec{
				{Name: "classic", Recipe: citygen.RecipeClassic, Width: 40, Height: 40},
				{Name: "scattered", Recipe: citygen.RecipeScattered, Width: 40, Height: 40},
			},
		},
		Webhook: WebhookConfig{
			EnableLogging: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1.0,
		},
	}
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пробует ENV GAME_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность секций до запуска сервера.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "badger", "file":
	default:
		return fmt.Errorf("неизвестный бэкенд хранилища: %q", c.Storage.Backend)
	}

	switch c.Auth.Backend {
	case "", "memory", "mongo", "maria":
	default:
		return fmt.Errorf("неизвестный бэкенд аутентификации: %q", c.Auth.Backend)
	}

	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("секция camera: %w", err)
	}

	known := make(map[string]bool)
	for _, r := range citygen.Recipes() {
		known[r] = true
	}
	seen := make(map[string]bool)
	for i, spec := range c.Maps.Autogen {
		if spec.Name == "" {
			return fmt.Errorf("maps.autogen[%d]: пустое имя карты", i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("maps.autogen: имя %q повторяется", spec.Name)
		}
		seen[spec.Name] = true
		if !known[spec.Recipe] {
			return fmt.Errorf("maps.autogen[%d]: неизвестный рецепт %q", i, spec.Recipe)
		}
		if spec.Width <= 0 || spec.Height <= 0 {
			return fmt.Errorf("maps.autogen[%d]: размеры должны быть положительными", i)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("секция logging: %w", err)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio должен быть в [0,1], получено %v", c.Telemetry.SampleRatio)
	}

	return nil
}
