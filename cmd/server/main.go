package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxcity/internal/api"
	"github.com/annel0/voxcity/internal/auth"
	"github.com/annel0/voxcity/internal/cache"
	"github.com/annel0/voxcity/internal/config"
	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/journal"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/network"
	"github.com/annel0/voxcity/internal/observability"
	"github.com/annel0/voxcity/internal/protocol/events"
	"github.com/annel0/voxcity/internal/protocol/replay"
	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/storage_adapter"
	"github.com/annel0/voxcity/internal/world/citygen"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

const serverSource = "server"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию ENV GAME_CONFIG)")
	flag.Parse()

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	if err := logging.InitDefaultLoggerAt(cfg.Logging.Dir, "server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetConsoleLevel(level)
	}

	logging.Info("🎮 Запуск VoxCity Server...")

	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	kcpAddr := fmt.Sprintf(":%d", cfg.Server.GetKCPPort())
	logging.Info("📡 Конфигурация сервера: KCP=%s, REST API=%s, окружение=%s",
		kcpAddr, restAddr, cfg.Server.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	var telemetryShutdown func(context.Context) error
	if cfg.Telemetry.Enabled {
		telemetryShutdown, err = observability.InitTelemetry(ctx, "voxcity-server", observability.Options{
			Endpoint:    cfg.Telemetry.Endpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			logging.Warn("⚠️ Телеметрия не запустилась, продолжаем без трейсов: %v", err)
		} else {
			logging.Info("📈 Телеметрия активна, коллектор: %s", cfg.Telemetry.Endpoint)
		}
	}

	// === АУТЕНТИФИКАЦИЯ ===
	if cfg.Auth.JWTSecret != "" {
		if err := auth.SetJWTSecret(cfg.Auth.JWTSecret); err != nil {
			log.Fatalf("❌ Некорректный auth.jwt_secret: %v", err)
		}
		logging.Info("🔑 JWT секрет загружен из конфигурации")
	} else {
		logging.Warn("⚠️ auth.jwt_secret не задан: токены не переживут перезапуск сервера")
	}

	userRepo, err := buildUserRepo(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка создания репозитория пользователей: %v", err)
	}
	authenticator := auth.NewGameAuthenticator(userRepo)
	logging.Info("🔐 Репозиторий пользователей: %s", authBackendName(cfg))

	// === ХРАНИЛИЩЕ КАРТ ===
	mapStore, batchStore, closeStore, err := buildMapStore(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища карт: %v", err)
	}
	logging.Info("💾 Хранилище карт: %s", cfg.Storage.Backend)

	// === ШИНА СОБЫТИЙ ===
	bus, closeBus, err := buildEventBus(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения шины событий: %v", err)
	}
	eventbus.Init(bus)

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil && level <= logging.DEBUG {
		if err := eventbus.StartLoggingListener(bus); err != nil {
			logging.Warn("⚠️ Отладочный слушатель шины не запустился: %v", err)
		}
	}

	var busMetrics *eventbus.MetricsExporter
	if cfg.EventBus.MetricsAddr != "" {
		busMetrics = eventbus.NewMetricsExporter(bus)
		busMetrics.StartHTTP(cfg.EventBus.MetricsAddr)
	}

	// === ЖУРНАЛ СОБЫТИЙ ===
	compressor, err := buildCompressor(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка создания компрессора журнала: %v", err)
	}
	eventJournal := journal.NewJournal(batchStore, compressor,
		cfg.Journal.BatchSizeOrDefault(), cfg.Journal.FlushInterval())
	if err := eventJournal.Attach(ctx, bus); err != nil {
		log.Fatalf("❌ Ошибка подписки журнала на шину: %v", err)
	}
	historyReader := journal.NewReader(batchStore, compressor)
	replayer := replay.NewPlayer(historyReader, bus)

	// === КЕШ КАРТ ===
	cacheRepo, invalidator, closeCache, err := buildMapCacheRepo(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка создания кеша карт: %v", err)
	}
	mapCache := cache.NewMapCache(cacheRepo, mapStore, invalidator, 5*time.Minute)
	if err := mapCache.AttachInvalidations(ctx); err != nil {
		logging.Warn("⚠️ Подписка на инвалидации кеша не удалась: %v", err)
	}

	// === ТАБЛИЦА ЛИДЕРОВ ===
	var leaderboard *storage.RedisLeaderboard
	if cfg.Redis.Enabled {
		lbConfig := storage.DefaultRedisConfig()
		lbConfig.Addr = cfg.Redis.Addr
		lbConfig.Password = cfg.Redis.Password
		lbConfig.DB = cfg.Redis.DB
		leaderboard, err = storage.NewRedisLeaderboard(lbConfig)
		if err != nil {
			log.Fatalf("❌ Ошибка подключения таблицы лидеров: %v", err)
		}
		logging.Info("🏆 Таблица лидеров активна: %s", cfg.Redis.Addr)
	}

	// === PUSH-СЕРВЕР (KCP + WS) ===
	pushServer := network.NewPushServer(kcpAddr, network.DefaultChannelConfig(network.ChannelKCP), mapStore)
	pushServer.SetAuthenticator(authenticator)
	if err := pushServer.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска push-сервера: %v", err)
	}
	if err := pushServer.AttachBus(ctx, bus); err != nil {
		log.Fatalf("❌ Ошибка подписки push-сервера на шину: %v", err)
	}

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port:        restAddr,
		Auth:        authenticator,
		Maps:        mapCache,
		Leaderboard: leaderboard,
		History:     historyReader,
		Replayer:    replayer,
		Push:        pushServer,
		Camera:      cfg.Camera,
		Webhook: api.WebhookConfig{
			SecretKey:        cfg.Webhook.SecretKey,
			RequireSignature: cfg.Webhook.RequireSignature,
			EnableLogging:    cfg.Webhook.EnableLogging,
		},
		ServerID:    cfg.Server.ID,
		Environment: cfg.Server.Environment,
	})
	if err := restServer.AttachBus(ctx, bus); err != nil {
		log.Fatalf("❌ Ошибка подписки webhook-менеджера на шину: %v", err)
	}
	if err := restServer.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска REST API: %v", err)
	}

	// === АВТОГЕНЕРАЦИЯ КАРТ ===
	generateStartupMaps(ctx, cfg, mapCache, bus)

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🎮 Игровые каналы: KCP %s, WebSocket ws://localhost%s/ws", kcpAddr, restAddr)
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	if err := restServer.Stop(); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := pushServer.Stop(); err != nil {
		logging.Error("❌ Ошибка остановки push-сервера: %v", err)
	}

	// Отписываем потребителей шины до финального сброса журнала
	cancel()
	eventJournal.Stop()
	if busMetrics != nil {
		busMetrics.Stop()
	}

	if invalidator != nil {
		if err := invalidator.Close(); err != nil {
			logging.Error("❌ Ошибка остановки инвалидатора кеша: %v", err)
		}
	}
	if closeCache != nil {
		if err := closeCache(); err != nil {
			logging.Error("❌ Ошибка остановки кеша карт: %v", err)
		}
	}
	if leaderboard != nil {
		if err := leaderboard.Close(); err != nil {
			logging.Error("❌ Ошибка остановки таблицы лидеров: %v", err)
		}
	}
	if err := closeStore(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища карт: %v", err)
	}
	if closer, ok := userRepo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logging.Error("❌ Ошибка закрытия репозитория пользователей: %v", err)
		}
	}
	if closeBus != nil {
		closeBus()
	}
	if telemetryShutdown != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка остановки телеметрии: %v", err)
		}
		shutdownCancel()
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// buildUserRepo выбирает репозиторий пользователей по конфигурации.
func buildUserRepo(cfg *config.Config) (auth.UserRepository, error) {
	switch cfg.Auth.Backend {
	case "", "memory":
		return auth.NewMemoryUserRepo()
	case "mongo":
		return auth.NewMongoUserRepo(auth.MongoConfig{
			URI:      cfg.Auth.Mongo.URI,
			Database: cfg.Auth.Mongo.Database,
		})
	case "maria":
		return auth.NewMariaUserRepo(auth.MariaConfig{
			Host:     cfg.Auth.Maria.Host,
			Port:     cfg.Auth.Maria.Port,
			Database: cfg.Auth.Maria.Database,
			Username: cfg.Auth.Maria.Username,
			Password: cfg.Auth.Maria.Password,
		})
	default:
		return nil, fmt.Errorf("неизвестный бэкенд аутентификации: %q", cfg.Auth.Backend)
	}
}

func authBackendName(cfg *config.Config) string {
	if cfg.Auth.Backend == "" {
		return "memory"
	}
	return cfg.Auth.Backend
}

// buildMapStore открывает постоянное хранилище карт и подбирает к нему
// хранилище пакетов журнала. Badger держит журнал рядом с картами; у
// файлового бэкенда журнал живёт в памяти процесса.
func buildMapStore(cfg *config.Config) (storage.MapStore, journal.BatchStore, func() error, error) {
	switch cfg.Storage.Backend {
	case "file":
		dir := cfg.Storage.SnapshotDir
		if dir == "" {
			dir = "./data/snapshots"
		}
		fileStore, err := storage_adapter.NewFileSnapshotStore(dir, true)
		if err != nil {
			return nil, nil, nil, err
		}
		logging.Warn("⚠️ Файловый бэкенд: журнал событий не переживёт перезапуск")
		return fileStore, journal.NewMemoryBatchStore(), fileStore.Flush, nil
	default:
		badgerStore, err := storage.NewMapStorage(cfg.Storage.DataPath)
		if err != nil {
			return nil, nil, nil, err
		}
		return badgerStore, badgerStore.Journal(), badgerStore.Close, nil
	}
}

// buildEventBus подключает JetStream при заданном URL, иначе поднимает
// внутрипроцессную шину.
func buildEventBus(cfg *config.Config) (eventbus.EventBus, func(), error) {
	if cfg.EventBus.URL == "" {
		logging.Info("🚌 Шина событий: внутрипроцессная")
		return eventbus.NewMemoryBus(1024), nil, nil
	}

	stream := cfg.EventBus.Stream
	if stream == "" {
		stream = "VOXCITY_EVENTS"
	}
	jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, stream, cfg.EventBus.RetentionOrDefault())
	if err != nil {
		return nil, nil, err
	}
	logging.Info("🚌 Шина событий: JetStream %s (поток %s)", cfg.EventBus.URL, stream)
	return jsBus, jsBus.Close, nil
}

func buildCompressor(cfg *config.Config) (journal.Compressor, error) {
	if cfg.Journal.Compress {
		return journal.NewZstdCompressor()
	}
	return journal.NewPassthroughCompressor(), nil
}

// buildMapCacheRepo собирает слой кеша: Redis в кластерной конфигурации,
// память в одноузловой. Инвалидатор появляется только когда есть и Redis,
// и NATS, иначе узлам нечего рассылать.
func buildMapCacheRepo(cfg *config.Config) (cache.CacheRepo, cache.CacheInvalidator, func() error, error) {
	if !cfg.Redis.Enabled {
		memCache := cache.NewMemoryCache(nil, 5*time.Minute)
		return memCache, nil, memCache.Close, nil
	}

	var invalidator cache.CacheInvalidator
	if cfg.EventBus.URL != "" {
		natsInv, err := cache.NewNATSInvalidator(&cache.InvalidatorConfig{
			NATSURL: cfg.EventBus.URL,
		}, cfg.Server.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("NATS инвалидатор: %w", err)
		}
		invalidator = natsInv
	}

	// MapCache сам рассылает инвалидации и пишет в хранилище, кешу
	// остаётся только горячий слой.
	redisCache, err := cache.NewRedisCache(&cache.CacheConfig{
		RedisURL:      cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		DefaultTTL:    5 * time.Minute,
	}, nil, nil)
	if err != nil {
		if invalidator != nil {
			_ = invalidator.Close()
		}
		return nil, nil, nil, err
	}
	return redisCache, invalidator, redisCache.Close, nil
}

// generateStartupMaps создаёт карты из maps.autogen, которых ещё нет в
// хранилище, и прогревает кеш. Ошибка генерации одной карты не валит
// сервер: остальные карты и так доступны.
func generateStartupMaps(ctx context.Context, cfg *config.Config, maps *cache.MapCache, bus eventbus.EventBus) {
	names := make([]string, 0, len(cfg.Maps.Autogen))
	for _, spec := range cfg.Maps.Autogen {
		names = append(names, spec.Name)

		exists, err := maps.Has(ctx, spec.Name)
		if err != nil {
			logging.Error("❌ Проверка карты %s: %v", spec.Name, err)
			continue
		}
		if exists {
			continue
		}

		grid, ramps, err := citygen.Generate(spec.Recipe, spec.Width, spec.Height, spec.Seed)
		if err != nil {
			logging.Error("❌ Генерация карты %s (%s): %v", spec.Name, spec.Recipe, err)
			continue
		}
		if err := maps.Save(ctx, snapshot.FromGrid(spec.Name, grid)); err != nil {
			logging.Error("❌ Сохранение карты %s: %v", spec.Name, err)
			continue
		}
		logging.Info("🏙️ Карта %s сгенерирована: рецепт %s, %dx%d, рамп: %d",
			spec.Name, spec.Recipe, spec.Width, spec.Height, len(ramps))

		env, err := eventbus.NewEnvelope(serverSource, events.MapGenerated, events.MapEvent{Name: spec.Name})
		if err == nil {
			env.Priority = 5
			if pubErr := bus.Publish(ctx, env); pubErr != nil {
				logging.Warn("⚠️ Событие о карте %s не опубликовано: %v", spec.Name, pubErr)
			}
		}
	}

	if len(names) > 0 {
		maps.Warm(ctx, names)
	}
}
