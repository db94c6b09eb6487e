package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxcity/internal/auth"
	"github.com/annel0/voxcity/internal/cache"
	"github.com/annel0/voxcity/internal/camera"
	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/journal"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/middleware"
	"github.com/annel0/voxcity/internal/network"
	"github.com/annel0/voxcity/internal/protocol/events"
	"github.com/annel0/voxcity/internal/protocol/replay"
	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/world/citygen"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// restSource — имя источника для событий, порождённых REST-слоем
const restSource = "rest_api"

const serverVersion = "v0.1.0"

// Карты больше этого размера через REST не генерируются
const maxGeneratedMapSize = 512

// RestServer представляет REST API сервер
type RestServer struct {
	router      *gin.Engine
	httpServer  *http.Server
	port        string
	authn       *auth.GameAuthenticator
	maps        *cache.MapCache
	leaderboard *storage.RedisLeaderboard
	history     *journal.Reader
	replayer    *replay.Player
	push        *network.PushServer
	metrics     *ServerMetrics
	game        *gameMetrics

	cameraMu  sync.RWMutex
	cameraCfg camera.CameraConfig

	webhookConfig    WebhookConfig
	outboundWebhooks *OutboundWebhookManager
}

// Config содержит конфигурацию для REST сервера.
// Auth и Maps обязательны, остальные зависимости опциональны:
// соответствующие эндпоинты отвечают 503, пока подсистема не подключена.
type Config struct {
	Port        string                    // адрес для запуска сервера, например ":8088"
	Auth        *auth.GameAuthenticator   // аутентификация и репозиторий пользователей
	Maps        *cache.MapCache           // кеш карт поверх постоянного хранилища
	Leaderboard *storage.RedisLeaderboard // таблица рекордов (nil без Redis)
	History     *journal.Reader           // читатель журнала событий
	Replayer    *replay.Player            // воспроизведение журнала в шину
	Push        *network.PushServer       // push-сервер для /ws и сетевого статуса
	Camera      camera.CameraConfig       // стартовая конфигурация камеры
	Webhook     WebhookConfig             // настройки входящих webhook'ов
	ServerID    string                    // идентификатор сервера в исходящих событиях
	Environment string                    // окружение: development, staging, production
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServerID == "" {
		config.ServerID = "voxcity_01"
	}
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.Camera.Validate() != nil {
		config.Camera = camera.DefaultCameraConfig()
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger("/health", "/metrics")
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware(restSource))

	promMw := middleware.NewPrometheusMiddleware(restSource)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:           router,
		port:             config.Port,
		authn:            config.Auth,
		maps:             config.Maps,
		leaderboard:      config.Leaderboard,
		history:          config.History,
		replayer:         config.Replayer,
		push:             config.Push,
		metrics:          NewServerMetrics(),
		game:             newGameMetrics(prometheus.DefaultRegisterer),
		cameraCfg:        config.Camera,
		webhookConfig:    config.Webhook,
		outboundWebhooks: NewOutboundWebhookManager(config.ServerID, config.Environment),
	}

	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Группа API
	api := rs.router.Group("/api")

	// Эндпоинты аутентификации (без JWT защиты)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", rs.handleLogin)
		authGroup.POST("/register", rs.handleRegister)
	}

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/stats", rs.handleStats)
		protected.GET("/server", rs.handleServerInfo)

		// Карты: чтение доступно всем аутентифицированным,
		// генерация и удаление только админам
		protected.GET("/maps", rs.handleMaps)
		protected.GET("/maps/:name", rs.handleGetMap)
		protected.POST("/maps/generate", rs.adminMiddleware(), rs.handleGenerateMap)
		protected.DELETE("/maps/:name", rs.adminMiddleware(), rs.handleDeleteMap)

		// Конфигурация камеры
		protected.GET("/camera-config", rs.handleCameraConfig)
		protected.PUT("/camera-config", rs.adminMiddleware(), rs.handleUpdateCameraConfig)

		// Таблица рекордов
		protected.GET("/leaderboard/:map", rs.handleLeaderboard)
		protected.POST("/leaderboard/:map", rs.handleSubmitScore)

		// Журнал событий
		protected.GET("/history", rs.handleHistory)

		// Административные эндпоинты (только для админов)
		admin := protected.Group("/admin")
		admin.Use(rs.adminMiddleware())
		{
			admin.POST("/register", rs.handleAdminRegister)
			admin.GET("/status", rs.handleAdminStatus)
			admin.POST("/replay", rs.handleReplay)

			// Управление исходящими webhook'ами
			admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
			admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
			admin.GET("/webhooks/:id", rs.handleGetOutboundWebhook)
			admin.PUT("/webhooks/:id", rs.handleUpdateOutboundWebhook)
			admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
			admin.POST("/webhooks/:id/test", rs.handleTestOutboundWebhook)
			admin.GET("/webhooks/events", rs.handleGetWebhookEventTypes)
			admin.POST("/events/send", rs.handleSendEvent)
		}
	}

	// Webhook (без аутентификации, но с валидацией подписи)
	api.POST("/webhook", rs.HandleWebhook)

	// Health check
	rs.router.GET("/health", rs.handleHealth)

	// WebSocket вход push-сервера едет на том же порту
	if rs.push != nil {
		rs.router.GET("/ws", gin.WrapF(rs.push.HandleWS))
	}
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	Message   string `json:"message"`
	UserID    uint64 `json:"user_id,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// RegisterRequest представляет запрос на саморегистрацию
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminRegisterRequest представляет запрос на создание пользователя админом
type AdminRegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

// GenerateMapRequest описывает параметры генерации карты
type GenerateMapRequest struct {
	Name   string `json:"name" binding:"required"`
	Recipe string `json:"recipe" binding:"required"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seed   int64  `json:"seed"`
}

// SubmitScoreRequest описывает результат забега для таблицы рекордов
type SubmitScoreRequest struct {
	Rescued int    `json:"rescued"`
	Ticks   uint64 `json:"ticks" binding:"required"`
}

// ReplayRequest описывает фильтр воспроизведения журнала
type ReplayRequest struct {
	Names      []string   `json:"names"`
	EventTypes []string   `json:"event_types"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
	Limit      int        `json:"limit"`
	Speed      float64    `json:"speed"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	result, err := rs.authn.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверное имя пользователя или пароль",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	rs.outboundWebhooks.SendEvent("user.login", map[string]interface{}{
		"username": result.User.Username,
		"user_id":  result.User.ID,
		"ip":       c.ClientIP(),
	})

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     result.Token,
		Message:   "Успешная авторизация",
		UserID:    result.User.ID,
		IsAdmin:   result.User.IsAdmin,
		ExpiresAt: result.ExpiresAt,
	})
}

// handleRegister обрабатывает саморегистрацию. Созданная учетная запись
// не имеет прав администратора, токен выдается сразу.
func (rs *RestServer) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	result, err := rs.authn.Register(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, LoginResponse{
			Success: false,
			Message: "Пользователь уже существует",
		})
		return
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Не удалось создать пользователя",
		})
		return
	}

	rs.outboundWebhooks.SendEvent("user.created", map[string]interface{}{
		"username": result.User.Username,
		"user_id":  result.User.ID,
	})

	c.JSON(http.StatusCreated, LoginResponse{
		Success:   true,
		Token:     result.Token,
		Message:   "Пользователь успешно создан",
		UserID:    result.User.ID,
		ExpiresAt: result.ExpiresAt,
	})
}

// handleAdminRegister обрабатывает регистрацию нового пользователя (только для админов)
func (rs *RestServer) handleAdminRegister(c *gin.Context) {
	var req AdminRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	// Валидация входных данных
	if len(req.Username) < 3 || len(req.Username) > 30 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Имя пользователя должно быть от 3 до 30 символов",
		})
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	// Хешируем пароль
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка обработки пароля",
		})
		return
	}

	// Создаем пользователя
	user, err := rs.authn.Users().CreateUser(req.Username, passwordHash, req.IsAdmin)
	if errors.Is(err, auth.ErrUserExists) {
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: "Пользователь уже существует",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка создания пользователя",
		})
		return
	}

	rs.outboundWebhooks.SendEvent("user.created", map[string]interface{}{
		"username": user.Username,
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
	})

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Пользователь успешно создан",
		Data: map[string]interface{}{
			"user_id":  user.ID,
			"username": user.Username,
			"is_admin": user.IsAdmin,
		},
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	// Статистика пользователей
	if userStats, err := rs.authn.Users().Stats(); err == nil {
		stats["users"] = userStats
	}

	// Количество карт в хранилище
	if names, err := rs.maps.Names(); err == nil {
		stats["maps"] = len(names)
	}

	// Подключенные игровые клиенты
	if rs.push != nil {
		stats["network"] = map[string]interface{}{
			"clients": rs.push.GetClientCount(),
		}
	}

	// Метрики сервера
	stats["server"] = rs.metrics.Snapshot()
	stats["memory_details"] = rs.metrics.MemoryDetails()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleServerInfo возвращает информацию о сервере
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB := rs.metrics.MemoryMB()
	cpuPercent, _ := rs.metrics.ProcessCPU()

	info := map[string]interface{}{
		"version":     serverVersion,
		"name":        "VoxCity Server",
		"status":      "running",
		"uptime":      rs.metrics.Uptime(),
		"memory_mb":   fmt.Sprintf("%.1f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

// === КАРТЫ ===

// handleMaps возвращает список карт
func (rs *RestServer) handleMaps(c *gin.Context) {
	names, err := rs.maps.Names()
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения списка карт",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список карт",
		Data: map[string]interface{}{
			"maps":  names,
			"total": len(names),
		},
	})
}

// handleGetMap возвращает снапшот карты по имени
func (rs *RestServer) handleGetMap(c *gin.Context) {
	name := c.Param("name")
	if !storage.ValidMapName(name) {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Недопустимое имя карты",
		})
		return
	}

	snap, err := rs.maps.Load(c.Request.Context(), name)
	if errors.Is(err, storage.ErrMapNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Карта не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка загрузки карты",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Карта найдена",
		Data:    snap,
	})
}

// handleGenerateMap генерирует карту по рецепту и сохраняет её (только для админов)
func (rs *RestServer) handleGenerateMap(c *gin.Context) {
	var req GenerateMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	if !storage.ValidMapName(req.Name) {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Недопустимое имя карты",
		})
		return
	}

	if req.Width <= 0 {
		req.Width = 40
	}
	if req.Height <= 0 {
		req.Height = 40
	}
	if req.Width > maxGeneratedMapSize || req.Height > maxGeneratedMapSize {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Размер карты не может превышать %d", maxGeneratedMapSize),
		})
		return
	}

	start := time.Now()
	grid, _, err := citygen.Generate(req.Recipe, req.Width, req.Height, req.Seed)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}
	elapsed := time.Since(start)

	snap := snapshot.FromGrid(req.Name, grid)
	if err := rs.maps.Save(c.Request.Context(), snap); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка сохранения карты",
		})
		return
	}

	rs.game.observeGeneration(req.Recipe, elapsed)
	logging.Info("🏙️ Карта %q сгенерирована рецептом %s (%dx%d)", req.Name, req.Recipe, req.Width, req.Height)
	rs.publishMapEvent(c.Request.Context(), events.MapSaved, req.Name)

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Карта сгенерирована",
		Data: map[string]interface{}{
			"name":   req.Name,
			"recipe": req.Recipe,
			"width":  snap.Width,
			"height": snap.Height,
			"ramps":  len(snap.Ramps),
		},
	})
}

// handleDeleteMap удаляет карту (только для админов)
func (rs *RestServer) handleDeleteMap(c *gin.Context) {
	name := c.Param("name")
	if !storage.ValidMapName(name) {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Недопустимое имя карты",
		})
		return
	}

	err := rs.maps.Delete(c.Request.Context(), name)
	if errors.Is(err, storage.ErrMapNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Карта не найдена",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка удаления карты",
		})
		return
	}

	logging.Info("🗑️ Карта %q удалена", name)
	rs.publishMapEvent(c.Request.Context(), events.MapDeleted, name)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Карта удалена",
	})
}

// publishMapEvent рассылает событие map.* в шину. Полезная нагрузка —
// голый MapEvent, как его ждут подписчики push-сервера.
func (rs *RestServer) publishMapEvent(ctx context.Context, eventType, name string) {
	env, err := eventbus.NewEnvelope(restSource, eventType, events.MapEvent{Name: name})
	if err != nil {
		return
	}
	if err := eventbus.Publish(ctx, env); err != nil {
		logging.Warn("Не удалось опубликовать %s для карты %s: %v", eventType, name, err)
	}
}

// === КОНФИГУРАЦИЯ КАМЕРЫ ===

// handleCameraConfig возвращает текущую конфигурацию камеры
func (rs *RestServer) handleCameraConfig(c *gin.Context) {
	rs.cameraMu.RLock()
	cfg := rs.cameraCfg
	rs.cameraMu.RUnlock()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Конфигурация камеры",
		Data:    cfg,
	})
}

// handleUpdateCameraConfig заменяет конфигурацию камеры целиком (только
// для админов). Новое значение валидируется до применения и рассылается
// подключенным клиентам через шину событий.
func (rs *RestServer) handleUpdateCameraConfig(c *gin.Context) {
	var cfg camera.CameraConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат конфигурации: " + err.Error(),
		})
		return
	}

	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	rs.cameraMu.Lock()
	rs.cameraCfg = cfg
	rs.cameraMu.Unlock()
	rs.game.cameraUpdated()

	// Push-сервер ждет в payload голую конфигурацию, без обертки события
	env, err := eventbus.NewEnvelope(restSource, events.CameraConfigUpdated, cfg)
	if err == nil {
		env.Priority = 6
		if pubErr := eventbus.Publish(c.Request.Context(), env); pubErr != nil {
			logging.Warn("Не удалось опубликовать обновление камеры: %v", pubErr)
		}
	}

	logging.Info("📷 Конфигурация камеры обновлена администратором (ID: %v)", c.GetUint64("player_id"))

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Конфигурация камеры обновлена",
		Data:    cfg,
	})
}

// CameraConfig возвращает актуальную конфигурацию камеры. Используется
// игровым слоем как источник значения при старте сессий.
func (rs *RestServer) CameraConfig() camera.CameraConfig {
	rs.cameraMu.RLock()
	defer rs.cameraMu.RUnlock()
	return rs.cameraCfg
}

// === ТАБЛИЦА РЕКОРДОВ ===

// handleLeaderboard возвращает топ таблицы рекордов карты
func (rs *RestServer) handleLeaderboard(c *gin.Context) {
	if rs.leaderboard == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Таблица рекордов отключена",
		})
		return
	}

	name := c.Param("map")
	if !storage.ValidMapName(name) {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Недопустимое имя карты",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	entries, err := rs.leaderboard.Top(c.Request.Context(), name, int64(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения таблицы рекордов",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Таблица рекордов",
		Data: map[string]interface{}{
			"map":     name,
			"entries": entries,
			"total":   len(entries),
		},
	})
}

// handleSubmitScore записывает результат забега текущего пользователя.
// Лучший результат сохраняется на стороне Redis, худший не затирает его.
func (rs *RestServer) handleSubmitScore(c *gin.Context) {
	if rs.leaderboard == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Таблица рекордов отключена",
		})
		return
	}

	name := c.Param("map")
	if !storage.ValidMapName(name) {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Недопустимое имя карты",
		})
		return
	}

	var req SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Rescued < 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат результата",
		})
		return
	}

	username := c.GetString("username")
	if err := rs.leaderboard.Submit(c.Request.Context(), name, username, req.Rescued, req.Ticks); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка записи результата",
		})
		return
	}

	rank, ranked, err := rs.leaderboard.Rank(c.Request.Context(), name, username)
	data := map[string]interface{}{
		"map":     name,
		"rescued": req.Rescued,
		"ticks":   req.Ticks,
	}
	if err == nil && ranked {
		data["rank"] = rank
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Результат записан",
		Data:    data,
	})
}

// === ЖУРНАЛ СОБЫТИЙ ===

// handleHistory возвращает записи журнала по фильтру из query-параметров:
// name, source, from/to (RFC3339), limit.
func (rs *RestServer) handleHistory(c *gin.Context) {
	if rs.history == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Журнал событий отключен",
		})
		return
	}

	q := journal.Query{
		Name:   c.Query("name"),
		Source: c.Query("source"),
	}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Параметр from должен быть в формате RFC3339",
			})
			return
		}
		q.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Параметр to должен быть в формате RFC3339",
			})
			return
		}
		q.To = t
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	q.Limit = limit

	records, err := rs.history.Records(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения журнала",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Записи журнала",
		Data: map[string]interface{}{
			"records": records,
			"total":   len(records),
		},
	})
}

// handleReplay запускает воспроизведение журнала в шину (только для
// админов). Воспроизведение идет в фоне, ответ возвращается сразу.
func (rs *RestServer) handleReplay(c *gin.Context) {
	if rs.replayer == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Success: false,
			Message: "Воспроизведение журнала отключено",
		})
		return
	}

	var req ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	filter := replay.ReplayFilter{
		Names:     req.Names,
		StartTime: req.From,
		EndTime:   req.To,
		Limit:     req.Limit,
	}
	for _, t := range req.EventTypes {
		filter.EventTypes = append(filter.EventTypes, events.EventType(t))
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	go func() {
		session, err := rs.replayer.Play(context.Background(), filter, speed)
		if err != nil {
			logging.Error("❌ Воспроизведение журнала не удалось: %v", err)
			return
		}
		logging.Info("🔄 Воспроизведение %s завершено: %d событий", session.ID, session.Replayed)
	}()

	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Воспроизведение запущено",
		Data: map[string]interface{}{
			"speed": speed,
			"limit": req.Limit,
		},
	})
}

// === АДМИНИСТРИРОВАНИЕ ===

// handleAdminStatus возвращает полный статус сервера: сетевой монитор,
// статистику пользователей и метрики процесса
func (rs *RestServer) handleAdminStatus(c *gin.Context) {
	status := make(map[string]interface{})

	if rs.push != nil {
		status["network"] = rs.push.Monitor().Status()
	}

	if userStats, err := rs.authn.Users().Stats(); err == nil {
		status["users"] = userStats
	}

	status["server"] = rs.metrics.Snapshot()
	status["memory_details"] = rs.metrics.MemoryDetails()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статус сервера",
		Data:    status,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// === ОБРАБОТЧИКИ ИСХОДЯЩИХ WEBHOOK'ОВ ===

// handleGetOutboundWebhooks возвращает список исходящих webhook'ов
func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	webhooks := rs.outboundWebhooks.GetWebhooks()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список webhook'ов получен",
		Data: map[string]interface{}{
			"webhooks": webhooks,
			"total":    len(webhooks),
		},
	})
}

// handleCreateOutboundWebhook создает новый исходящий webhook
func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var webhook OutboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат webhook'а: " + err.Error(),
		})
		return
	}

	if webhook.Name == "" || webhook.URL == "" || len(webhook.Events) == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Обязательные поля: name, url, events",
		})
		return
	}

	createdWebhook := rs.outboundWebhooks.AddWebhook(webhook)

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Webhook создан успешно",
		Data:    createdWebhook,
	})
}

// handleGetOutboundWebhook возвращает webhook по ID
func (rs *RestServer) handleGetOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	webhook := rs.outboundWebhooks.GetWebhook(id)
	if webhook == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook найден",
		Data:    webhook,
	})
}

// handleUpdateOutboundWebhook обновляет webhook
func (rs *RestServer) handleUpdateOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	var updates OutboundWebhook
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат обновлений: " + err.Error(),
		})
		return
	}

	updatedWebhook := rs.outboundWebhooks.UpdateWebhook(id, updates)
	if updatedWebhook == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook обновлен успешно",
		Data:    updatedWebhook,
	})
}

// handleDeleteOutboundWebhook удаляет webhook
func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	if !rs.outboundWebhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook удален успешно",
	})
}

// handleTestOutboundWebhook тестирует webhook отправкой тестового события
func (rs *RestServer) handleTestOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	webhook := rs.outboundWebhooks.GetWebhook(id)
	if webhook == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	rs.outboundWebhooks.SendEvent("webhook.test", map[string]interface{}{
		"webhook_id":   id,
		"webhook_name": webhook.Name,
		"test_time":    time.Now().Unix(),
		"message":      "Это тестовое сообщение от игрового сервера",
	})

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Тестовое событие отправлено",
		Data: map[string]interface{}{
			"webhook_id": id,
			"sent_at":    time.Now().Unix(),
		},
	})
}

// handleGetWebhookEventTypes возвращает доступные типы событий
func (rs *RestServer) handleGetWebhookEventTypes(c *gin.Context) {
	eventTypes := rs.outboundWebhooks.GetEventTypes()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Типы событий получены",
		Data: map[string]interface{}{
			"event_types": eventTypes,
			"total":       len(eventTypes),
		},
	})
}

// handleSendEvent позволяет админам отправлять кастомные события
func (rs *RestServer) handleSendEvent(c *gin.Context) {
	var request struct {
		EventType string                 `json:"event_type" binding:"required"`
		Data      map[string]interface{} `json:"data"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}

	rs.outboundWebhooks.SendEvent(request.EventType, request.Data)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Событие отправлено",
		Data: map[string]interface{}{
			"event_type": request.EventType,
			"sent_at":    time.Now().Unix(),
		},
	})
}

// AttachBus подписывает менеджер исходящих webhook'ов на шину событий:
// игровые события уходят внешним подписчикам без участия обработчиков.
func (rs *RestServer) AttachBus(ctx context.Context, bus eventbus.EventBus) error {
	return rs.outboundWebhooks.AttachBus(ctx, bus)
}

// Handler возвращает корневой HTTP-обработчик сервера (для тестов)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер в фоне. Ошибки прослушивания порта
// логируются из горутины, сам вызов не блокирует.
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:    rs.port,
		Handler: rs.router,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	logging.Info("✅ REST API сервер запущен на http://localhost%s", rs.port)
	logging.Info("📋 Доступные эндпоинты:")
	logging.Info("   GET  /health                 - Проверка состояния")
	logging.Info("   GET  /metrics                - Метрики Prometheus")
	logging.Info("   GET  /ws                     - WebSocket подключение")
	logging.Info("   POST /api/auth/login         - Вход в систему")
	logging.Info("   POST /api/auth/register      - Регистрация")
	logging.Info("   GET  /api/maps               - Список карт (требует JWT)")
	logging.Info("   GET  /api/maps/:name         - Снапшот карты (требует JWT)")
	logging.Info("   GET  /api/camera-config      - Конфигурация камеры (требует JWT)")
	logging.Info("   GET  /api/leaderboard/:map   - Таблица рекордов (требует JWT)")
	logging.Info("   GET  /api/history            - Журнал событий (требует JWT)")
	logging.Info("   POST /api/maps/generate      - Генерация карты (только админы)")
	logging.Info("   GET  /api/admin/status       - Статус сервера (только админы)")
	logging.Info("   POST /api/webhook            - Webhook эндпоинт")

	return nil
}

// Stop останавливает REST сервер, дожидаясь завершения активных запросов
func (rs *RestServer) Stop() error {
	logging.Info("🛑 Остановка REST API сервера...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rs.outboundWebhooks.Stop()

	if rs.httpServer != nil {
		if err := rs.httpServer.Shutdown(ctx); err != nil {
			logging.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
			return err
		}
	}

	logging.Info("✅ REST API сервер остановлен")
	return nil
}
