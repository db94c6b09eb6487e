package auth

import (
	"errors"
	"fmt"

	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol"
)

// GameAuthenticator связывает репозиторий пользователей с REST-логином и
// аутентификацией push-каналов. Логин и регистрация выдают JWT, канал
// предъявляет этот JWT в рукопожатии MsgAuth.
type GameAuthenticator struct {
	userRepo UserRepository
}

// AuthResult содержит результат успешного логина или регистрации
type AuthResult struct {
	User      *User
	Token     string
	ExpiresAt int64 // Unix-время истечения токена
}

// NewGameAuthenticator создает новый аутентификатор поверх репозитория
func NewGameAuthenticator(repo UserRepository) *GameAuthenticator {
	return &GameAuthenticator{userRepo: repo}
}

// Login проверяет учетные данные и выдает свежий JWT
func (ga *GameAuthenticator) Login(username, password string) (*AuthResult, error) {
	user, err := ga.userRepo.ValidateCredentials(username, password)
	if err != nil {
		logging.Warn("❌ Неудачная аутентификация пользователя %s: %v", username, err)
		return nil, err
	}

	token, expiresAt, err := GenerateJWTWithExpiry(user)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи JWT: %w", err)
	}

	logging.Info("✅ Успешная аутентификация пользователя %s (ID: %d)", user.Username, user.ID)
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Register создает новую учетную запись и сразу выдает JWT.
// Возвращает ErrUserExists при занятом имени и ошибки политики паролей.
func (ga *GameAuthenticator) Register(username, password string) (*AuthResult, error) {
	if username == "" {
		return nil, errors.New("имя пользователя не может быть пустым")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user, err := ga.userRepo.CreateUser(username, hash, false)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := GenerateJWTWithExpiry(user)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи JWT: %w", err)
	}

	logging.Info("🎫 Зарегистрирован пользователь %s (ID: %d)", user.Username, user.ID)
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate выполняет аутентификацию push-канала по JWT из рукопожатия.
// Ошибки проверки токена не возвращаются как error: канал получает
// Success=false с причиной, error зарезервирован для отказов хранилища.
func (ga *GameAuthenticator) Authenticate(req *protocol.AuthRequest) (*protocol.AuthResponse, error) {
	if req == nil || req.Token == "" {
		return &protocol.AuthResponse{
			Success: false,
			Message: "Требуется JWT токен, получите его через /api/auth/login",
		}, nil
	}

	claims, err := ParseClaims(req.Token)
	if err != nil {
		logging.Warn("❌ Ошибка валидации JWT канала: %v", err)
		return &protocol.AuthResponse{
			Success: false,
			Message: "Недействительный JWT токен",
		}, nil
	}

	user, err := ga.userRepo.GetUserByID(claims.PlayerID)
	if err == ErrUserNotFound {
		logging.Warn("❌ Пользователь с ID %d из JWT не найден", claims.PlayerID)
		return &protocol.AuthResponse{
			Success: false,
			Message: "Пользователь не найден",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	logging.Info("✅ JWT аутентификация канала: %s (ID: %d)", user.Username, user.ID)
	return &protocol.AuthResponse{
		Success:  true,
		PlayerID: user.ID,
		Username: user.Username,
		Message:  "Аутентификация успешна",
	}, nil
}

// Users открывает доступ к репозиторию для статистики админ-эндпоинта
func (ga *GameAuthenticator) Users() UserRepository {
	return ga.userRepo
}
