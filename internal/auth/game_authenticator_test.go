package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxcity/internal/network"
	"github.com/annel0/voxcity/internal/protocol"
)

// Аутентификатор обязан подходить к рукопожатию push-канала.
var _ network.ChannelAuthenticator = (*GameAuthenticator)(nil)

func newTestAuthenticator(t *testing.T) *GameAuthenticator {
	t.Helper()
	repo := newTestRepo(t)
	return NewGameAuthenticator(repo)
}

func TestGameAuthenticator_Login(t *testing.T) {
	ga := newTestAuthenticator(t)

	result, err := ga.Login("test", "test")
	require.NoError(t, err)
	require.NotNil(t, result.User)
	assert.Equal(t, "test", result.User.Username)
	assert.NotEmpty(t, result.Token)
	assert.Greater(t, result.ExpiresAt, int64(0))

	claims, err := ParseClaims(result.Token)
	require.NoError(t, err, "Выданный токен обязан проходить валидацию")
	assert.Equal(t, result.User.ID, claims.PlayerID)
	assert.False(t, claims.IsAdmin)
}

func TestGameAuthenticator_LoginAdmin(t *testing.T) {
	ga := newTestAuthenticator(t)

	result, err := ga.Login("admin", "admin")
	require.NoError(t, err)

	claims, err := ParseClaims(result.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin, "Токен администратора обязан нести админский флаг")
}

func TestGameAuthenticator_LoginRejectsBadCredentials(t *testing.T) {
	ga := newTestAuthenticator(t)

	_, err := ga.Login("test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = ga.Login("nobody", "test")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGameAuthenticator_Register(t *testing.T) {
	ga := newTestAuthenticator(t)

	result, err := ga.Register("newplayer", "pass123")
	require.NoError(t, err)
	assert.Equal(t, "newplayer", result.User.Username)
	assert.False(t, result.User.IsAdmin, "Саморегистрация не должна выдавать админские права")
	assert.NotEmpty(t, result.Token)

	// Свежая учетная запись сразу проходит логин.
	_, err = ga.Login("newplayer", "pass123")
	require.NoError(t, err)
}

func TestGameAuthenticator_RegisterValidation(t *testing.T) {
	ga := newTestAuthenticator(t)

	_, err := ga.Register("", "pass123")
	assert.Error(t, err, "Пустое имя обязано отклоняться")

	_, err = ga.Register("shorty", "abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = ga.Register("test", "pass123")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestGameAuthenticator_AuthenticateChannel(t *testing.T) {
	ga := newTestAuthenticator(t)

	login, err := ga.Login("test", "test")
	require.NoError(t, err)

	resp, err := ga.Authenticate(&protocol.AuthRequest{Token: login.Token})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, login.User.ID, resp.PlayerID)
	assert.Equal(t, "test", resp.Username)
}

func TestGameAuthenticator_AuthenticateRejectsGarbage(t *testing.T) {
	ga := newTestAuthenticator(t)

	resp, err := ga.Authenticate(&protocol.AuthRequest{Token: "not.a.token"})
	require.NoError(t, err, "Плохой токен не ошибка транспорта")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)

	resp, err = ga.Authenticate(&protocol.AuthRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	resp, err = ga.Authenticate(nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestGameAuthenticator_AuthenticateUnknownUser(t *testing.T) {
	ga := newTestAuthenticator(t)

	// Токен подписан нами, но пользователя с таким ID нет.
	ghost := &User{ID: 12345, Username: "ghost"}
	token, err := GenerateJWT(ghost)
	require.NoError(t, err)

	resp, err := ga.Authenticate(&protocol.AuthRequest{Token: token})
	require.NoError(t, err)
	assert.False(t, resp.Success, "Токен удаленного пользователя не должен проходить")
}
