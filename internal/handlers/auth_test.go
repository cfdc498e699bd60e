package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hospital-app-server/internal/config"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/utils"
)

func authConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 testSecret,
		JWTRefreshSecret:          "refresh",
		JWTExpirationMinutes:      5,
		JWTRefreshExpirationHours: 1,
		Environment:               "test",
	}
}

func authRouter(db *gorm.DB) *gin.Engine {
	h := NewAuthHandler(db, authConfig(), zap.NewNop())
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh-token", h.RefreshToken)
	return r
}

func refreshFor(t *testing.T, userID string) string {
	t.Helper()
	pair, err := utils.GenerateTokens(&models.User{BaseModel: models.BaseModel{ID: userID}, Role: models.RolePatient}, authConfig())
	require.NoError(t, err)
	return pair.RefreshToken
}

func storedTokenRows(token, userID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "is_revoked"}).
		AddRow("rt-1", userID, token, time.Now().Add(time.Hour), false)
}

func TestRegisterCreatesPatientOnly(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs("new@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := do(authRouter(db), http.MethodPost, "/auth/register", "", map[string]string{
		"firstName": "Nia",
		"lastName":  "Okafor",
		"email":     "New@Example.com",
		"password":  "s3cret-pass",
		"role":      "admin",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, `"role":"patient"`)
	assert.Contains(t, body, `"email":"new@example.com"`)
	assert.NotContains(t, body, "s3cret-pass")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := do(authRouter(db), http.MethodPost, "/auth/register", "", map[string]string{
		"firstName": "Nia",
		"lastName":  "Okafor",
		"email":     "taken@example.com",
		"password":  "s3cret-pass",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	db, mock := newMockDB(t)
	u := models.User{}
	require.NoError(t, u.SetPassword("correct-horse"))
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WithArgs("ann@example.com", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password", "role", "is_active"}).
			AddRow(patientA, "ann@example.com", u.Password, "patient", false))

	w := do(authRouter(db), http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "ann@example.com",
		"password": "correct-horse",
	})

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Account is deactivated", decode(t, w).Error)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRotates(t *testing.T) {
	db, mock := newMockDB(t)
	presented := refreshFor(t, patientA)

	mock.ExpectQuery("SELECT \\* FROM `refresh_tokens`").
		WillReturnRows(storedTokenRows(presented, patientA))
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows(patientA, models.RolePatient, true))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `refresh_tokens` SET `is_revoked`=\\?").
		WithArgs(true, sqlmock.AnyArg(), "rt-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `refresh_tokens`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := do(authRouter(db), http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": presented})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data, ok := decode(t, w).Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["accessToken"])
	assert.NotEqual(t, presented, data["refreshToken"])
	assert.True(t, strings.HasPrefix(w.Header().Get("Set-Cookie"), refreshCookie+"="))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenLosesConcurrentRotation(t *testing.T) {
	db, mock := newMockDB(t)
	presented := refreshFor(t, patientA)

	mock.ExpectQuery("SELECT \\* FROM `refresh_tokens`").
		WillReturnRows(storedTokenRows(presented, patientA))
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows(patientA, models.RolePatient, true))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `refresh_tokens`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	w := do(authRouter(db), http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": presented})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenKeepsOldTokenWhenStoreFails(t *testing.T) {
	db, mock := newMockDB(t)
	presented := refreshFor(t, patientA)

	mock.ExpectQuery("SELECT \\* FROM `refresh_tokens`").
		WillReturnRows(storedTokenRows(presented, patientA))
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows(patientA, models.RolePatient, true))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `refresh_tokens`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `refresh_tokens`").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	w := do(authRouter(db), http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": presented})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRejectsRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	presented := refreshFor(t, patientA)

	mock.ExpectQuery("SELECT \\* FROM `refresh_tokens`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "is_revoked"}).
			AddRow("rt-1", patientA, presented, time.Now().Add(time.Hour), true))

	w := do(authRouter(db), http.MethodPost, "/auth/refresh-token", "", map[string]string{"refreshToken": presented})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
