package controllers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wecare-app/wecare-backend/models"
)

func TestRegisterVerifyLoginFlow(t *testing.T) {
	r, db, _ := setupTest(t)

	w := doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":        "new@example.com",
		"password":     "password123",
		"display_name": "Newcomer",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Login is gated until the verification token is redeemed.
	w = doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "new@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
	require.NotEmpty(t, user.VerificationToken)
	require.NotEmpty(t, user.Pseudonym)

	w = doJSON(r, http.MethodGet, "/api/auth/verify-email/"+user.VerificationToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "new@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.NotEmpty(t, env.Data["token"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r, db, _ := setupTest(t)
	createUser(t, db, "taken@example.com", "Quiet Ash101")

	w := doJSON(r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "taken@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginBadCredentials(t *testing.T) {
	r, db, _ := setupTest(t)
	createUser(t, db, "a@example.com", "Quiet Ash101")

	w := doJSON(r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "a@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	r, db, _ := setupTest(t)
	user, token := createUser(t, db, "a@example.com", "Quiet Ash101")

	w := doJSON(r, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)

	var got models.User
	require.NoError(t, json.Unmarshal(env.Data["user"], &got))
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, user.ID, got.ID)
}
