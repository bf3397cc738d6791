package controllers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wecare-app/wecare-backend/middleware"
	"github.com/wecare-app/wecare-backend/models"
	"github.com/wecare-app/wecare-backend/utils"
)

// AuthController handles signup, email verification, and session endpoints.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates an account with a bcrypt hash and a generated pseudonym,
// then sends the verification link. Login is gated on verification.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required,min=6"`
		DisplayName string `json:"display_name"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "user already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Email:             email,
		PasswordHash:      hash,
		DisplayName:       utils.Sanitize(strings.TrimSpace(req.DisplayName)),
		Pseudonym:         utils.GeneratePseudonym(),
		VerificationToken: newVerificationToken(),
		RegisterIP:        ctx.ClientIP(),
	}

	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	// Best-effort delivery; the token stays on the account so support can
	// resend manually when SMTP is down.
	if err := utils.SendVerificationMail(user.Email, user.VerificationToken); err != nil {
		utils.Sugar.Warnf("verification mail to %s failed: %v", user.Email, err)
	}

	utils.Success(ctx, gin.H{"message": "user registered, verification email sent"})
}

// VerifyEmail marks the account behind a verification token as verified.
func (a *AuthController) VerifyEmail(ctx *gin.Context) {
	token := strings.TrimSpace(ctx.Param("token"))
	if token == "" {
		utils.Error(ctx, http.StatusBadRequest, 40010, "missing verification token")
		return
	}

	var user models.User
	if err := a.db.Where("verification_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusBadRequest, 40011, "invalid or expired token")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to verify email")
		return
	}

	user.IsVerified = true
	user.VerificationToken = ""
	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to verify email")
		return
	}

	utils.Success(ctx, gin.H{"message": "email verified, you can now log in"})
}

// Login checks credentials and issues a JWT carrying id + pseudonym.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "user not found")
		return
	}
	if !user.IsVerified {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "please verify your email")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid credentials")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Pseudonym, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout revokes the presented token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusBadRequest, 40012, "missing token")
		return
	}
	tokenString := strings.TrimSpace(parts[1])

	expiresAt := time.Now().Add(72 * time.Hour)
	if claims, err := utils.ParseToken(tokenString); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(tokenString, expiresAt)

	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated account.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

func newVerificationToken() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:40]
	}
	return hex.EncodeToString(b)
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func getPseudonym(ctx *gin.Context) string {
	value, exists := ctx.Get(middleware.ContextPseudonymKey)
	if !exists {
		return ""
	}
	s, _ := value.(string)
	if s == "" {
		return "Anonymous"
	}
	return s
}
