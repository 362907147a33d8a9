package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/config"
	"github.com/suteetoe/restohub/pkg/jwtutil"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login and the caller's own account.
type AuthHandler struct {
	db      *gorm.DB
	jwt     *jwtutil.JWTUtil
	loader  *principal.Loader
	audit   audit.Recorder
	lockout config.AuthConfig
	now     func() time.Time
}

func NewAuthHandler(db *gorm.DB, jwt *jwtutil.JWTUtil, loader *principal.Loader, rec audit.Recorder, lockout config.AuthConfig) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, loader: loader, audit: rec, lockout: lockout, now: time.Now}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *RegisterRequest) normalize() { r.Email = normalizeEmail(r.Email) }

func (r *LoginRequest) normalize() { r.Email = normalizeEmail(r.Email) }

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// Register creates an account with no roles or restaurants.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)

	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}
	email := req.Email

	user, err := createUser(h.db, email, req.Password, req.Name)
	if err != nil {
		return err
	}

	prometheus.RegisterCounter.Inc()
	log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	h.audit.Record(c.Request().Context(), audit.Entry{
		ActorID:    user.ID,
		Action:     "user.register",
		Resource:   "user",
		ResourceID: uintString(user.ID),
		IPAddress:  c.RealIP(),
		RequestID:  middleware.RequestID(c),
	})

	return c.JSON(http.StatusCreated, newUserResponse(principal.FromUser(user)))
}

// Login checks credentials and the lockout window. A locked account is refused with 423
// before the password is looked at.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}
	email := req.Email
	now := h.now()

	var user model.User
	err := h.db.WithContext(c.Request().Context()).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("Login for unknown email", zap.String("email", email))
		prometheus.RecordLogin("invalid_credentials")
		return apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return apperror.Internal(err)
	}

	if user.IsLocked(now) {
		log.Info("Login refused, account locked", zap.Uint("user_id", user.ID), zap.Timep("locked_until", user.LockedUntil))
		prometheus.RecordLogin("locked")
		return apperror.Locked("account is temporarily locked")
	}

	if !user.Active {
		prometheus.RecordLogin("disabled")
		return apperror.New(http.StatusForbidden, apperror.CodeAccountDisabled, "account is disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return h.failLogin(c, &user, now)
	}

	if err := h.db.Model(&user).Updates(map[string]interface{}{
		"login_attempts": 0,
		"locked_until":   nil,
		"last_login_at":  now,
	}).Error; err != nil {
		return apperror.Internal(err)
	}

	p, err := h.loader.Load(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return apperror.Internal(err)
	}

	prometheus.RecordLogin("success")
	log.Info("User logged in", zap.Uint("user_id", user.ID), zap.Int("restaurants", len(p.Memberships)))

	return c.JSON(http.StatusOK, LoginResponse{Token: token, User: newUserResponse(p)})
}

func (h *AuthHandler) failLogin(c echo.Context, user *model.User, now time.Time) error {
	log := logger.FromEcho(c)

	attempts := user.LoginAttempts + 1
	updates := map[string]interface{}{"login_attempts": attempts}
	locked := h.lockout.MaxLoginAttempts > 0 && attempts >= h.lockout.MaxLoginAttempts
	if locked {
		updates["locked_until"] = now.Add(h.lockout.LockoutDuration)
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		return apperror.Internal(err)
	}

	if locked {
		log.Warn("Account locked after failed logins", zap.Uint("user_id", user.ID), zap.Int("attempts", attempts))
		prometheus.RecordLogin("locked")
		h.audit.Record(c.Request().Context(), audit.Entry{
			ActorID:    user.ID,
			Action:     "user.lock",
			Resource:   "user",
			ResourceID: uintString(user.ID),
			Payload:    map[string]int{"attempts": attempts},
			IPAddress:  c.RealIP(),
			RequestID:  middleware.RequestID(c),
		})
		return apperror.Locked("account is temporarily locked")
	}

	log.Info("Invalid password", zap.Uint("user_id", user.ID), zap.Int("attempts", attempts))
	prometheus.RecordLogin("invalid_credentials")
	return apperror.Unauthorized("invalid credentials")
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(p))
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}

	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var user model.User
	if err := h.db.WithContext(c.Request().Context()).First(&user, p.ID).Error; err != nil {
		return notFoundOr(err, "user not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return apperror.BadRequest("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := h.db.Model(&user).Update("password", string(hash)).Error; err != nil {
		return apperror.Internal(err)
	}

	logger.FromEcho(c).Info("Password changed")
	recordAudit(c, h.audit, "user.password_change", "user", user.ID, nil)
	return c.NoContent(http.StatusNoContent)
}

// createUser hashes password and inserts an active user. Duplicate emails are a Conflict.
func createUser(db *gorm.DB, email, password, name string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	user := &model.User{Email: email, Password: string(hash), Name: strings.TrimSpace(name), Active: true}
	if err := db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, apperror.Internal(err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
