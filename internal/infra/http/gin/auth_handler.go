package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"bchat/internal/app/dto"
	authsvc "bchat/internal/app/services/auth"
	directorysvc "bchat/internal/app/services/directory"
	domainidentity "bchat/internal/domain/identity"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	LogoutAll(c *gin.Context)
	Me(c *gin.Context)
}

type AuthHandler struct {
	Service   *authsvc.Service
	Directory *directorysvc.Service
	Logger    *slog.Logger
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h AuthHandler) Register(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := h.Service.Register(c.Request.Context(), authsvc.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAuthResponse(result.Identity, result.Profile, result.Token))
}

func (h AuthHandler) Login(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := h.Service.Login(c.Request.Context(), authsvc.LoginParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAuthResponse(result.Identity, result.Profile, result.Token))
}

// Logout drops the session and flips the profile offline, the same
// sequence a closing client runs.
func (h AuthHandler) Logout(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	p, ok := currentPrincipal(c)
	token := p.Token
	if token == "" {
		token = extractBearerToken(c.GetHeader("Authorization"))
	}
	if err := h.Service.Logout(c.Request.Context(), token); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("logout failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	if ok && h.Directory != nil {
		if err := h.Directory.SetPresence(c.Request.Context(), p.ID, false); err != nil && h.Logger != nil {
			h.Logger.Warn("presence update on logout failed", "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// LogoutAll revokes every session of the caller, the "sign out
// everywhere" action.
func (h AuthHandler) LogoutAll(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return
	}
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if err := h.Service.LogoutAll(c.Request.Context(), p.ID); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("logout all failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	if h.Directory != nil {
		if err := h.Directory.SetPresence(c.Request.Context(), p.ID, false); err != nil && h.Logger != nil {
			h.Logger.Warn("presence update on logout failed", "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory service unavailable"})
		return
	}
	prof, err := h.Directory.ProfileByID(c.Request.Context(), p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	resp := dto.MapProfile(prof)
	c.JSON(http.StatusOK, gin.H{"email": p.Email, "profile": resp})
}

func (h AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, authsvc.ErrPasswordTooShort),
		errors.Is(err, domainidentity.ErrEmailRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainidentity.ErrEmailAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("auth operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var _ AuthHTTP = (*AuthHandler)(nil)
