package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"bchat/internal/app/dto"
	directorysvc "bchat/internal/app/services/directory"
	domainprofile "bchat/internal/domain/profile"
)

type ProfileHTTP interface {
	Online(c *gin.Context)
	UpdateMe(c *gin.Context)
	Presence(c *gin.Context)
}

type ProfileHandler struct {
	Directory *directorysvc.Service
	Logger    *slog.Logger
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

type presenceRequest struct {
	Online bool `json:"online"`
}

// Online lists currently online profiles for the user picker.
func (h ProfileHandler) Online(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	profiles, err := h.Directory.OnlineProfiles(c.Request.Context())
	if err != nil {
		h.respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapProfiles(profiles))
}

func (h ProfileHandler) UpdateMe(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	var (
		prof *domainprofile.Profile
		err  error
	)
	if req.DisplayName != nil {
		prof, err = h.Directory.Rename(c.Request.Context(), p.ID, *req.DisplayName)
		if err != nil {
			h.respondProfileError(c, err)
			return
		}
	}
	if req.AvatarURL != nil {
		prof, err = h.Directory.SetAvatar(c.Request.Context(), p.ID, *req.AvatarURL)
		if err != nil {
			h.respondProfileError(c, err)
			return
		}
	}
	if prof == nil {
		prof, err = h.Directory.ProfileByID(c.Request.Context(), p.ID)
		if err != nil {
			h.respondProfileError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, dto.MapProfile(prof))
}

// Presence records the caller's heartbeat. Clients post true on focus
// and false on teardown.
func (h ProfileHandler) Presence(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.Directory.SetPresence(c.Request.Context(), p.ID, req.Online); err != nil {
		h.respondProfileError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ProfileHandler) respondProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainprofile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
	case errors.Is(err, domainprofile.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("profile operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var _ ProfileHTTP = (*ProfileHandler)(nil)
