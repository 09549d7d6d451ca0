package api

import (
	"errors"
	"net/http"

	"github.com/behzadon/songvote/internal/auth"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/service"
	"github.com/behzadon/songvote/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service    service.Service
	sessions   *session.Manager
	jwtManager auth.JWTManagerInterface
	logger     *zap.Logger
}

func NewAuthHandler(service service.Service, sessions *session.Manager, jwtManager auth.JWTManagerInterface, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:    service,
		sessions:   sessions,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	voter, err := h.service.RegisterVoter(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
		default:
			h.logger.Error("failed to register voter", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "failed to register",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data": gin.H{
			"id":       voter.ID.String(),
			"username": voter.Username,
		},
	})
}

// Login exchanges credentials for a token and opens the voter's session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	voter, err := h.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		h.logger.Error("failed to authenticate voter", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "failed to login",
		})
		return
	}

	token, err := h.jwtManager.GenerateToken(voter)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "failed to generate token",
		})
		return
	}

	s, err := h.sessions.Open(c.Request.Context(), *voter)
	if err != nil {
		h.logger.Error("failed to open session",
			zap.Error(err),
			zap.String("voter_id", voter.ID.String()),
		)
		notice := domain.MessageFor(domain.KindOf(err))
		c.JSON(http.StatusForbidden, gin.H{
			"status":  "error",
			"kind":    notice.Kind,
			"message": notice.Text,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"token":  token,
		"data": gin.H{
			"voter": voter,
			"view":  s.Controller.View(),
		},
	})
}

// Logout discards the session and every pending point with it.
func (h *AuthHandler) Logout(c *gin.Context) {
	voterID, ok := c.MustGet(auth.ContextVoterID).(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "unauthorized",
		})
		return
	}

	h.sessions.Close(voterID)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}
