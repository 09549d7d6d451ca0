package api

import (
	"errors"
	"net/http"

	"github.com/behzadon/songvote/internal/auth"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
	"github.com/behzadon/songvote/internal/service"
	"github.com/behzadon/songvote/internal/session"
	"github.com/behzadon/songvote/internal/tally"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const contextSession = "session"

type Handler struct {
	service     service.Service
	sessions    *session.Manager
	tally       *tally.Service
	feed        domain.ChangeFeed
	watcherCfg  tally.WatcherConfig
	logger      *zap.Logger
	rateLimiter *RateLimiter
	authHandler *AuthHandler
	jwtManager  auth.JWTManagerInterface
}

type Deps struct {
	Service    service.Service
	Sessions   *session.Manager
	Tally      *tally.Service
	Feed       domain.ChangeFeed
	WatcherCfg tally.WatcherConfig
	Redis      RedisClient
	JWTManager auth.JWTManagerInterface
	Logger     *zap.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		service:     d.Service,
		sessions:    d.Sessions,
		tally:       d.Tally,
		feed:        d.Feed,
		watcherCfg:  d.WatcherCfg,
		logger:      d.Logger,
		rateLimiter: NewRateLimiter(d.Redis, d.Logger),
		authHandler: NewAuthHandler(d.Service, d.Sessions, d.JWTManager, d.Logger),
		jwtManager:  d.JWTManager,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(metrics.MetricsMiddleware())

	r.POST("/api/auth/register", h.rateLimiter.BurstLimit(), h.authHandler.Register)
	r.POST("/api/auth/login", h.rateLimiter.BurstLimit(), h.authHandler.Login)
	r.GET("/api/songs", h.listSongs)
	r.GET("/api/tally", h.getTally)
	r.GET("/api/tally/:key", h.getTally)
	r.GET("/ws/tally/:key", h.streamTally)

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(h.jwtManager, h.logger))
	{
		api.POST("/auth/logout", h.authHandler.Logout)

		s := api.Group("/session")
		s.Use(h.requireSession())
		{
			s.GET("", h.getSession)
			s.GET("/view", h.getView)
			s.POST("/songs/:id/add", h.rateLimiter.RateLimit(), h.rateLimiter.BurstLimit(), h.addVote)
			s.POST("/songs/:id/remove", h.rateLimiter.RateLimit(), h.rateLimiter.BurstLimit(), h.removeVote)
			s.POST("/submit", h.rateLimiter.RateLimit(), h.rateLimiter.BurstLimit(), h.submit)
			s.POST("/visibility", h.visibility)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// requireSession resolves the voter's session, reopening it for a valid token
// whose session was lost, e.g. after a restart.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		voterID, ok := c.MustGet(auth.ContextVoterID).(uuid.UUID)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid voter id",
			})
			c.Abort()
			return
		}

		s, err := h.sessions.Get(voterID)
		if errors.Is(err, domain.ErrNoSession) {
			s, err = h.restoreSession(c, voterID)
		}
		if err != nil {
			h.respondError(c, err, "failed to open session")
			c.Abort()
			return
		}

		c.Set(contextSession, s)
		c.Next()
	}
}

func (h *Handler) restoreSession(c *gin.Context, voterID uuid.UUID) (*session.Session, error) {
	voter, err := h.service.GetVoterByID(c.Request.Context(), voterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return h.sessions.GetOrOpen(c.Request.Context(), *voter)
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(contextSession).(*session.Session)
}

// respondError maps an error to a status code and the user facing message.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrSessionExpired):
		status = http.StatusUnauthorized
		kind = domain.KindSessionExpired
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotConfigured), errors.Is(err, domain.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNetworkTransient):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error(fallback, zap.Error(err), zap.String("path", c.Request.URL.Path))
	}

	notice := domain.MessageFor(kind)
	c.JSON(status, gin.H{
		"status":  "error",
		"kind":    notice.Kind,
		"message": notice.Text,
		"notice":  notice,
	})
}

func (h *Handler) listSongs(c *gin.Context) {
	songs, err := h.service.ListSongs(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list songs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   songs,
	})
}

func (h *Handler) getSession(c *gin.Context) {
	s := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"voter":     s.Voter,
			"createdAt": s.CreatedAt,
		},
	})
}

func (h *Handler) getView(c *gin.Context) {
	s := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"view":       s.Controller.View(),
			"submitting": s.Controller.Submitting(),
		},
	})
}

func (h *Handler) songParam(c *gin.Context, s *session.Session) (uuid.UUID, bool) {
	songID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "invalid song id",
		})
		return uuid.Nil, false
	}
	if !s.Controller.HasSong(songID) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "song not found",
		})
		return uuid.Nil, false
	}
	return songID, true
}

func (h *Handler) addVote(c *gin.Context) {
	s := currentSession(c)
	songID, ok := h.songParam(c, s)
	if !ok {
		return
	}
	accepted := s.Controller.AddVote(songID)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"accepted": accepted,
			"view":     s.Controller.View(),
		},
	})
}

func (h *Handler) removeVote(c *gin.Context) {
	s := currentSession(c)
	songID, ok := h.songParam(c, s)
	if !ok {
		return
	}
	accepted := s.Controller.RemoveVote(songID)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"accepted": accepted,
			"view":     s.Controller.View(),
		},
	})
}

func (h *Handler) submit(c *gin.Context) {
	s := currentSession(c)
	result, err := s.Controller.SubmitPending(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSubmitInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		h.respondError(c, err, "failed to submit votes")
		return
	}

	data := gin.H{
		"result": result,
		"view":   s.Controller.View(),
	}
	if result.Points > 0 {
		data["notice"] = domain.SubmitNotice(result.Points)
	}
	if h.sessions.CloseIfFatal(s.Voter.ID, result) {
		data["signedOut"] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   data,
	})
}

func (h *Handler) visibility(c *gin.Context) {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
		})
		return
	}
	if req.Visible {
		currentSession(c).Bridge.Notify("visibility")
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status": "success",
	})
}

func (h *Handler) getTally(c *gin.Context) {
	ctx := c.Request.Context()
	song, err := h.tally.Resolve(ctx, c.Param("key"))
	if err != nil {
		h.respondError(c, err, "failed to resolve tally key")
		return
	}
	t, err := h.tally.Total(ctx, song)
	if err != nil {
		h.respondError(c, err, "failed to get tally")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   t,
	})
}
