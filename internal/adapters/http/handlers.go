package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/adapters/assistant"
	"github.com/nexus-ai/callmate/internal/app"
)

type handlers struct {
	ctrl      CallController
	auth      AuthService
	summaries SummaryService
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (h *handlers) signIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, assistant.ErrAuthFailed) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("signin failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "authentication service unavailable"})
		return
	}
	h.storeUser(c, res)
	c.JSON(http.StatusOK, gin.H{"user": res.User})
}

func (h *handlers) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	res, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, assistant.ErrAuthFailed) {
			c.JSON(http.StatusConflict, gin.H{"error": "account could not be created"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("signup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "authentication service unavailable"})
		return
	}
	h.storeUser(c, res)
	c.JSON(http.StatusOK, gin.H{"user": res.User})
}

func (h *handlers) storeUser(c *gin.Context, res *assistant.AuthResult) {
	if res.User == nil {
		return
	}
	sess := sessions.Default(c)
	sess.Set("user_id", string(res.User.ID))
	sess.Set("email", res.User.Email)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save failed")
	}
}

func (h *handlers) startCall(c *gin.Context) {
	if err := h.ctrl.Start(c.Request.Context()); err != nil {
		if errors.Is(err, app.ErrCallInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a call is already in progress"})
			return
		}
		// Setup failures surface as one human-readable message; the
		// coordinator already moved to the Error state.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "snapshot": h.ctrl.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *handlers) endCall(c *gin.Context) {
	h.ctrl.End()
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *handlers) setMuted(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	if err := h.ctrl.SetMuted(req.Muted); err != nil {
		if errors.Is(err, app.ErrNotInCall) {
			c.JSON(http.StatusConflict, gin.H{"error": "no live call"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *handlers) callState(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *handlers) callSummary(c *gin.Context) {
	room := c.Param("room")
	sum, err := h.summaries.CallSummary(c.Request.Context(), room)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", room).Msg("summary fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "summary unavailable"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *handlers) recentCalls(c *gin.Context) {
	calls, err := h.summaries.RecentCalls(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("recent calls fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "recent calls unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}
