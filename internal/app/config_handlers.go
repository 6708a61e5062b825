package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"calendar-service/internal/calendar"
	"calendar-service/internal/store"
)

type createConfigReq struct {
	BusinessHours    calendar.BusinessHours `json:"business_hours" binding:"required"`
	SlotDurationMins int                    `json:"slot_duration_minutes" binding:"required"`
	BufferMins       int                    `json:"buffer_minutes"`
	Timezone         string                 `json:"timezone" binding:"required"`
	LookaheadDays    int                    `json:"lookahead_days"`
}

// POST /api/agents/:id/calendar-config
// Enables booking for an agent against the tenant's authorized calendar. The
// credential's current account is recorded so account-switch reconciliation
// can later restore this config.
func (a *App) CreateCalendarConfigHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")
	var req createConfigReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	cred, err := a.Store.ActiveCredentialByTenant(ctx, tenant)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "calendar not authorized for tenant", "action": "authorize"})
			return
		}
		a.respondError(c, err)
		return
	}

	cfg := &calendar.CalendarConfig{
		TenantID:           tenant,
		AgentID:            agentID,
		CredentialID:       cred.ID,
		BusinessHours:      req.BusinessHours,
		SlotDurationMins:   req.SlotDurationMins,
		BufferMins:         req.BufferMins,
		Timezone:           req.Timezone,
		LookaheadDays:      req.LookaheadDays,
		Active:             true,
		CreatedWithAccount: cred.AccountEmail,
	}
	if cfg.LookaheadDays == 0 {
		cfg.LookaheadDays = 14
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.Store.InsertConfig(ctx, cfg); err != nil {
		a.respondError(c, err)
		return
	}
	a.Configs.Invalidate(tenant, agentID)

	c.JSON(http.StatusCreated, cfg)
}

// GET /api/agents/:id/calendar-config
func (a *App) GetCalendarConfigHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	cfg, err := a.Configs.ActiveConfigByAgent(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
