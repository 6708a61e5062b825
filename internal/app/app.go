// Package app is the thin HTTP layer: request parsing, auth, response
// shaping. Booking and availability logic lives in internal/calendar.
package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"calendar-service/internal/calendar"
	"calendar-service/internal/store"
)

type App struct {
	Store        *store.Store
	Configs      *store.CachedConfigs
	Availability *calendar.AvailabilityService
	Booking      *calendar.BookingService
	Reconciler   *calendar.AccountSwitchReconciler
	Provider     calendar.Provider
	OAuth        *oauth2.Config
	Log          *zap.SugaredLogger
}

// tenantID reads the tenant resolved by the upstream gateway. Aborts with
// 400 when the header is missing.
func tenantID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Tenant-ID")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Tenant-ID header required"})
		return "", false
	}
	return id, true
}

// respondError maps the engine's error taxonomy onto HTTP statuses.
func (a *App) respondError(c *gin.Context, err error) {
	var (
		authErr *calendar.AuthError
		provErr *calendar.ProviderError
		slotErr *calendar.SlotUnavailableError
	)
	switch {
	case errors.Is(err, calendar.ErrNotConfigured):
		c.JSON(http.StatusConflict, gin.H{"error": "calendar not configured", "action": "setup"})
	case errors.Is(err, calendar.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
	case errors.As(err, &slotErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "slot not available",
			"start_utc":    slotErr.Start,
			"end_utc":      slotErr.End,
			"alternatives": slotErr.Alternatives,
		})
	case errors.As(err, &authErr):
		a.Log.Warnw("calendar credential needs re-authorization", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "calendar authorization expired", "action": "reauthorize"})
	case errors.As(err, &provErr):
		a.Log.Errorw("calendar provider error", "kind", provErr.Kind, "status", provErr.StatusCode, "error", err)
		if provErr.Kind == calendar.ProviderRateLimited {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "calendar provider rate limited, try again later"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "calendar provider unavailable, try again"})
	default:
		a.Log.Errorw("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
