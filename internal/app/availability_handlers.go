package app

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GET /api/agents/:id/slots?date=YYYY-MM-DD
func (a *App) GetSlotsHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}

	slots, err := a.Availability.AvailableSlots(c.Request.Context(), tenant, agentID, date)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
}

// GET /api/agents/:id/slots/range?start=YYYY-MM-DD&days=N
func (a *App) GetSlotsRangeHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")
	start := c.Query("start")
	if start == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start required (YYYY-MM-DD)"})
		return
	}
	days := 7
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
	}

	byDay, err := a.Availability.AvailableSlotsRange(c.Request.Context(), tenant, agentID, start, days)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"start": start, "days": days, "slots": byDay})
}

// GET /api/agents/:id/slots/next?from=YYYY-MM-DD
func (a *App) NextSlotHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")

	slot, err := a.Availability.NextAvailableSlot(c.Request.Context(), tenant, agentID, c.Query("from"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if slot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no available slot within lookahead window"})
		return
	}
	c.JSON(http.StatusOK, slot)
}

// GET /api/agents/:id/slots/check?date=YYYY-MM-DD&time=HH:MM
func (a *App) CheckSlotHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")
	date := c.Query("date")
	timeStr := c.Query("time")
	if date == "" || timeStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date and time required"})
		return
	}

	available, err := a.Availability.CheckSlot(c.Request.Context(), tenant, agentID, date, timeStr)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "time": timeStr, "available": available})
}
