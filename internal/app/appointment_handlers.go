package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"calendar-service/internal/calendar"
)

type createAppointmentReq struct {
	AttendeeEmail string `json:"attendee_email" binding:"required,email"`
	AttendeeName  string `json:"attendee_name,omitempty"`
	Date          string `json:"date" binding:"required"` // YYYY-MM-DD
	Time          string `json:"time" binding:"required"` // HH:MM
}

// POST /api/agents/:id/appointments
func (a *App) CreateAppointmentHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")
	var req createAppointmentReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appt, err := a.Booking.CreateAppointment(c.Request.Context(), tenant, agentID,
		calendar.Attendee{Email: req.AttendeeEmail, Name: req.AttendeeName}, req.Date, req.Time)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

// GET /api/agents/:id/appointments?from=ISO&to=ISO
func (a *App) ListAppointmentsHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	agentID := c.Param("id")
	fromStr := c.Query("from")
	toStr := c.Query("to")

	var from, to time.Time
	filtered := fromStr != "" && toStr != ""
	if filtered {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
			return
		}
	}

	appts, err := a.Store.ListAppointments(c.Request.Context(), tenant, agentID, from, to, filtered)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

type rescheduleReq struct {
	NewDate string `json:"new_date" binding:"required"`
	NewTime string `json:"new_time" binding:"required"`
}

// POST /api/appointments/:id/reschedule
func (a *App) RescheduleAppointmentHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req rescheduleReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appt, err := a.Booking.RescheduleAppointment(c.Request.Context(), tenant, c.Param("id"), req.NewDate, req.NewTime)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

type rescheduleByAttendeeReq struct {
	AttendeeEmail string `json:"attendee_email" binding:"required,email"`
	NewDate       string `json:"new_date" binding:"required"`
	NewTime       string `json:"new_time" binding:"required"`
}

// POST /api/agents/:id/appointments/reschedule
// Voice agents identify the booking by attendee, not by appointment id.
func (a *App) RescheduleByAttendeeHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req rescheduleByAttendeeReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appt, err := a.Booking.RescheduleByAttendee(c.Request.Context(), tenant, c.Param("id"),
		req.AttendeeEmail, req.NewDate, req.NewTime)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

type cancelReq struct {
	Reason string `json:"reason,omitempty"`
}

// POST /api/appointments/:id/cancel
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req cancelReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appt, err := a.Booking.CancelAppointment(c.Request.Context(), tenant, c.Param("id"), req.Reason)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

type cancelByAttendeeReq struct {
	AttendeeEmail string `json:"attendee_email" binding:"required,email"`
	Reason        string `json:"cancellation_reason,omitempty"`
}

// POST /api/agents/:id/appointments/cancel
func (a *App) CancelByAttendeeHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req cancelByAttendeeReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appt, err := a.Booking.CancelByAttendee(c.Request.Context(), tenant, c.Param("id"),
		req.AttendeeEmail, req.Reason)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// POST /api/appointments/:id/complete
func (a *App) CompleteAppointmentHandler(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	appt, err := a.Booking.CompleteAppointment(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
