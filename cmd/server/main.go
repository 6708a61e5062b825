package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"

	"calendar-service/internal/app"
	"calendar-service/internal/cache"
	"calendar-service/internal/calendar"
	"calendar-service/internal/logging"
	"calendar-service/internal/secrets"
	"calendar-service/internal/server"
	"calendar-service/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	defer log.Sync()

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL required")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalw("failed to connect to db", "error", err)
	}
	defer pool.Close()

	cipher, err := secrets.NewCipherFromBase64(os.Getenv("TOKEN_CIPHER_KEY"))
	if err != nil {
		log.Fatalw("TOKEN_CIPHER_KEY invalid", "error", err)
	}

	st := store.New(pool, cipher)

	cacheTTL := 5 * time.Minute
	if raw := os.Getenv("CONFIG_CACHE_TTL_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cacheTTL = time.Duration(n) * time.Second
		}
	}
	configs := store.NewCachedConfigs(st, cache.NewMemory(cacheTTL), cacheTTL)

	provider := calendar.NewGoogleProvider()
	vault := calendar.NewTokenVault()
	availability := calendar.NewAvailabilityService(configs, st, vault, provider, log)
	booking := calendar.NewBookingService(availability, st, log)
	reconciler := calendar.NewAccountSwitchReconciler(st, log)

	appInstance := &app.App{
		Store:        st,
		Configs:      configs,
		Availability: availability,
		Booking:      booking,
		Reconciler:   reconciler,
		Provider:     provider,
		OAuth:        oauthConfigFromEnv(),
		Log:          log,
	}
	if appInstance.OAuth == nil {
		log.Warn("Google OAuth env not set; calendar authorization routes disabled")
	}

	router := gin.Default()

	router.GET("/healthz", appInstance.HealthzHandler)

	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", appInstance.GoogleOAuth2CallbackHandler)

	router.Use(app.AuthMiddlewareFromEnv())

	api := router.Group("/api")
	{
		api.GET("/calendar/auth", appInstance.GoogleAuthHandler)

		agents := api.Group("/agents")
		{
			agents.GET("/:id/slots", appInstance.GetSlotsHandler)
			agents.GET("/:id/slots/range", appInstance.GetSlotsRangeHandler)
			agents.GET("/:id/slots/next", appInstance.NextSlotHandler)
			agents.GET("/:id/slots/check", appInstance.CheckSlotHandler)

			agents.POST("/:id/appointments", appInstance.CreateAppointmentHandler)
			agents.GET("/:id/appointments", appInstance.ListAppointmentsHandler)
			agents.POST("/:id/appointments/reschedule", appInstance.RescheduleByAttendeeHandler)
			agents.POST("/:id/appointments/cancel", appInstance.CancelByAttendeeHandler)

			agents.POST("/:id/calendar-config", appInstance.CreateCalendarConfigHandler)
			agents.GET("/:id/calendar-config", appInstance.GetCalendarConfigHandler)
		}

		api.POST("/appointments/:id/reschedule", appInstance.RescheduleAppointmentHandler)
		api.POST("/appointments/:id/cancel", appInstance.CancelAppointmentHandler)
		api.POST("/appointments/:id/complete", appInstance.CompleteAppointmentHandler)
	}

	if err := server.Run(router, log); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}

func oauthConfigFromEnv() *oauth2.Config {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	redirectURL := os.Getenv("GOOGLE_REDIRECT_URL")
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			calendarapi.CalendarEventsScope,
			calendarapi.CalendarReadonlyScope,
		},
		Endpoint: google.Endpoint,
	}
}
