package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"calendar-service/internal/calendar"
	"calendar-service/internal/store"
)

// GET /api/calendar/auth
// Returns the provider consent URL for this tenant. offline access and
// forced consent so a refresh token is always issued.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "calendar OAuth not configured"})
		return
	}
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	state := fmt.Sprintf("%s|%s", tenant, uuid.NewString())
	url := a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"auth_url": url, "state": state})
}

// GET /oauth2callback
// Exchanges the code, stores the (encrypted) credential for the tenant, and
// reconciles agent configs when the authorized account changed.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "calendar OAuth not configured"})
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	tenant, _, ok := strings.Cut(state, "|")
	if !ok || tenant == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	ctx := c.Request.Context()

	token, err := a.OAuth.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}

	account, err := a.Provider.AccountEmail(ctx, token.AccessToken)
	if err != nil {
		a.respondError(c, err)
		return
	}

	previousAccount := ""
	previousRefresh := ""
	prev, err := a.Store.ActiveCredentialByTenant(ctx, tenant)
	switch {
	case err == nil:
		previousAccount = prev.AccountEmail
		previousRefresh = prev.RefreshToken
	case errors.Is(err, store.ErrCredentialNotFound):
		// first authorization for this tenant
	default:
		a.respondError(c, err)
		return
	}

	cred := &calendar.CalendarCredential{
		TenantID:     tenant,
		ClientID:     a.OAuth.ClientID,
		ClientSecret: a.OAuth.ClientSecret,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry.UTC(),
		AccountEmail: account,
		Active:       true,
	}
	// Google only returns a refresh token on first consent; keep the stored
	// one when re-authorizing the same account without a new grant
	if cred.RefreshToken == "" && strings.EqualFold(previousAccount, account) {
		cred.RefreshToken = previousRefresh
	}
	if err := a.Store.UpsertCredential(ctx, cred); err != nil {
		a.respondError(c, err)
		return
	}

	res, err := a.Reconciler.Reconcile(ctx, cred.ID, previousAccount, account)
	if err != nil {
		a.respondError(c, err)
		return
	}
	a.Configs.InvalidateAll()

	a.Log.Infow("calendar authorized", "tenant_id", tenant, "account", account,
		"previous_account", previousAccount)
	c.JSON(http.StatusOK, gin.H{
		"message":   "authorization successful",
		"account":   account,
		"reconcile": res,
	})
}
