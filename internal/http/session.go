package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookshelf/internal/auth"
	"bookshelf/internal/shelf"
	"bookshelf/internal/store"
)

// SessionController flips the shelf between guest and cloud mode as sessions
// come and go. The credential exchange with the identity provider happens in
// the client; this endpoint receives the already-issued identity and access
// token.
type SessionController struct {
	sessions     *auth.SessionManager
	shelf        *shelf.Controller
	localBackend store.Backend
	cloudBackend CloudBackendFactory
	limiter      *auth.RateLimiter
}

func NewSessionController(
	sessions *auth.SessionManager,
	shelfController *shelf.Controller,
	localBackend store.Backend,
	cloudBackend CloudBackendFactory,
	limiter *auth.RateLimiter,
) *SessionController {
	return &SessionController{
		sessions:     sessions,
		shelf:        shelfController,
		localBackend: localBackend,
		cloudBackend: cloudBackend,
		limiter:      limiter,
	}
}

type signInRequest struct {
	Identity    string `json:"identity"`
	AccessToken string `json:"accessToken"`
}

// SignIn binds the session to an identity and switches the shelf onto the
// cloud backend, which runs the one-shot local-to-cloud migration on first
// load.
func (controller *SessionController) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Identity == "" || req.AccessToken == "" {
		if controller.limiter != nil {
			controller.limiter.RecordFailure(c.ClientIP())
		}
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "identity and accessToken are required"})
		return
	}

	if controller.cloudBackend == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"error": "cloud mode is not configured"})
		return
	}

	if err := controller.sessions.SignIn(c.Request, req.Identity, req.AccessToken); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": "could not establish session"})
		return
	}
	if controller.limiter != nil {
		controller.limiter.RecordSuccess(c.ClientIP())
	}

	controller.shelf.Activate(req.Identity, controller.cloudBackend(req.AccessToken))
	if err := controller.shelf.Load(c.Request.Context()); err != nil {
		// The shelf is ready with an empty collection; the client may retry
		// by reloading.
		log.Printf("Collection load failed after sign-in (request %s): %v", RequestID(c), err)
		c.IndentedJSON(http.StatusOK, gin.H{"identity": req.Identity, "warning": "collection load failed"})
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{"identity": req.Identity})
}

// SignOut destroys the session and switches the shelf back to guest mode.
func (controller *SessionController) SignOut(c *gin.Context) {
	if err := controller.sessions.SignOut(c.Request); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": "could not destroy session"})
		return
	}

	controller.shelf.Activate("", controller.localBackend)
	if err := controller.shelf.Load(c.Request.Context()); err != nil {
		c.IndentedJSON(http.StatusOK, gin.H{"identity": "", "warning": "collection load failed"})
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{"identity": ""})
}

// Status reports whether the request carries a signed-in session.
func (controller *SessionController) Status(c *gin.Context) {
	data := controller.sessions.GetSessionData(c.Request)
	if data == nil {
		c.IndentedJSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"authenticated": true,
		"identity":      data.Identity,
		"signedInAt":    data.SignedInAt,
	})
}

// EnsureBackend reconciles the shelf's active backend with the session on
// each request. After a process restart the session cookie outlives the
// in-memory controller state; this puts the shelf back into the mode the
// cookie says it should be in.
func (controller *SessionController) EnsureBackend() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := controller.sessions.Identity(c.Request)
		if identity == controller.shelf.Identity() {
			c.Next()
			return
		}

		if identity == "" || controller.cloudBackend == nil {
			controller.shelf.Activate("", controller.localBackend)
		} else {
			controller.shelf.Activate(identity, controller.cloudBackend(controller.sessions.AccessToken(c.Request)))
		}
		if err := controller.shelf.Load(c.Request.Context()); err != nil {
			log.Printf("Backend reconciliation load failed (request %s): %v", RequestID(c), err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "collection is loading"})
			return
		}
		c.Next()
	}
}
