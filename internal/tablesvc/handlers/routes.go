package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

// SetRoutes mounts the public invite routes at the root, where the mobile
// client resolves tokens, and the operator api under /v1. rateLimit is
// requests per minute per ip on the public routes.
func (h *Handler) SetRoutes(r chi.Router, rateLimit int) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

		r.Get("/invites/{token}", h.ResolveInvite)
		r.Post("/invites/{token}/consume", h.ConsumeInvite)
	})

	r.Route("/v1", func(r chi.Router) {

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)

			r.Get("/tables", h.ListTables)
			r.Get("/tables/{tableId}", h.GetTable)
			r.Get("/tables/{tableId}/hands", h.ListHands)
			r.Post("/tables/{tableId}/invites", h.CreateInvite)
			r.Get("/tables/{tableId}/invites", h.ListInvites)
			r.Get("/hands/{handId}/actions", h.ListActions)
			r.Get("/users/{userId}", h.GetUser)
		})
	})
}

func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": "tablesvc",
		"exp":        expirationTime,
	})

	log.Debugf("DEBUG: service JWT for testing: %s", tokenString)
}

// TokenAuth exposes the signer so tools can mint operator tokens.
func (h *Handler) TokenAuth() *jwtauth.JWTAuth {
	return h.tokenAuth
}
