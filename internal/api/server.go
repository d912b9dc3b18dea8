// Package api exposes the contact service over HTTP. Every route is scoped
// to the owner named by the X-Owner-ID header; there is no cross-owner
// surface at all.
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"nexus-go/internal/nexus"
)

// maxPhotoBytes caps raw photo uploads read into memory.
const maxPhotoBytes = 20 << 20

// Server wires the service into a gin router.
type Server struct {
	svc    *nexus.Service
	router *gin.Engine
}

// NewServer builds the router. gin mode is left to the caller (GIN_MODE env
// or gin.SetMode).
func NewServer(svc *nexus.Service) *Server {
	s := &Server{svc: svc, router: gin.New()}
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.router.Group("/v1")

	v1.GET("/status", s.handleStatus)

	owned := v1.Group("", requireOwner())
	owned.POST("/contacts", s.handleAddContact)
	owned.GET("/contacts", s.handleListContacts)
	owned.GET("/contacts/search", s.handleSearchContacts)
	owned.GET("/contacts/:id", s.handleGetContact)
	owned.DELETE("/contacts/:id", s.handleDeleteContact)
	owned.POST("/contacts/:id/photo", s.handleAddPhoto)
	owned.GET("/verify/:kind/:id", s.handleVerify)
	owned.GET("/stats", s.handleStats)
	owned.POST("/builders", s.handleAddBuilder)
	owned.GET("/builders/me", s.handleGetBuilder)
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

const ownerKey = "owner"

// requireOwner rejects requests without an X-Owner-ID header.
func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader("X-Owner-ID")
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				gin.H{"error": "missing X-Owner-ID header"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// writeError maps service error kinds onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, nexus.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, nexus.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, nexus.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, nexus.ErrUploadFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, nexus.ErrIntegrityMismatch):
		status = http.StatusConflict
	case errors.Is(err, nexus.ErrAnchorPending):
		status = http.StatusServiceUnavailable
	case errors.Is(err, nexus.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type addContactRequest struct {
	nexus.ContactFields
	// Photo is optional, base64-encoded in JSON.
	Photo []byte `json:"photo,omitempty"`
}

func (s *Server) handleAddContact(c *gin.Context) {
	var req addContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	contact, err := s.svc.AddContact(c.Request.Context(), owner(c), req.ContactFields, req.Photo)
	if err != nil {
		// The contact may have been stored even when anchoring or the
		// photo upload failed; report both.
		if contact != nil {
			c.JSON(http.StatusAccepted, gin.H{"contact": contact, "warning": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"contact": contact})
}

func (s *Server) handleListContacts(c *gin.Context) {
	contacts, err := s.svc.GetUserContacts(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts, "count": len(contacts)})
}

func (s *Server) handleSearchContacts(c *gin.Context) {
	contacts, err := s.svc.SearchContacts(c.Request.Context(), owner(c), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts, "count": len(contacts)})
}

func (s *Server) handleGetContact(c *gin.Context) {
	contact, err := s.svc.GetContact(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

func (s *Server) handleDeleteContact(c *gin.Context) {
	if err := s.svc.DeleteContact(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleAddPhoto(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPhotoBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading photo body: " + err.Error()})
		return
	}
	if len(data) > maxPhotoBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo exceeds size limit"})
		return
	}

	contact, err := s.svc.AddPhotoToContact(c.Request.Context(), owner(c), c.Param("id"), data)
	if err != nil {
		if contact != nil {
			c.JSON(http.StatusAccepted, gin.H{"contact": contact, "warning": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

func (s *Server) handleVerify(c *gin.Context) {
	res, err := s.svc.VerifyDataIntegrity(c.Request.Context(), owner(c), c.Param("kind"), c.Param("id"))
	if err != nil {
		// A mismatch still carries a result worth returning.
		if res != nil {
			c.JSON(http.StatusConflict, gin.H{"result": res, "error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.svc.GetSystemStatus(c.Request.Context())
	code := http.StatusOK
	if status.Overall == "down" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.svc.GetStats(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) handleAddBuilder(c *gin.Context) {
	var fields nexus.BuilderFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	application, err := s.svc.AddBaseBuilder(c.Request.Context(), owner(c), fields)
	if err != nil {
		if application != nil {
			c.JSON(http.StatusAccepted, gin.H{"application": application, "warning": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"application": application})
}

func (s *Server) handleGetBuilder(c *gin.Context) {
	application, err := s.svc.GetBaseBuilderByOwner(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": application})
}
