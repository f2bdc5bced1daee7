// Package server provides the self-hosted remote store: a REST API over
// its own SQLite database implementing the per-table contract the sync
// client speaks. A pharmacy that doesn't use a hosted backend can run
// this on any reachable machine.
//
// Endpoints:
//
//	HEAD/GET /healthz                  reachability probe
//	GET      /api/v1/{table}?since=T   records with updated_at > T
//	POST     /api/v1/{table}           insert (upsert by id)
//	PUT      /api/v1/{table}/{id}      update (upsert by id)
//	DELETE   /api/v1/{table}/{id}      delete
//
// All /api/v1 routes require a bearer token when one is configured.
package server

import (
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
)

// Config holds server configuration.
type Config struct {
	// AuthToken, when non-empty, is required as a bearer token on all
	// /api/v1 requests.
	AuthToken string

	// Logger for server activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger: log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Server serves the remote store REST API over a local store database.
type Server struct {
	db     *store.DB
	config *Config
}

// New creates a Server over the given database.
// The database must be opened with its schema initialized.
func New(db *store.DB, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	return &Server{db: db, config: config}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.HEAD("/healthz", s.handleHealth)

	v1 := r.Group("/api/v1")
	v1.Use(s.auth())
	{
		v1.GET("/:table", s.handleList)
		v1.POST("/:table", s.handleUpsert)
		v1.PUT("/:table/:id", s.handleUpsert)
		v1.DELETE("/:table/:id", s.handleDelete)
	}
	return r
}

// Run starts the HTTP server on addr. Blocks until the server exits.
func (s *Server) Run(addr string) error {
	s.config.Logger.Printf("Remote store listening on %s", addr)
	return s.Router().Run(addr)
}

// auth enforces the configured bearer token. With no token configured
// the server is open (local development).
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(s.config.AuthToken)
		if token == "" {
			c.Next()
			return
		}

		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") || strings.TrimSpace(h[7:]) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleList(c *gin.Context) {
	table := c.Param("table")
	if !schema.KnownTable(table) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
		return
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed since timestamp"})
			return
		}
		since = t
	}

	records, err := s.db.ListChangedSince(c.Request.Context(), table, since)
	if err != nil {
		s.config.Logger.Printf("List %s failed: %v", table, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if records == nil {
		records = []schema.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleUpsert(c *gin.Context) {
	table := c.Param("table")
	if !schema.KnownTable(table) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	rec, err := schema.Decode(table, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if id := c.Param("id"); id != "" && id != rec.RecordID() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id mismatch between path and body"})
		return
	}

	if err := s.db.UpsertRecord(c.Request.Context(), rec); err != nil {
		s.config.Logger.Printf("Upsert %s/%s failed: %v", table, rec.RecordID(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDelete(c *gin.Context) {
	table := c.Param("table")
	if !schema.KnownTable(table) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
		return
	}

	if err := s.db.DeleteRecord(c.Request.Context(), table, c.Param("id")); err != nil {
		s.config.Logger.Printf("Delete %s/%s failed: %v", table, c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.Status(http.StatusNoContent)
}
