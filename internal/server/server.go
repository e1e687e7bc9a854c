// Package server wires the HTTP surface: the Helm client route table plus
// /healthz, built on gin.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chartvault/chartvault/internal/auth"
	"github.com/chartvault/chartvault/internal/chartarchive"
	"github.com/chartvault/chartvault/internal/health"
	"github.com/chartvault/chartvault/internal/index"
	"github.com/chartvault/chartvault/internal/logger"
	"github.com/chartvault/chartvault/internal/repo"
	"github.com/chartvault/chartvault/internal/storage"
)

// Server is the gin-based HTTP front end over a Repo.
type Server struct {
	engine        *gin.Engine
	repo          *repo.Repo
	gate          *auth.Gate
	health        *health.Checker
	log           *logger.Logger
	maxUploadSize int64
}

// New builds a Server wiring r behind the spec's route table, gated by
// gate on mutating routes. maxUploadSize bounds the body of push requests;
// a value <= 0 disables the limit.
func New(r *repo.Repo, gate *auth.Gate, checker *health.Checker, log *logger.Logger, maxUploadSize int64) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "PUT", "POST", "DELETE"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))

	s := &Server{engine: engine, repo: r, gate: gate, health: checker, log: log, maxUploadSize: maxUploadSize}
	s.routes()
	return s
}

// requestSizeLimit rejects push bodies declared larger than maxSize up
// front via Content-Length, and backstops undeclared/chunked bodies by
// wrapping the body in http.MaxBytesReader.
func requestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("request body exceeds %d bytes", maxSize),
			})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// Handler returns the http.Handler to pass to an http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

func (s *Server) routes() {
	mutate := s.gate.Middleware()
	sizeLimit := requestSizeLimit(s.maxUploadSize)

	s.engine.PUT("/", mutate, sizeLimit, s.handlePush)
	s.engine.POST("/", mutate, sizeLimit, s.handlePush)
	s.engine.GET("/index.yaml", s.handleGetIndex)
	s.engine.GET("/:filename", s.handleGetChart)
	s.engine.DELETE("/charts", badRequest("malformed delete path"))
	s.engine.DELETE("/charts/", badRequest("malformed delete path"))
	s.engine.DELETE("/charts/:name", mutate, s.handleDeleteChart)
	s.engine.DELETE("/charts/:name/:version", mutate, s.handleDeleteVersion)
	s.engine.DELETE("/charts/:name/:version/*extra", badRequest("malformed delete path"))
	s.engine.DELETE("/", badRequest("malformed delete path"))
	s.engine.GET("/healthz", s.handleHealthz)

	// spec.md's route table treats any request outside the table as 400 for
	// a malformed delete path, 405 otherwise — never a bare 404.
	s.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodDelete {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed delete path"})
			return
		}
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	s.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
}

func badRequest(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	}
}

func (s *Server) handlePush(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		if err.Error() == "http: request body too large" {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed reading request body"})
		return
	}

	updateIndex := c.Query("updateIndex") != "false"

	result, err := s.repo.Push(c.Request.Context(), raw, updateIndex)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"saved": result.Archive.Filename(),
	})
}

func (s *Server) handleGetIndex(c *gin.Context) {
	raw, err := s.repo.GetIndex(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", raw)
}

func (s *Server) handleGetChart(c *gin.Context) {
	filename := c.Param("filename")
	if !strings.HasSuffix(filename, ".tgz") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	rc, err := s.repo.GetChartReader(c.Request.Context(), filename)
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/gzip", rc, nil)
}

func (s *Server) handleDeleteChart(c *gin.Context) {
	name := c.Param("name")
	if err := s.repo.DeleteChart(c.Request.Context(), name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

func (s *Server) handleDeleteVersion(c *gin.Context) {
	name, version := c.Param("name"), c.Param("version")
	if err := s.repo.DeleteVersion(c.Request.Context(), name, version); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name + "-" + version})
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	status := s.health.Check(ctx)
	if status.Overall == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func writeError(c *gin.Context, err error) {
	switch {
	case chartarchive.IsMalformed(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case index.IsAlreadyPresent(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case index.IsMissing(err), index.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case isBlobNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func isBlobNotFound(err error) bool {
	return err == storage.ErrNotFound
}
