// Package adminapi exposes a small gin HTTP surface over a running
// runtime.Runtime's pipeline and queue state -- two read-only GET routes
// that list pipelines and inspect one pipeline's state, and one POST route
// that triggers a config reload. The router is a
// thin wrapper holding the dependencies its handlers read.
package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/messixukejia/loongcollector/internal/collectionpipeline"
	"github.com/messixukejia/loongcollector/internal/runtime"
)

// Server wraps a gin.Engine bound to one runtime.
type Server struct {
	router  *gin.Engine
	rt      *runtime.Runtime
	httpSrv *http.Server
}

// New builds the admin API router. gin.ReleaseMode is set explicitly
// rather than left to gin's default, since a library embedding this
// package should not inherit debug-mode log spam.
func New(rt *runtime.Runtime, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		rt:      rt,
		httpSrv: &http.Server{Addr: addr, Handler: router},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/pipelines", s.listPipelines)
	s.router.GET("/pipelines/:name", s.getPipeline)
	s.router.POST("/reload", s.reload)
}

type pipelineStatus struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	InProcessCnt int64  `json:"in_process_count"`
}

func (s *Server) listPipelines(c *gin.Context) {
	names := s.rt.Pipelines.Names()
	out := make([]pipelineStatus, 0, len(names))
	for _, name := range names {
		p, ok := s.rt.Pipelines.FindPipelineByConfigName(name)
		if !ok {
			continue
		}
		out = append(out, statusOf(name, p))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPipeline(c *gin.Context) {
	name := c.Param("name")
	p, ok := s.rt.Pipelines.FindPipelineByConfigName(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}
	c.JSON(http.StatusOK, statusOf(name, p))
}

func (s *Server) reload(c *gin.Context) {
	if err := s.rt.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func statusOf(name string, p *collectionpipeline.CollectionPipeline) pipelineStatus {
	return pipelineStatus{
		Name:         name,
		State:        p.State().String(),
		InProcessCnt: p.InProcessCount(),
	}
}

// Start runs the admin API in the background. Stop should be called on
// shutdown.
func (s *Server) Start() {
	go func() {
		_ = s.httpSrv.ListenAndServe()
	}()
}

// Stop closes the admin API's HTTP server immediately, dropping its
// listener and any active connections without waiting for in-flight
// requests.
func (s *Server) Stop() error {
	return s.httpSrv.Close()
}
