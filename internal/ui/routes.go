package ui

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studio/internal/bus"
	"studio/internal/media"
	"studio/internal/studio"
	"studio/internal/transport"
)

// maxUploadBytes bounds an image upload.
const maxUploadBytes = 32 << 20

// Router builds the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware(s.log), RequestLogger(s.log))

	router.GET("/ws", gin.WrapH(s.hub))
	router.GET("/healthz", s.health)
	router.GET("/artifacts/:id", s.getArtifact)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := router.Group("/api")
	{
		api.GET("/layers", s.listLayers)
		api.POST("/layers", s.uploadLayer)
		api.DELETE("/layers/:id", s.removeLayer)
		api.POST("/commands/:action", s.command)
		api.GET("/preview.jpg", s.preview)
	}
	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.Clients(),
		"layers":  len(s.Layers()),
	})
}

func (s *Server) listLayers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"layers": s.Layers()})
}

// uploadLayer decodes the multipart "image" file and dispatches it as
// IMAGE_UPLOADED. The registry is only touched by a decodable image.
func (s *Server) uploadLayer(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return
	}
	if fh.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty upload"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	img, format, err := media.DecodeImage(f)
	if err != nil {
		s.log.Warnw("upload rejected", "name", fh.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b := img.Bounds()
	s.bus.Dispatch(bus.ImageUploaded, studio.ImageUpload{
		Name:   fh.Filename,
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"name":   fh.Filename,
		"format": format,
		"width":  b.Dx(),
		"height": b.Dy(),
		"layers": s.Layers(),
	})
}

func (s *Server) removeLayer(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid layer id"})
		return
	}
	s.bus.Dispatch(bus.LayerRemoved, id)
	c.JSON(http.StatusOK, gin.H{"layers": s.Layers()})
}

// command is the HTTP rendition of a WebSocket command. The optional JSON
// body is the originating input event.
func (s *Server) command(c *gin.Context) {
	name := c.Param("action")
	if _, ok := parseAction(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action " + strconv.Quote(name)})
		return
	}
	event := &bus.RemoteEvent{Type: "http"}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	s.HandleCommand(transport.Command{Action: name, Event: event})
	c.JSON(http.StatusOK, gin.H{
		"action":           name,
		"defaultPrevented": event.DefaultPrevented,
	})
}

func (s *Server) getArtifact(c *gin.Context) {
	a, ok := s.Artifact(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", `attachment; filename="`+a.Filename()+`"`)
	}
	c.Data(http.StatusOK, a.MimeType, a.Data)
}

func (s *Server) preview(c *gin.Context) {
	if s.surface == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no surface"})
		return
	}
	var buf bytes.Buffer
	if err := s.surface.EncodeJPEG(&buf, s.quality); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

// RequestLogger logs each request at debug level.
func RequestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// RecoveryMiddleware turns a panicking handler into a 500.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
