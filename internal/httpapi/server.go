package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/growpixel/leadmail/internal/model"
	"github.com/growpixel/leadmail/internal/service"
	"log/slog"
)

const (
	defaultTimeout = 5 * time.Second

	// RouteLead is the single intake endpoint.
	RouteLead = "/api/lead"

	attachmentFormKey = "file"
)

// Config captures all inputs required to construct the HTTP server.
type Config struct {
	ListenAddr           string
	AllowedOrigin        string
	LeadService          service.LeadService
	Logger               *slog.Logger
	MaxUploadBytes       int64
	ReadHeaderTimeout    time.Duration
	ShutdownGraceTimeout time.Duration
}

// Server hosts the lead intake endpoint.
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires Gin, middleware, and the intake handler.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, errors.New("httpapi: listen address is required")
	}
	if strings.TrimSpace(cfg.AllowedOrigin) == "" {
		return nil, errors.New("httpapi: allowed origin is required")
	}
	if cfg.LeadService == nil {
		return nil, errors.New("httpapi: lead service is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("httpapi: logger is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if cfg.MaxUploadBytes > 0 {
		engine.MaxMultipartMemory = cfg.MaxUploadBytes
	}
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(cfg.Logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:              []string{cfg.AllowedOrigin},
		AllowMethods:              []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:              []string{"Content-Type"},
		OptionsResponseStatusCode: http.StatusOK,
	}))

	engine.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := newLeadHandler(cfg.LeadService, cfg.Logger)
	engine.POST(RouteLead, handler.submitLead)
	// Preflight without an Origin header bypasses the CORS middleware;
	// answer it here so OPTIONS always yields 200 with no body.
	engine.OPTIONS(RouteLead, func(contextGin *gin.Context) {
		contextGin.Status(http.StatusOK)
	})

	engine.NoMethod(func(contextGin *gin.Context) {
		writeFailure(contextGin, http.StatusMethodNotAllowed, "Method not allowed")
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: pickDuration(cfg.ReadHeaderTimeout, defaultTimeout),
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		logger:     cfg.Logger,
	}, nil
}

// Start begins serving HTTP traffic.
func (server *Server) Start() error {
	err := server.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully terminates the HTTP server.
func (server *Server) Shutdown(ctx context.Context) error {
	timeout := pickDuration(server.config.ShutdownGraceTimeout, defaultTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return server.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		started := time.Now()
		contextGin.Next()
		logger.Info(
			"http_request_completed",
			"method", contextGin.Request.Method,
			"path", contextGin.Request.URL.Path,
			"status", contextGin.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}

type leadHandler struct {
	service service.LeadService
	logger  *slog.Logger
}

func newLeadHandler(svc service.LeadService, logger *slog.Logger) *leadHandler {
	return &leadHandler{service: svc, logger: logger}
}

// submitLead runs the intake pipeline: decode the multipart form, extract
// and validate fields, gate the attachment, then hand off for dispatch.
func (handler *leadHandler) submitLead(contextGin *gin.Context) {
	form, parseError := contextGin.MultipartForm()
	if parseError != nil {
		// The handler cannot recover a malformed body; surface the
		// decoder's message.
		handler.logger.Error("multipart_parse_failed", "error", parseError)
		writeFailure(contextGin, http.StatusInternalServerError, parseError.Error())
		return
	}

	submission, extractError := model.ExtractSubmission(form.Value)
	if extractError != nil {
		writeFailure(contextGin, http.StatusBadRequest, extractError.Error())
		return
	}

	if fileHeaders := form.File[attachmentFormKey]; len(fileHeaders) > 0 {
		// Multiple uploads under the same key collapse to the first.
		fileHeader := fileHeaders[0]
		declaredType := fileHeader.Header.Get("Content-Type")
		if validationError := model.ValidateAttachmentType(declaredType); validationError != nil {
			writeFailure(contextGin, http.StatusBadRequest, validationError.Error())
			return
		}

		openedFile, openError := fileHeader.Open()
		if openError != nil {
			handler.logger.Error("attachment_open_failed", "error", openError)
			writeFailure(contextGin, http.StatusInternalServerError, openError.Error())
			return
		}
		fileContents, readError := io.ReadAll(openedFile)
		openedFile.Close()
		if readError != nil {
			handler.logger.Error("attachment_read_failed", "error", readError)
			writeFailure(contextGin, http.StatusInternalServerError, readError.Error())
			return
		}

		attachment := model.NewAttachment(fileHeader.Filename, declaredType, fileContents)
		submission.Attachment = &attachment
	}

	handler.logger.Info(
		"lead_received",
		"submission_id", submission.SubmissionID,
		"main_service", submission.MainService,
		"sub_service", submission.SubService,
	)

	if dispatchError := handler.service.ProcessSubmission(contextGin.Request.Context(), submission); dispatchError != nil {
		writeFailure(contextGin, http.StatusInternalServerError, dispatchError.Error())
		return
	}

	contextGin.JSON(http.StatusOK, gin.H{"success": true})
}

func writeFailure(contextGin *gin.Context, statusCode int, message string) {
	contextGin.JSON(statusCode, gin.H{"success": false, "error": message})
}

func pickDuration(candidate time.Duration, fallback time.Duration) time.Duration {
	if candidate <= 0 {
		return fallback
	}
	return candidate
}
