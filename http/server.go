package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	payflow "github.com/lumenpay/payflow"
)

// Server exposes the inbound webhook endpoint and the health probe.
//
// The webhook always answers 200 once the event is durably acknowledged,
// including verified-but-ignored cases, so upstream retries stop.
// Non-200 is reserved for transport-level failures to process the
// request at all.
type Server struct {
	orch *payflow.Orchestrator
	log  *slog.Logger
}

// NewServer creates a server over the orchestrator
func NewServer(orch *payflow.Orchestrator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{orch: orch, log: log}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.POST("/webhooks/:provider", s.handleWebhook)
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if err := ValidateWebhookBody(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var event payflow.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook event"})
		return
	}

	result, err := s.orch.Ingest(c.Request.Context(), provider, event)
	if err != nil {
		// Ingestion anomalies are acknowledged and absorbed: the sender
		// cannot act on them and must not be induced to retry forever.
		switch {
		case payflow.IsCode(err, payflow.ErrCodeUnverifiedSource):
			s.log.Warn("webhook from unverified source", "provider", provider, "eventId", event.ID)
			c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": payflow.ErrCodeUnverifiedSource})
		case payflow.IsCode(err, payflow.ErrCodeUnknownTransaction):
			c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": payflow.ErrCodeUnknownTransaction})
		case payflow.IsCode(err, payflow.ErrCodeInvalidTransition):
			// Rejected and logged, never silently applied, but still
			// acknowledged so the sender stops retrying.
			s.log.Warn("webhook event not legal for record state", "provider", provider, "eventId", event.ID)
			c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": payflow.ErrCodeInvalidTransition})
		default:
			s.log.Error("webhook processing failed", "provider", provider, "eventId", event.ID, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "applied": result.Applied, "state": string(result.State)})
}
