package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"smartbot/internal/entities"
	"smartbot/internal/infrastructure"
	"smartbot/internal/repository"
	"smartbot/internal/usecases"
)

type Handler struct {
	pipeline    *usecases.AutoReplyService
	messageRepo *repository.MessageRepository
	waManager   *infrastructure.WhatsAppManager
}

func NewHandler(pipeline *usecases.AutoReplyService, messageRepo *repository.MessageRepository, waManager *infrastructure.WhatsAppManager) *Handler {
	return &Handler{
		pipeline:    pipeline,
		messageRepo: messageRepo,
		waManager:   waManager,
	}
}

func SetupRoutes(r *gin.Engine, pipeline *usecases.AutoReplyService, auth *usecases.AuthUsecase, messageRepo *repository.MessageRepository, waManager *infrastructure.WhatsAppManager, middleware *Middleware) {
	h := NewHandler(pipeline, messageRepo, waManager)

	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20)) // 10MB max request size
	r.Use(middleware.CORSMiddleware())

	// Ingestion entry point for inbound webhook collaborators.
	r.POST("/webhook/:channel", h.HandleInbound)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		authGroup.POST("/register", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			if !ValidSlug(req.Username) || len(req.Password) < 6 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
				return
			}
			if err := auth.Register(c.Request.Context(), req.Username, req.Password); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"status": "registered"})
		})
	}

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(rate.Limit(5), 10))
	{
		api.POST("/pipeline/run", h.RunPipeline)
		api.POST("/messages/:id/process", h.ProcessMessage)
		api.GET("/messages", h.ListMessages)
		api.GET("/messages/stats", h.MessageStats)
		api.GET("/whatsapp/qr", h.WhatsAppQR)
		api.GET("/whatsapp/status", h.WhatsAppStatus)
		api.POST("/whatsapp/connect", h.WhatsAppConnect)
		api.POST("/whatsapp/logout", h.WhatsAppLogout)
	}
}

// HandleInbound ingests one raw inbound message. The recipient address is
// the owner lookup key.
func (h *Handler) HandleInbound(c *gin.Context) {
	channel := entities.Channel(c.Param("channel"))
	if !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return
	}

	var req struct {
		Sender    string `json:"sender" binding:"required"`
		Recipient string `json:"recipient" binding:"required"`
		Subject   string `json:"subject"`
		Body      string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msg, err := h.pipeline.Ingest(c.Request.Context(), req.Recipient, channel,
		SanitizeString(req.Sender), SanitizeString(req.Recipient),
		SanitizeString(TruncateString(req.Subject, MaxSubjectLength)), SanitizeString(req.Body))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no account for recipient"})
		return
	}

	// Process asynchronously; the webhook caller only needs the receipt.
	// The request context dies with this handler, so a fresh one is used.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		h.pipeline.ProcessOne(ctx, msg.ID)
	}()

	c.JSON(http.StatusAccepted, gin.H{"message_id": msg.ID, "status": msg.Status})
}

// RunPipeline triggers a best-effort batch over all received messages.
func (h *Handler) RunPipeline(c *gin.Context) {
	count, err := h.pipeline.ProcessPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "replied": count})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replied": count})
}

func (h *Handler) ProcessMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	status, err := h.pipeline.ProcessOne(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, "status": status})
}

func (h *Handler) ListMessages(c *gin.Context) {
	ownerID := ownerFromContext(c)
	if ownerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	status := entities.MessageStatus(c.Query("status"))
	messages, err := h.messageRepo.ListByOwner(c.Request.Context(), ownerID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) MessageStats(c *gin.Context) {
	ownerID := ownerFromContext(c)
	if ownerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	counts, err := h.messageRepo.CountByStatus(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// WhatsAppQR serves the current pairing QR as a PNG.
func (h *Handler) WhatsAppQR(c *gin.Context) {
	ownerID := ownerFromContext(c)
	client := h.waManager.GetClient(ownerID)
	if client == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no WhatsApp session, connect first"})
		return
	}
	if client.IsLoggedIn() {
		c.JSON(http.StatusOK, gin.H{"status": "already paired"})
		return
	}

	code := client.GetQR()
	if code == "" {
		c.JSON(http.StatusAccepted, gin.H{"status": "waiting for QR code"})
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not render QR"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) WhatsAppStatus(c *gin.Context) {
	ownerID := ownerFromContext(c)
	client := h.waManager.GetClient(ownerID)
	if client == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "paired": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected": client.IsConnected(),
		"paired":    client.IsLoggedIn(),
		"phone":     client.PhoneNumber(),
	})
}

func (h *Handler) WhatsAppConnect(c *gin.Context) {
	ownerID := ownerFromContext(c)
	if ownerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	if _, err := h.waManager.ConnectClient(ownerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connecting"})
}

func (h *Handler) WhatsAppLogout(c *gin.Context) {
	ownerID := ownerFromContext(c)
	if ownerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	if err := h.waManager.LogoutClient(ownerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// ownerFromContext reads the authenticated user id set by AuthRequired.
func ownerFromContext(c *gin.Context) int64 {
	v, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	// JWT numeric claims decode as float64.
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	if i, ok := v.(int64); ok {
		return i
	}
	return 0
}
