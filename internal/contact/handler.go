package contact

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalError = "Internal server error"

// Outcome classifies how a contact request ended.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// OutcomeRecorder is told about every request the handler answers.
// dispatch is zero when the relay was never called.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome Outcome, dispatch time.Duration)
}

// Recorders fans an outcome out to several recorders.
type Recorders []OutcomeRecorder

func (rs Recorders) RecordOutcome(ctx context.Context, outcome Outcome, dispatch time.Duration) {
	for _, r := range rs {
		r.RecordOutcome(ctx, outcome, dispatch)
	}
}

type HandlerConfig struct {
	Sender     Sender
	EscapeHTML bool
}

// Handler serves POST /api/contact.
type Handler struct {
	mailer   Mailer
	cfg      HandlerConfig
	recorder OutcomeRecorder
	logger   *zap.Logger
}

func NewHandler(mailer Mailer, cfg HandlerConfig, recorder OutcomeRecorder, logger *zap.Logger) *Handler {
	if recorder == nil {
		recorder = Recorders(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		mailer:   mailer,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.Named("contact"),
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/contact", h.Submit)
}

// Submit validates the posted submission and relays it as one email.
func (h *Handler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var sub Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.logger.Error("Failed to parse contact submission", zap.Error(err))
		h.recorder.RecordOutcome(ctx, OutcomeFailed, 0)
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalError})
		return
	}

	if err := sub.Validate(); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			h.logger.Error("Unexpected validation failure", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": internalError})
			return
		}
		h.logger.Debug("Rejected contact submission", zap.String("reason", verr.Reason))
		h.recorder.RecordOutcome(ctx, OutcomeRejected, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
		return
	}

	msg := BuildMessage(sub, h.cfg.Sender, h.cfg.EscapeHTML)

	start := time.Now()
	err := h.mailer.Send(ctx, msg)
	elapsed := time.Since(start)
	if err != nil {
		h.logger.Error("Email sending failed",
			zap.String("reply_to_domain", sub.EmailDomain()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		h.recorder.RecordOutcome(ctx, OutcomeFailed, elapsed)
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalError})
		return
	}

	h.logger.Info("Contact email sent",
		zap.String("reply_to_domain", sub.EmailDomain()),
		zap.Duration("elapsed", elapsed),
	)
	h.recorder.RecordOutcome(ctx, OutcomeSent, elapsed)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Recovery turns a panic anywhere in the chain into the generic 500 body.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Recovered from panic", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": internalError})
	})
}
