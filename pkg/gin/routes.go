// Package gin serves the escrow operations over HTTP with the Gin framework.
//
// Reads are public. Writes (approve, release, reimburse, arbitrator updates) require
// an HS256 bearer token when a JWT secret is configured, and may carry an
// Idempotency-Key header.
package gin

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	talentlayer "github.com/talentlayer/talentlayer-go"
	"github.com/talentlayer/talentlayer-go/extensions/idempotency"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	API       talentlayer.EscrowAPI
	Logger    logrus.FieldLogger
	JWTSecret []byte
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// MCP is mounted at /mcp behind the JWT check when set.
	MCP http.Handler
}

// Handler holds the route handlers.
type Handler struct {
	api talentlayer.EscrowAPI
}

// NewRouter builds the engine with every route registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	h := &Handler{api: cfg.API}
	r.GET("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	r.GET("/arbitrators", h.Arbitrators)
	r.GET("/services/:serviceId", h.Service)
	r.GET("/proposals/:serviceId/:proposalId", h.Proposal)
	r.GET("/proposals/:serviceId/:proposalId/quote", h.Quote)

	writes := r.Group("/", RequireJWT(cfg.JWTSecret), IdempotencyKey())
	writes.POST("/escrow/approve", h.Approve)
	writes.POST("/escrow/release", h.Release)
	writes.POST("/escrow/reimburse", h.Reimburse)
	writes.PUT("/platforms/:platformId/arbitrator", h.UpdateArbitrator)
	if cfg.MCP != nil {
		writes.Any("/mcp", gin.WrapH(cfg.MCP))
	}
	return r
}

// HeaderIdempotencyKey carries the caller's key for deduplicating a write.
const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyKey attaches the Idempotency-Key header, when present, to the request context.
// Writes without the header are never deduplicated.
func IdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if err := idempotency.ValidateKey(key); err != nil {
			abortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(idempotency.WithKey(c.Request.Context(), key))
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": c.ClientIP(),
		})
		if subject, ok := c.Get(ContextKeySubject); ok {
			entry = entry.WithField("subject", subject)
		}
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.Info("request handled")
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Arbitrators handles GET /arbitrators.
func (h *Handler) Arbitrators(c *gin.Context) {
	arbitrators, err := h.api.Arbitrators()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, arbitrators)
}

// Service handles GET /services/:serviceId.
func (h *Handler) Service(c *gin.Context) {
	serviceID := c.Param("serviceId")
	service, err := h.api.GetService(c.Request.Context(), serviceID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if service == nil {
		abortWithError(c, talentlayer.NewError(talentlayer.ErrCodeServiceNotFound,
			fmt.Sprintf("service %s not found", serviceID), nil))
		return
	}
	c.JSON(http.StatusOK, service)
}

// Proposal handles GET /proposals/:serviceId/:proposalId.
func (h *Handler) Proposal(c *gin.Context) {
	serviceID, proposalID := c.Param("serviceId"), c.Param("proposalId")
	proposal, err := h.api.GetProposal(c.Request.Context(), serviceID, proposalID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if proposal == nil {
		abortWithError(c, talentlayer.NewError(talentlayer.ErrCodeProposalNotFound,
			fmt.Sprintf("proposal %s not found", talentlayer.ProposalKey(serviceID, proposalID)), nil))
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// Quote handles GET /proposals/:serviceId/:proposalId/quote.
func (h *Handler) Quote(c *gin.Context) {
	quote, err := h.api.QuoteApproval(c.Request.Context(), c.Param("serviceId"), c.Param("proposalId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// ApproveRequest is the body of POST /escrow/approve.
type ApproveRequest struct {
	ServiceID       string `json:"serviceId" binding:"required"`
	ProposalID      string `json:"proposalId" binding:"required"`
	MetaEvidenceCID string `json:"metaEvidenceCid" binding:"required"`
}

// Approve handles POST /escrow/approve.
func (h *Handler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, talentlayer.NewError(talentlayer.ErrCodeInvalidArgument, "invalid request body", err))
		return
	}
	result, err := h.api.Approve(c.Request.Context(), req.ServiceID, req.ProposalID, req.MetaEvidenceCID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// SettleRequest is the body of POST /escrow/release and /escrow/reimburse.
// Amount is a decimal string in the token's base units.
type SettleRequest struct {
	ServiceID string `json:"serviceId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// Release handles POST /escrow/release.
func (h *Handler) Release(c *gin.Context) {
	h.settle(c, h.api.Release)
}

// Reimburse handles POST /escrow/reimburse.
func (h *Handler) Reimburse(c *gin.Context) {
	h.settle(c, h.api.Reimburse)
}

func (h *Handler) settle(c *gin.Context, fn func(ctx context.Context, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error)) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, talentlayer.NewError(talentlayer.ErrCodeInvalidArgument, "invalid request body", err))
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		abortWithError(c, talentlayer.NewError(talentlayer.ErrCodeInvalidAmount,
			fmt.Sprintf("amount %q is not a decimal integer", req.Amount), nil))
		return
	}
	result, err := fn(c.Request.Context(), req.ServiceID, amount, req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpdateArbitratorRequest is the body of PUT /platforms/:platformId/arbitrator.
type UpdateArbitratorRequest struct {
	Arbitrator string `json:"arbitrator" binding:"required"`
}

// UpdateArbitrator handles PUT /platforms/:platformId/arbitrator.
func (h *Handler) UpdateArbitrator(c *gin.Context) {
	var req UpdateArbitratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, talentlayer.NewError(talentlayer.ErrCodeInvalidArgument, "invalid request body", err))
		return
	}
	txHash, err := h.api.UpdateArbitrator(c.Request.Context(), c.Param("platformId"), req.Arbitrator)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactionHash": txHash})
}
