package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"golang.org/x/exp/slog"
)

// LedgerHandler exposes read access to transactions and customers
type LedgerHandler struct {
	stats  *services.StatsService
	credit *services.CreditService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(stats *services.StatsService, credit *services.CreditService) *LedgerHandler {
	return &LedgerHandler{stats: stats, credit: credit}
}

// ListTransactions handles GET /api/v1/transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	page, limit := pagination(c)
	txs, err := h.stats.ListTransactions(c.Request.Context(), page, limit)
	if err != nil {
		slog.Error("Failed to list transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "page": page, "limit": limit})
}

// GetCustomer handles GET /api/v1/customers/:phone
func (h *LedgerHandler) GetCustomer(c *gin.Context) {
	ctx := c.Request.Context()
	phone := c.Param("phone")

	customer, err := h.credit.Customer(ctx, phone)
	if err != nil {
		if errors.Is(err, services.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}
		slog.Error("Failed to look up customer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up customer"})
		return
	}

	eligibility, err := h.credit.CheckEligibility(ctx, phone)
	if err != nil {
		slog.Error("Failed to check eligibility", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check eligibility"})
		return
	}
	if eligibility.Eligible {
		customer.CreditLimit = eligibility.Limit
	}

	c.JSON(http.StatusOK, gin.H{
		"customer":    customer,
		"points":      h.credit.Policy().Progress(customer.KulaPoints),
		"eligibility": eligibility,
	})
}
