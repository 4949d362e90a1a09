package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pricing-api/internal/models"
	"pricing-api/internal/repository"
	"pricing-api/internal/service"
)

type QuoteController struct {
	pricingService service.PricingService
	currencies     repository.CurrencyRepository
}

func NewQuoteController(pricingService service.PricingService, currencies repository.CurrencyRepository) *QuoteController {
	return &QuoteController{
		pricingService: pricingService,
		currencies:     currencies,
	}
}

type QuoteRequest struct {
	SourceAmount  *decimal.Decimal `json:"source_amount"`
	TargetAmount  *decimal.Decimal `json:"target_amount"`
	From          string           `json:"from" binding:"required"`
	To            string           `json:"to" binding:"required"`
	UserID        *int64           `json:"user_id"`
	PaymentMethod string           `json:"payment_method"`
}

type ValidateInputRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

type ValidateInputResponse struct {
	Valid bool                   `json:"valid"`
	Error models.ValidationError `json:"error,omitempty"`
}

type SpecsResponse struct {
	MinFee    decimal.Decimal `json:"min_fee"`
	MinVolume decimal.Decimal `json:"min_volume"`
	Currency  string          `json:"currency"`
}

// @Summary Get a transaction quote
// @Description Compute the fee-adjusted conversion between two currencies
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "Quote request"
// @Success 200 {object} models.TransactionDetails
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/quotes [post]
func (c *QuoteController) GetQuote(ctx *gin.Context) {
	var req QuoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	from, ok := c.resolveCurrency(ctx, req.From)
	if !ok {
		return
	}
	to, ok := c.resolveCurrency(ctx, req.To)
	if !ok {
		return
	}

	details, err := c.pricingService.GetTxDetails(ctx.Request.Context(), &service.QuoteRequest{
		SourceAmount:  req.SourceAmount,
		TargetAmount:  req.TargetAmount,
		From:          *from,
		To:            *to,
		UserID:        req.UserID,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeServiceError(ctx, err, "Failed to compute quote")
		return
	}

	ctx.JSON(http.StatusOK, details)
}

// @Summary Get pair floors
// @Description Minimum fee and minimum volume for a currency pair, in EUR
// @Tags quotes
// @Produce json
// @Param from query string true "Source currency symbol"
// @Param to query string true "Target currency symbol"
// @Success 200 {object} models.TxSpec
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/quotes/specs [get]
func (c *QuoteController) GetSpecs(ctx *gin.Context) {
	fromSymbol := ctx.Query("from")
	toSymbol := ctx.Query("to")
	if fromSymbol == "" || toSymbol == "" {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing parameters",
			Message: "from and to query parameters are required",
		})
		return
	}

	from, ok := c.resolveCurrency(ctx, fromSymbol)
	if !ok {
		return
	}
	to, ok := c.resolveCurrency(ctx, toSymbol)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, c.pricingService.GetSpecs(*from, *to))
}

// @Summary Get pay-in floors for a currency
// @Description Minimum fee and minimum volume for pay-ins, denominated in the currency itself
// @Tags quotes
// @Produce json
// @Param symbol path string true "Currency symbol"
// @Success 200 {object} SpecsResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/quotes/specs/{symbol} [get]
func (c *QuoteController) GetInSpecs(ctx *gin.Context) {
	currency, ok := c.resolveCurrency(ctx, ctx.Param("symbol"))
	if !ok {
		return
	}

	spec, err := c.pricingService.GetInSpecs(ctx.Request.Context(), *currency)
	if err != nil {
		writeServiceError(ctx, err, "Failed to resolve pay-in floors")
		return
	}

	ctx.JSON(http.StatusOK, SpecsResponse{
		MinFee:    spec.MinFee,
		MinVolume: spec.MinVolume,
		Currency:  currency.Symbol,
	})
}

// @Summary Validate a pay-in
// @Description Pre-filter a detected pay-in before fees are known
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body ValidateInputRequest true "Pay-in to validate"
// @Success 200 {object} ValidateInputResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/quotes/validate [post]
func (c *QuoteController) ValidateInput(ctx *gin.Context) {
	var req ValidateInputRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	currency, ok := c.resolveCurrency(ctx, req.Currency)
	if !ok {
		return
	}

	validationErr, err := c.pricingService.ValidateInput(ctx.Request.Context(), *currency, req.Amount)
	if err != nil {
		writeServiceError(ctx, err, "Failed to validate pay-in")
		return
	}

	ctx.JSON(http.StatusOK, ValidateInputResponse{
		Valid: validationErr == "",
		Error: validationErr,
	})
}

func (c *QuoteController) resolveCurrency(ctx *gin.Context, symbol string) (*models.Currency, bool) {
	currency, err := c.currencies.FindBySymbol(ctx.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{
				Error:     "Unknown currency",
				Message:   "currency " + symbol + " is not supported",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		} else {
			ctx.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to resolve currency",
				Message: err.Error(),
			})
		}
		return nil, false
	}
	return currency, true
}
