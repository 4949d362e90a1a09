package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricing-api/internal/models"
	"pricing-api/internal/repository"
	"pricing-api/internal/service"
)

type FeeController struct {
	feeService service.FeeService
	currencies repository.CurrencyRepository
}

func NewFeeController(feeService service.FeeService, currencies repository.CurrencyRepository) *FeeController {
	return &FeeController{
		feeService: feeService,
		currencies: currencies,
	}
}

type RedeemDiscountRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type GrantFeeRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	FeeID  string `json:"fee_id" binding:"required"`
}

// @Summary Get the effective fee for a user
// @Description Resolve the percentage fee for a known account
// @Tags fees
// @Produce json
// @Param userId path int true "User ID"
// @Param direction query string false "Transaction direction (buy, sell, convert)"
// @Param asset query string true "Asset symbol"
// @Param volume query number false "Transaction volume in EUR"
// @Success 200 {object} service.FeeResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/fees/user/{userId} [get]
func (c *FeeController) GetUserFee(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("userId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid user ID",
			Message: err.Error(),
		})
		return
	}

	query, ok := c.buildFeeQuery(ctx)
	if !ok {
		return
	}

	result, err := c.feeService.GetUserFee(ctx.Request.Context(), userID, query)
	if err != nil {
		writeServiceError(ctx, err, "Failed to resolve fee")
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// @Summary Get the default fee
// @Description Resolve the percentage fee for anonymous quoting
// @Tags fees
// @Produce json
// @Param direction query string false "Transaction direction (buy, sell, convert)"
// @Param asset query string true "Asset symbol"
// @Param volume query number false "Transaction volume in EUR"
// @Param account_type query string false "Account type (defaults to personal)"
// @Success 200 {object} service.FeeResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/fees/default [get]
func (c *FeeController) GetDefaultFee(ctx *gin.Context) {
	query, ok := c.buildFeeQuery(ctx)
	if !ok {
		return
	}

	accountType := models.AccountType(ctx.Query("account_type"))
	result, err := c.feeService.GetDefaultFee(ctx.Request.Context(), query, accountType)
	if err != nil {
		writeServiceError(ctx, err, "Failed to resolve fee")
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// @Summary Redeem a discount code
// @Description Assign the discount fee behind a code to the user's account
// @Tags fees
// @Accept json
// @Produce json
// @Param request body RedeemDiscountRequest true "Redemption request"
// @Success 200 {object} models.Fee
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/fees/discount/redeem [post]
func (c *FeeController) RedeemDiscountCode(ctx *gin.Context) {
	var req RedeemDiscountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	fee, err := c.feeService.RedeemDiscountCode(ctx.Request.Context(), req.UserID, req.Code)
	if err != nil {
		writeServiceError(ctx, err, "Failed to redeem discount code")
		return
	}

	ctx.JSON(http.StatusOK, fee)
}

// @Summary Grant a fee to a user
// @Description Assign a fee by identifier, using the same validation as code redemption
// @Tags fees
// @Accept json
// @Produce json
// @Param request body GrantFeeRequest true "Grant request"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/fees/grant [post]
func (c *FeeController) GrantFee(ctx *gin.Context) {
	var req GrantFeeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	feeID, err := primitive.ObjectIDFromHex(req.FeeID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid fee ID",
			Message: err.Error(),
		})
		return
	}

	if err := c.feeService.GrantFee(ctx.Request.Context(), req.UserID, feeID); err != nil {
		writeServiceError(ctx, err, "Failed to grant fee")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// @Summary Apply sign-up fees
// @Description Grant every configured sign-up fee to a fresh account
// @Tags fees
// @Produce json
// @Param userId path int true "User ID"
// @Success 202
// @Failure 400 {object} ErrorResponse
// @Router /api/fees/signup/{userId} [post]
func (c *FeeController) ApplySignUpFees(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("userId"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid user ID",
			Message: err.Error(),
		})
		return
	}

	c.feeService.GrantSignUpFees(ctx.Request.Context(), userID)
	ctx.Status(http.StatusAccepted)
}

// @Summary Create a fee
// @Description Store an administratively defined fee rule
// @Tags fees
// @Accept json
// @Produce json
// @Param request body service.CreateFeeRequest true "Fee definition"
// @Success 201 {object} models.Fee
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/fees [post]
func (c *FeeController) CreateFee(ctx *gin.Context) {
	var req service.CreateFeeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	fee, err := c.feeService.CreateFee(ctx.Request.Context(), &req)
	if err != nil {
		writeServiceError(ctx, err, "Failed to create fee")
		return
	}

	ctx.JSON(http.StatusCreated, fee)
}

func (c *FeeController) buildFeeQuery(ctx *gin.Context) (models.FeeQuery, bool) {
	symbol := ctx.Query("asset")
	if symbol == "" {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing parameters",
			Message: "asset query parameter is required",
		})
		return models.FeeQuery{}, false
	}

	currency, err := c.currencies.FindBySymbol(ctx.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "Unknown currency",
				Message: "currency " + symbol + " is not supported",
			})
		} else {
			ctx.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to resolve currency",
				Message: err.Error(),
			})
		}
		return models.FeeQuery{}, false
	}

	query := models.FeeQuery{
		Direction: models.Direction(ctx.Query("direction")),
		Asset:     *currency,
	}

	if raw := ctx.Query("volume"); raw != "" {
		volume, err := decimal.NewFromString(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid volume",
				Message: err.Error(),
			})
			return models.FeeQuery{}, false
		}
		query.TxVolume = volume
	}

	return query, true
}

// writeServiceError maps service errors onto HTTP statuses: configuration
// problems are server errors, validation failures are client errors.
func writeServiceError(ctx *gin.Context, err error, title string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrDiscountCodeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrFeeExpired),
		errors.Is(err, service.ErrAccountTypeMismatch),
		errors.Is(err, service.ErrMaxUsagesReached):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrFeeAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrBaseFeeMissing):
		status = http.StatusInternalServerError
	}

	ctx.JSON(status, ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
