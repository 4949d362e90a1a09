package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pricing-api/internal/cache"
	"pricing-api/internal/clients"
	"pricing-api/internal/config"
	"pricing-api/internal/models"
	"pricing-api/internal/monitoring"
)

// PricingService converts an amount between two currencies, honoring the
// minimum fee and minimum volume floors, the user's trading-limit ceiling,
// and the percentage fee resolved by the fee service.
type PricingService interface {
	GetTxDetails(ctx context.Context, req *QuoteRequest) (*models.TransactionDetails, error)
	GetSpecs(from, to models.Currency) models.TxSpec
	GetInSpecs(ctx context.Context, currency models.Currency) (models.TxSpec, error)
	ValidateInput(ctx context.Context, currency models.Currency, amount decimal.Decimal) (models.ValidationError, error)
}

// QuoteRequest describes one quote. Exactly one of SourceAmount and
// TargetAmount must be set; the other is derived. UserID is nil for
// anonymous quoting.
type QuoteRequest struct {
	SourceAmount  *decimal.Decimal
	TargetAmount  *decimal.Decimal
	From          models.Currency
	To            models.Currency
	UserID        *int64
	PaymentMethod models.PaymentMethod
}

func (r *QuoteRequest) validate() error {
	if (r.SourceAmount == nil) == (r.TargetAmount == nil) {
		return fmt.Errorf("exactly one of source_amount and target_amount must be set")
	}
	if err := r.From.Validate(); err != nil {
		return fmt.Errorf("invalid source currency: %w", err)
	}
	if err := r.To.Validate(); err != nil {
		return fmt.Errorf("invalid target currency: %w", err)
	}
	return nil
}

type pricingService struct {
	specs      *cache.SpecCache
	prices     clients.PriceProvider
	fees       FeeService
	users      clients.UserAccountService
	metrics    monitoring.MetricsService
	config     *config.PricingConfig
	limitScale decimal.Decimal
}

func NewPricingService(
	specs *cache.SpecCache,
	prices clients.PriceProvider,
	fees FeeService,
	users clients.UserAccountService,
	metrics monitoring.MetricsService,
	cfg *config.PricingConfig,
) PricingService {
	return &pricingService{
		specs:      specs,
		prices:     prices,
		fees:       fees,
		users:      users,
		metrics:    metrics,
		config:     cfg,
		limitScale: decimal.NewFromInt(1).Sub(cfg.LimitHaircut),
	}
}

// GetSpecs combines both legs' EUR floors: the minimum fee is the sum (a
// transaction must clear both legs), the minimum volume the larger of the
// two.
func (s *pricingService) GetSpecs(from, to models.Currency) models.TxSpec {
	inSpec := s.specs.Spec(from, models.SpecDirectionIn)
	outSpec := s.specs.Spec(to, models.SpecDirectionOut)
	return models.TxSpec{
		MinFee:    inSpec.MinFee.Add(outSpec.MinFee),
		MinVolume: decimal.Max(inSpec.MinVolume, outSpec.MinVolume),
	}
}

// GetInSpecs resolves the pay-in floors for a single currency, converted
// from EUR into that currency.
func (s *pricingService) GetInSpecs(ctx context.Context, currency models.Currency) (models.TxSpec, error) {
	spec := s.specs.Spec(currency, models.SpecDirectionIn)
	return s.convertSpec(ctx, spec, currency)
}

// ValidateInput pre-filters a detected pay-in before fees are known. The
// volume check uses a deliberately looser threshold than the hard floor.
func (s *pricingService) ValidateInput(ctx context.Context, currency models.Currency, amount decimal.Decimal) (models.ValidationError, error) {
	spec, err := s.GetInSpecs(ctx, currency)
	if err != nil {
		return "", err
	}
	if amount.LessThan(spec.MinVolume.Mul(s.config.MinDepositFactor)) {
		return models.ValidationErrorPayInTooSmall, nil
	}
	if !currency.Sellable {
		return models.ValidationErrorPayInNotSellable, nil
	}
	return "", nil
}

// GetTxDetails produces the full quote: floors and ceiling in both
// denominations, the applied fee, the estimation, and the validity
// classification.
func (s *pricingService) GetTxDetails(ctx context.Context, req *QuoteRequest) (*models.TransactionDetails, error) {
	start := time.Now()

	if err := req.validate(); err != nil {
		return nil, err
	}

	direction := getTxDirection(req.From, req.To)

	var account *models.UserAccount
	if req.UserID != nil {
		var err error
		account, err = s.users.GetAccount(ctx, *req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load account %d: %w", *req.UserID, err)
		}
	}

	eurSpec := s.GetSpecs(req.From, req.To)

	sourceSpec, err := s.convertSpecLimits(ctx, eurSpec, req.From, account)
	if err != nil {
		return nil, err
	}
	targetSpec, err := s.convertSpecLimits(ctx, eurSpec, req.To, account)
	if err != nil {
		return nil, err
	}

	txVolume, err := s.eurVolume(ctx, req)
	if err != nil {
		return nil, err
	}

	feeRate, err := s.resolveFeeRate(ctx, req, account, direction, txVolume)
	if err != nil {
		return nil, err
	}

	price, err := s.prices.GetPrice(ctx, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("failed to get price %s/%s: %w", req.From.Symbol, req.To.Symbol, err)
	}

	estimation := getTargetEstimation(req.SourceAmount, req.TargetAmount, feeRate, sourceSpec.MinFee, price, req.From, req.To)

	details := &models.TransactionDetails{
		TargetEstimation: estimation,
		MinFee:           sourceSpec.MinFee,
		MinVolume:        sourceSpec.MinVolume,
		MinFeeTarget:     targetSpec.MinFee,
		MinVolumeTarget:  targetSpec.MinVolume,
		MaxVolume:        sourceSpec.MaxVolume,
		MaxVolumeTarget:  targetSpec.MaxVolume,
		FeeRate:          feeRate,
		IsValid:          true,
	}

	switch {
	case estimation.SourceAmount.LessThan(sourceSpec.MinVolume):
		details.IsValid = false
		details.Error = models.TransactionErrorAmountTooLow
	case details.MaxVolume != nil && estimation.SourceAmount.GreaterThan(*details.MaxVolume):
		details.IsValid = false
		details.Error = models.TransactionErrorAmountTooHigh
	}

	s.metrics.RecordQuote(string(direction), details.IsValid, time.Since(start))
	return details, nil
}

// convertSpec converts EUR floors into the given currency and applies the
// standard rounding.
func (s *pricingService) convertSpec(ctx context.Context, spec models.TxSpec, currency models.Currency) (models.TxSpec, error) {
	price, err := s.prices.GetPrice(ctx, models.NewFiat(s.config.ReferenceCurrency), currency)
	if err != nil {
		return models.TxSpec{}, fmt.Errorf("failed to get price %s/%s: %w", s.config.ReferenceCurrency, currency.Symbol, err)
	}
	isFiat := currency.IsFiat()
	return models.TxSpec{
		MinFee:    models.RoundAmount(price.Convert(spec.MinFee), isFiat),
		MinVolume: models.RoundAmount(price.Convert(spec.MinVolume), isFiat),
	}, nil
}

// convertSpecLimits is convertSpec plus the trading-limit ceiling. The
// limit is tracked in CHF and scaled down slightly so that rounding on
// either side cannot push a quote over the real limit.
func (s *pricingService) convertSpecLimits(ctx context.Context, spec models.TxSpec, currency models.Currency, account *models.UserAccount) (models.TxSpecLimits, error) {
	converted, err := s.convertSpec(ctx, spec, currency)
	if err != nil {
		return models.TxSpecLimits{}, err
	}

	limits := models.TxSpecLimits{
		MinFee:    converted.MinFee,
		MinVolume: converted.MinVolume,
	}

	if account != nil {
		scaled := account.AvailableTradingLimit.Mul(s.limitScale)
		if !currency.Is(s.config.LimitCurrency) {
			price, err := s.prices.GetPrice(ctx, models.NewFiat(s.config.LimitCurrency), currency)
			if err != nil {
				return models.TxSpecLimits{}, fmt.Errorf("failed to get price %s/%s: %w", s.config.LimitCurrency, currency.Symbol, err)
			}
			scaled = price.Convert(scaled)
		}
		maxVolume := models.RoundLimit(scaled, currency.IsFiat())
		limits.MaxVolume = &maxVolume
	}

	return limits, nil
}

// eurVolume estimates the transaction's EUR volume from whichever amount
// the request carries, for the fee ceiling check.
func (s *pricingService) eurVolume(ctx context.Context, req *QuoteRequest) (decimal.Decimal, error) {
	reference := models.NewFiat(s.config.ReferenceCurrency)

	if req.SourceAmount != nil {
		price, err := s.prices.GetPrice(ctx, reference, req.From)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to get price %s/%s: %w", reference.Symbol, req.From.Symbol, err)
		}
		return price.Invert().Convert(*req.SourceAmount), nil
	}

	price, err := s.prices.GetPrice(ctx, reference, req.To)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price %s/%s: %w", reference.Symbol, req.To.Symbol, err)
	}
	return price.Invert().Convert(*req.TargetAmount), nil
}

// resolveFeeRate picks the percentage fee: card payments carry the fixed
// configured card fee, known users get their resolved fee, anonymous
// requests the default.
func (s *pricingService) resolveFeeRate(ctx context.Context, req *QuoteRequest, account *models.UserAccount, direction models.Direction, txVolume decimal.Decimal) (decimal.Decimal, error) {
	if req.PaymentMethod == models.PaymentMethodCard {
		return s.config.CardFee, nil
	}

	query := models.FeeQuery{
		Direction: direction,
		Asset:     feeAsset(req.From, req.To),
		TxVolume:  txVolume,
	}

	var result *FeeResult
	var err error
	if account != nil {
		result, err = s.fees.GetFeeForAccount(ctx, account, query)
	} else {
		result, err = s.fees.GetDefaultFee(ctx, query, "")
	}
	if err != nil {
		return decimal.Zero, err
	}
	return result.Rate, nil
}

// feeAsset is the crypto leg of the pair, or the target for fiat-to-fiat
// transfers. Base fee allow-lists are keyed by asset, not by fiat currency.
func feeAsset(from, to models.Currency) models.Currency {
	if !to.IsFiat() {
		return to
	}
	if !from.IsFiat() {
		return from
	}
	return to
}

// getTxDirection maps asset kinds to the fee direction: fiat in and crypto
// out is a buy, crypto in and fiat out a sell, everything else a convert.
func getTxDirection(from, to models.Currency) models.Direction {
	switch {
	case from.IsFiat() && !to.IsFiat():
		return models.DirectionBuy
	case !from.IsFiat() && to.IsFiat():
		return models.DirectionSell
	default:
		return models.DirectionConvert
	}
}

// getTargetEstimation is the core conversion math. When the target amount
// is requested, the percentage fee is grossed up so the user still receives
// exactly that amount after the fee is deducted.
func getTargetEstimation(inputAmount, outputAmount *decimal.Decimal, feeRate, minFee decimal.Decimal, price *models.Price, from, to models.Currency) models.TargetEstimation {
	one := decimal.NewFromInt(1)

	var percentageFee decimal.Decimal
	if outputAmount != nil {
		grossed := outputAmount.Mul(feeRate).Div(one.Sub(feeRate))
		percentageFee = price.Invert().Convert(grossed)
	} else {
		percentageFee = inputAmount.Mul(feeRate)
	}

	feeAmount := models.RoundAmount(decimal.Max(percentageFee, minFee), from.IsFiat())

	var targetAmount decimal.Decimal
	if outputAmount != nil {
		targetAmount = *outputAmount
	} else {
		net := decimal.Max(inputAmount.Sub(feeAmount), decimal.Zero)
		targetAmount = models.RoundAmount(price.Convert(net), to.IsFiat())
	}

	var sourceAmount decimal.Decimal
	if outputAmount != nil {
		sourceAmount = models.RoundAmount(price.Invert().Convert(*outputAmount).Add(feeAmount), from.IsFiat())
	} else {
		sourceAmount = *inputAmount
	}

	rate := decimal.Zero
	if !targetAmount.IsZero() {
		rate = models.RoundAmount(sourceAmount.Div(targetAmount), from.IsFiat())
	}

	return models.TargetEstimation{
		ExchangeRate:    models.RoundAmount(price.Rate, from.IsFiat()),
		Rate:            rate,
		FeeAmount:       feeAmount,
		EstimatedAmount: targetAmount,
		SourceAmount:    sourceAmount,
	}
}
