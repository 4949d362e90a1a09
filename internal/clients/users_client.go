package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricing-api/internal/models"
)

// UserAccountService is the narrow contract against the users service: the
// account record (type, assigned fees, remaining trading limit) and the fee
// assignment ledger.
type UserAccountService interface {
	GetAccount(ctx context.Context, userID int64) (*models.UserAccount, error)
	AddFeeAssignment(ctx context.Context, userID int64, feeID primitive.ObjectID) error
	RemoveFeeAssignment(ctx context.Context, userID int64, feeID primitive.ObjectID) error
	CountFeeUsages(ctx context.Context, feeID primitive.ObjectID) (int64, error)
}

type UsersClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type UsersClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewUsersClient(config *UsersClientConfig) *UsersClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &UsersClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type accountResponse struct {
	Account *accountData `json:"account"`
	Status  string       `json:"status"`
	Error   string       `json:"error,omitempty"`
}

type accountData struct {
	ID                    int64           `json:"id"`
	AccountType           string          `json:"account_type"`
	FeeIDs                []string        `json:"fee_ids"`
	AvailableTradingLimit decimal.Decimal `json:"available_trading_limit"`
}

type usageResponse struct {
	Usages int64  `json:"usages"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (c *UsersClient) GetAccount(ctx context.Context, userID int64) (*models.UserAccount, error) {
	var body accountResponse
	endpoint := fmt.Sprintf("%s/api/users/%d/account", c.baseURL, userID)
	if err := c.get(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	if body.Account == nil {
		return nil, fmt.Errorf("account response for user %d missing account: %s", userID, body.Error)
	}

	feeIDs := make([]primitive.ObjectID, 0, len(body.Account.FeeIDs))
	for _, raw := range body.Account.FeeIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid fee id %q for user %d: %w", raw, userID, err)
		}
		feeIDs = append(feeIDs, id)
	}

	return &models.UserAccount{
		ID:                    body.Account.ID,
		AccountType:           models.AccountType(body.Account.AccountType),
		FeeIDs:                feeIDs,
		AvailableTradingLimit: body.Account.AvailableTradingLimit,
	}, nil
}

func (c *UsersClient) AddFeeAssignment(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	endpoint := fmt.Sprintf("%s/api/users/%d/fees", c.baseURL, userID)
	return c.send(ctx, http.MethodPost, endpoint, map[string]string{"fee_id": feeID.Hex()})
}

func (c *UsersClient) RemoveFeeAssignment(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	endpoint := fmt.Sprintf("%s/api/users/%d/fees/%s", c.baseURL, userID, feeID.Hex())
	return c.send(ctx, http.MethodDelete, endpoint, nil)
}

func (c *UsersClient) CountFeeUsages(ctx context.Context, feeID primitive.ObjectID) (int64, error) {
	var body usageResponse
	endpoint := fmt.Sprintf("%s/api/users/fees/%s/usages", c.baseURL, feeID.Hex())
	if err := c.get(ctx, endpoint, &body); err != nil {
		return 0, err
	}
	return body.Usages, nil
}

func (c *UsersClient) get(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create users request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("users request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("users request %s failed with status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode users response: %w", err)
	}
	return nil
}

func (c *UsersClient) send(ctx context.Context, method, endpoint string, payload interface{}) error {
	var reqBody *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode users request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create users request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("users request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("users request %s %s failed with status %d", method, endpoint, resp.StatusCode)
	}
	return nil
}
