package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pricing-api/internal/models"
)

type CurrencyRepository interface {
	FindBySymbol(ctx context.Context, symbol string) (*models.Currency, error)
	FindAll(ctx context.Context) ([]*models.Currency, error)
}

type currencyRepository struct {
	collection *mongo.Collection
}

func NewCurrencyRepository(db *mongo.Database) CurrencyRepository {
	return &currencyRepository{
		collection: db.Collection("currencies"),
	}
}

func (r *currencyRepository) FindBySymbol(ctx context.Context, symbol string) (*models.Currency, error) {
	var currency models.Currency
	err := r.collection.FindOne(ctx, bson.M{"symbol": symbol}).Decode(&currency)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("currency %s: %w", symbol, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get currency by symbol: %w", err)
	}
	return &currency, nil
}

func (r *currencyRepository) FindAll(ctx context.Context) ([]*models.Currency, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer cursor.Close(ctx)

	var currencies []*models.Currency
	if err := cursor.All(ctx, &currencies); err != nil {
		return nil, fmt.Errorf("failed to decode currencies: %w", err)
	}
	return currencies, nil
}
