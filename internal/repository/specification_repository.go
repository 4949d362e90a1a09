package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pricing-api/internal/models"
)

type SpecificationRepository interface {
	FindAll(ctx context.Context) ([]*models.TransactionSpecification, error)
}

type specificationRepository struct {
	collection *mongo.Collection
}

func NewSpecificationRepository(db *mongo.Database) SpecificationRepository {
	return &specificationRepository{
		collection: db.Collection("transaction_specifications"),
	}
}

func (r *specificationRepository) FindAll(ctx context.Context) ([]*models.TransactionSpecification, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction specifications: %w", err)
	}
	defer cursor.Close(ctx)

	var specs []*models.TransactionSpecification
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode transaction specifications: %w", err)
	}
	return specs, nil
}
