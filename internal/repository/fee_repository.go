package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pricing-api/internal/models"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

type FeeRepository interface {
	Insert(ctx context.Context, fee *models.Fee) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Fee, error)
	FindByLabelAndDirection(ctx context.Context, label string, direction models.Direction) (*models.Fee, error)
	FindByDiscountCode(ctx context.Context, code string) (*models.Fee, error)
	FindCandidates(ctx context.Context, assignedIDs []primitive.ObjectID) ([]*models.Fee, error)
}

type feeRepository struct {
	collection *mongo.Collection
}

func NewFeeRepository(db *mongo.Database) FeeRepository {
	return &feeRepository{
		collection: db.Collection("fees"),
	}
}

func (r *feeRepository) Insert(ctx context.Context, fee *models.Fee) error {
	fee.CreatedAt = time.Now()
	fee.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, fee)
	if err != nil {
		return fmt.Errorf("failed to insert fee: %w", err)
	}

	fee.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *feeRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Fee, error) {
	var fee models.Fee
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&fee)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("fee %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fee by ID: %w", err)
	}
	return &fee, nil
}

func (r *feeRepository) FindByLabelAndDirection(ctx context.Context, label string, direction models.Direction) (*models.Fee, error) {
	filter := bson.M{"label": label}
	if direction == "" {
		filter["direction"] = bson.M{"$exists": false}
	} else {
		filter["direction"] = direction
	}

	var fee models.Fee
	err := r.collection.FindOne(ctx, filter).Decode(&fee)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("fee %q/%s: %w", label, direction, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fee by label: %w", err)
	}
	return &fee, nil
}

func (r *feeRepository) FindByDiscountCode(ctx context.Context, code string) (*models.Fee, error) {
	var fee models.Fee
	err := r.collection.FindOne(ctx, bson.M{"discount_code": code}).Decode(&fee)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("discount code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fee by discount code: %w", err)
	}
	return &fee, nil
}

// FindCandidates returns the full candidate set for one fee resolution: all
// base fees, all publicly available (codeless) discount fees, and the fees
// individually assigned to the account.
func (r *feeRepository) FindCandidates(ctx context.Context, assignedIDs []primitive.ObjectID) ([]*models.Fee, error) {
	clauses := []bson.M{
		{"kind": models.FeeKindBase},
		{"kind": models.FeeKindDiscount, "discount_code": bson.M{"$in": bson.A{nil, ""}}},
	}
	if len(assignedIDs) > 0 {
		clauses = append(clauses, bson.M{"_id": bson.M{"$in": assignedIDs}})
	}

	cursor, err := r.collection.Find(ctx, bson.M{"$or": clauses})
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate fees: %w", err)
	}
	defer cursor.Close(ctx)

	var fees []*models.Fee
	if err := cursor.All(ctx, &fees); err != nil {
		return nil, fmt.Errorf("failed to decode candidate fees: %w", err)
	}
	return fees, nil
}
