package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"enoriel/autos/internal/cache"
	"enoriel/autos/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ICarService is the booking engine's view of the listing catalog.
type ICarService interface {
	GetCar(ctx context.Context, carID int64) (*models.Car, error)
	GetCarFresh(ctx context.Context, carID int64) (*models.Car, error)
	MarkSold(ctx context.Context, carID int64, sold bool) error
}

const carsCollection = "cars"

// carService reads cars from the catalog collection and memoizes lookups.
type carService struct {
	db    *mongo.Database
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCarService creates a new CarService. A nil cache disables memoization.
func NewCarService(db *mongo.Database, c cache.Cache, ttl time.Duration) ICarService {
	return &carService{db: db, cache: c, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func carCacheKey(carID int64) string {
	return cache.Key("car", strconv.FormatInt(carID, 10))
}

// GetCar returns the car or ErrCarNotFound. Cache failures fall through to the catalog.
func (s *carService) GetCar(ctx context.Context, carID int64) (*models.Car, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, carCacheKey(carID))
		if err == nil {
			var car models.Car
			if err := json.Unmarshal(raw, &car); err == nil {
				return &car, nil
			}
			log.Printf("Warning: discarding undecodable cache entry for car %d", carID)
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Printf("Error reading car %d from cache: %v", carID, err)
		}
	}
	return s.GetCarFresh(ctx, carID)
}

// GetCarFresh reads the catalog directly and refreshes the memoized copy. Use it where a
// stale sold flag would let a booking through.
func (s *carService) GetCarFresh(ctx context.Context, carID int64) (*models.Car, error) {
	var car models.Car
	err := s.db.Collection(carsCollection).FindOne(ctx, bson.M{"_id": carID}).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %d", ErrCarNotFound, carID)
		}
		return nil, fmt.Errorf("error finding car by ID %d: %w", carID, err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(&car); err == nil {
			if err := s.cache.Set(ctx, carCacheKey(carID), raw, s.ttl); err != nil {
				log.Printf("Error caching car %d: %v", carID, err)
			}
		}
	}
	return &car, nil
}

// MarkSold flips the sold flag in the catalog. Marking a car sold is how the admin settles
// competing bookings for it.
func (s *carService) MarkSold(ctx context.Context, carID int64, sold bool) error {
	res, err := s.db.Collection(carsCollection).UpdateOne(ctx,
		bson.M{"_id": carID},
		bson.M{"$set": bson.M{"is_sold": sold, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update car %d: %w", carID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %d", ErrCarNotFound, carID)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, carCacheKey(carID)); err != nil {
			log.Printf("Error invalidating cached car %d: %v", carID, err)
		}
	}
	return nil
}
