package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/db"
	"enoriel/autos/internal/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IConfigService exposes runtime-tunable settings stored in MongoDB. Values set at runtime
// override the environment defaults and reach every instance through Redis pub/sub.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
	GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error)
}

// Runtime-tunable keys. Each falls back to its environment default until set.
const (
	KeyAppName                 = "APP_NAME"
	KeyPollIntervalSeconds     = "POLL_INTERVAL_SECONDS"
	KeyCurrencySymbol          = "CURRENCY_SYMBOL"
	KeyFreeGift                = "FREE_GIFT"
	KeySubmissionLimit         = "SUBMISSION_LIMIT"
	KeySubmissionWindowSeconds = "SUBMISSION_WINDOW_SECONDS"
)

const (
	configCollection    = "configuration"
	apiConfigCollection = "api_endpoints_config"
	configUpdateChannel = "config_updates"
)

type configService struct {
	db       *mongo.Database
	cfg      *config.Config
	rdb      *redis.Client
	cache    map[string]interface{}
	apiCache map[string]*models.APIEndpointConfig
	mutex    sync.RWMutex
}

// NewConfigService creates a new ConfigService, loads the stored settings and starts
// listening for changes published by other instances.
func NewConfigService(db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) IConfigService {
	s := newConfigService(db, initialCfg, rdb)
	if err := s.Load(context.Background()); err != nil {
		log.Printf("WARNING: Failed to load initial config from DB: %v. Using defaults from .env", err)
	}
	go func() {
		if err := s.SubscribeToChanges(context.Background()); err != nil {
			log.Printf("CRITICAL: Config Pub/Sub listener stopped: %v", err)
		}
	}()
	return s
}

func newConfigService(db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) *configService {
	return &configService{
		db:       db,
		cfg:      initialCfg,
		rdb:      rdb,
		cache:    make(map[string]interface{}),
		apiCache: make(map[string]*models.APIEndpointConfig),
	}
}

// ConfigEntry represents a document in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
	Public bool        `bson:"public"`
}

// Load replaces the in-memory settings and API endpoint configs with the stored ones.
func (s *configService) Load(ctx context.Context) error {
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: Failed to decode config entry during load: %v", err)
			continue
		}
		newCache[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating config cursor: %w", err)
	}

	newAPICache := make(map[string]*models.APIEndpointConfig)
	apiCursor, err := s.db.Collection(apiConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		log.Printf("Error querying API endpoint configs: %v", err)
	} else {
		defer apiCursor.Close(ctx)
		for apiCursor.Next(ctx) {
			var entry models.APIEndpointConfig
			if err := apiCursor.Decode(&entry); err != nil {
				log.Printf("Warning: Failed to decode API config entry during load: %v", err)
				continue
			}
			newAPICache[entry.Key()] = &entry
		}
		if err := apiCursor.Err(); err != nil {
			log.Printf("Error iterating API config cursor: %v", err)
		}
	}

	s.mutex.Lock()
	s.cache = newCache
	s.apiCache = newAPICache
	s.mutex.Unlock()

	log.Printf("Loaded %d general config entries and %d API configs into cache from DB.", len(newCache), len(newAPICache))
	return nil
}

// GetAllPublic returns the settings the booking page needs, with stored public values
// taking precedence over environment defaults.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{
		KeyAppName:             s.cfg.AppName,
		KeyPollIntervalSeconds: int(s.cfg.PollInterval / time.Second),
		KeyCurrencySymbol:      s.cfg.CurrencySymbol,
		KeyFreeGift:            s.cfg.FreeGift,
	}

	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: Failed to decode public config entry: %v", err)
			continue
		}
		publicConfig[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}
	return publicConfig, nil
}

// Get returns a stored value, falling back to the environment default for known keys.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if exists {
		return val, nil
	}

	switch key {
	case KeyAppName:
		return s.cfg.AppName, nil
	case KeyPollIntervalSeconds:
		return int(s.cfg.PollInterval / time.Second), nil
	case KeyCurrencySymbol:
		return s.cfg.CurrencySymbol, nil
	case KeyFreeGift:
		return s.cfg.FreeGift, nil
	case KeySubmissionLimit:
		return s.cfg.SubmissionLimit, nil
	case KeySubmissionWindowSeconds:
		return int(s.cfg.SubmissionWindow / time.Second), nil
	default:
		return nil, fmt.Errorf("config key '%s' not found", key)
	}
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	log.Printf("Warning: Config key '%s' is not a string, using default.", key)
	return defaultValue
}

func (s *configService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	// MongoDB may hand numbers back as int32, int64 or float64.
	switch v := val.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		log.Printf("Warning: Config key '%s' is not an integer type (%T), using default.", key, val)
		return defaultValue
	}
}

// GetDuration reads a value stored as whole seconds.
func (s *configService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	if _, err := s.Get(ctx, key); err != nil {
		return defaultValue
	}
	secs := s.GetInt(ctx, key, -1)
	if secs < 0 {
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}

// SubscribeToChanges reloads the settings whenever another instance publishes an update.
func (s *configService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, cannot subscribe to config changes.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}

	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)
	for msg := range pubsub.Channel() {
		log.Printf("Received config update notification on channel %s: %s", msg.Channel, msg.Payload)
		if err := s.Load(context.Background()); err != nil {
			log.Printf("ERROR reloading config from DB after notification: %v", err)
		}
	}

	log.Println("Config Pub/Sub listener stopped.")
	return nil
}

// SetConfigValue upserts a setting and notifies the other instances. Numeric settings
// must be whole non-negative numbers.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	if key == "" {
		return validationError("config key is required")
	}
	value, err := normalizeConfigValue(key, value)
	if err != nil {
		return err
	}
	collection := s.db.Collection(configCollection)
	upsert := func() error {
		_, err := collection.UpdateOne(ctx,
			bson.M{"key": key},
			bson.M{"$set": bson.M{"key": key, "value": value, "public": isPublic}},
			options.Update().SetUpsert(true),
		)
		return err
	}
	// Two racing upserts on the unique key index can collide; the retry sees the winner.
	if err := db.WithRetries(upsert, db.DefaultMaxRetries, db.IsMongoDuplicateKeyError); err != nil {
		return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
	}

	s.mutex.Lock()
	s.cache[key] = value
	s.mutex.Unlock()

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			log.Printf("Warning: Failed to publish config update notification for key '%s': %v", key, err)
		}
	}

	log.Printf("Updated config key '%s' and published notification.", key)
	return nil
}

// GetAPIEndpointConfig returns the rate limit override for an endpoint, or nil when the
// defaults apply. Authenticated callers fall back to the guest entry.
func (s *configService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if c, ok := s.apiCache[models.EndpointKey(apiType, endpoint, isAuthenticated)]; ok {
		return c, nil
	}
	if isAuthenticated {
		if c, ok := s.apiCache[models.EndpointKey(apiType, endpoint, false)]; ok {
			return c, nil
		}
	}
	return nil, nil
}

func normalizeConfigValue(key string, value interface{}) (interface{}, error) {
	switch key {
	case KeyPollIntervalSeconds, KeySubmissionLimit, KeySubmissionWindowSeconds:
		var n float64
		switch v := value.(type) {
		case int:
			n = float64(v)
		case int64:
			n = float64(v)
		case float64:
			n = v
		default:
			return nil, validationError("%s must be a number", key)
		}
		if n < 0 || n != float64(int64(n)) {
			return nil, validationError("%s must be a whole non-negative number", key)
		}
		return int(n), nil
	case KeyAppName, KeyCurrencySymbol, KeyFreeGift:
		str, ok := value.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return nil, validationError("%s must be a non-empty string", key)
		}
		return strings.TrimSpace(str), nil
	}
	return value, nil
}

// currencySymbol and freeGift resolve customer-facing settings, preferring runtime
// overrides. A nil settings service keeps the environment values.
func currencySymbol(ctx context.Context, settings IConfigService, cfg *config.Config) string {
	if settings == nil {
		return cfg.CurrencySymbol
	}
	return settings.GetString(ctx, KeyCurrencySymbol, cfg.CurrencySymbol)
}

func freeGift(ctx context.Context, settings IConfigService, cfg *config.Config) string {
	if settings == nil {
		return cfg.FreeGift
	}
	return settings.GetString(ctx, KeyFreeGift, cfg.FreeGift)
}
