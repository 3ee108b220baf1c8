package services

import (
	"context"
	"testing"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConfigService(t *testing.T, dbName string) *configService {
	t.Helper()
	mdb := utils.SetupTestDB(t, dbName, configCollection, apiConfigCollection)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		AppName:          "Autos",
		PollInterval:     10 * time.Second,
		CurrencySymbol:   "₦",
		FreeGift:         "5L Engine Oil",
		SubmissionLimit:  3,
		SubmissionWindow: 5 * time.Minute,
	}
	s := newConfigService(mdb, cfg, rdb)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestConfigService_Defaults(t *testing.T) {
	svc := setupConfigService(t, "testdb_config_service_defaults")
	ctx := context.Background()

	assert.Equal(t, 10, svc.GetInt(ctx, "POLL_INTERVAL_SECONDS", 0))
	assert.Equal(t, "5L Engine Oil", svc.GetString(ctx, "FREE_GIFT", ""))
	assert.Equal(t, 5*time.Minute, svc.GetDuration(ctx, "SUBMISSION_WINDOW_SECONDS", time.Second))
	assert.Equal(t, 42, svc.GetInt(ctx, "notfound", 42))
	assert.Equal(t, 5*time.Second, svc.GetDuration(ctx, "notfound", 5*time.Second))

	_, err := svc.Get(ctx, "does_not_exist")
	assert.Error(t, err)

	pub, err := svc.GetAllPublic(ctx)
	require.NoError(t, err)
	assert.Equal(t, "₦", pub["CURRENCY_SYMBOL"])
	assert.Equal(t, 10, pub["POLL_INTERVAL_SECONDS"])
}

func TestConfigService_SetOverridesDefaults(t *testing.T) {
	svc := setupConfigService(t, "testdb_config_service_set")
	ctx := context.Background()

	require.NoError(t, svc.SetConfigValue(ctx, "FREE_GIFT", "Full tank of fuel", true))
	require.NoError(t, svc.SetConfigValue(ctx, "POLL_INTERVAL_SECONDS", int64(30), true))
	require.NoError(t, svc.SetConfigValue(ctx, "INTERNAL_FLAG", "x", false))

	assert.Equal(t, "Full tank of fuel", svc.GetString(ctx, "FREE_GIFT", ""))
	assert.Equal(t, 30*time.Second, svc.GetDuration(ctx, "POLL_INTERVAL_SECONDS", 0))

	pub, err := svc.GetAllPublic(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Full tank of fuel", pub["FREE_GIFT"])
	_, leaked := pub["INTERNAL_FLAG"]
	assert.False(t, leaked, "private settings stay private")

	// A fresh instance sees the stored values after loading.
	other := newConfigService(svc.db, svc.cfg, nil)
	require.NoError(t, other.Load(ctx))
	assert.Equal(t, 30, other.GetInt(ctx, "POLL_INTERVAL_SECONDS", 0))

	assert.ErrorIs(t, svc.SetConfigValue(ctx, "", "x", true), ErrValidation)
}

func TestConfigService_APIEndpointConfig(t *testing.T) {
	svc := setupConfigService(t, "testdb_config_service_api")
	ctx := context.Background()

	_, err := svc.db.Collection(apiConfigCollection).InsertOne(ctx, models.APIEndpointConfig{
		Type:          models.APITypeREST,
		Endpoint:      "/v1/booking",
		RateLimitHard: &models.RateLimitConfig{BucketSize: 2, TokenRefillRate: 1},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Load(ctx))

	c, err := svc.GetAPIEndpointConfig(ctx, models.APITypeREST, "/v1/booking", false)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.RateLimitHard.BucketSize)

	c, err = svc.GetAPIEndpointConfig(ctx, models.APITypeREST, "/v1/booking", true)
	require.NoError(t, err)
	assert.NotNil(t, c, "authenticated callers fall back to the guest entry")

	c, err = svc.GetAPIEndpointConfig(ctx, models.APITypeJSON, "getBooking", true)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestConfigService_SetRejectsMistypedValues(t *testing.T) {
	// Rejected before the store is touched.
	svc := newConfigService(nil, &config.Config{FreeGift: "5L Engine Oil", SubmissionLimit: 3}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetConfigValue(ctx, KeySubmissionLimit, "lots", false), ErrValidation)
	assert.ErrorIs(t, svc.SetConfigValue(ctx, KeySubmissionLimit, 2.5, false), ErrValidation)
	assert.ErrorIs(t, svc.SetConfigValue(ctx, KeySubmissionWindowSeconds, -60.0, false), ErrValidation)
	assert.ErrorIs(t, svc.SetConfigValue(ctx, KeyFreeGift, "   ", true), ErrValidation)
	assert.ErrorIs(t, svc.SetConfigValue(ctx, KeyCurrencySymbol, 5.0, true), ErrValidation)

	assert.Equal(t, 3, svc.GetInt(ctx, KeySubmissionLimit, 0))
	assert.Equal(t, "5L Engine Oil", svc.GetString(ctx, KeyFreeGift, ""))

	v, err := normalizeConfigValue(KeySubmissionLimit, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 5, v, "JSON numbers are stored as whole ints")
}
