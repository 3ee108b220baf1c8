package middleware_test

import (
	"context"
	"time"

	"enoriel/autos/internal/captcha"
	"enoriel/autos/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockConfigService implements services.IConfigService.
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}

func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	return defaultValue
}

func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	return defaultValue
}

func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	return defaultValue
}

func (m *MockConfigService) Load(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	return m.Called(ctx, key, value, isPublic).Error(0)
}

func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	args := m.Called(ctx, apiType, endpoint, isAuthenticated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIEndpointConfig), args.Error(1)
}

// MockTurnstileVerifier implements captcha.ITurnstileVerifier.
type MockTurnstileVerifier struct {
	mock.Mock
}

func (m *MockTurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	args := m.Called(ctx, token, remoteIP)
	return args.Bool(0), args.Error(1)
}

func (m *MockTurnstileVerifier) GenerateHumanToken(client captcha.Client, ttl time.Duration) (string, error) {
	args := m.Called(client, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTurnstileVerifier) ValidateHumanToken(tokenString string, client captcha.Client) bool {
	return m.Called(tokenString, client).Bool(0)
}
