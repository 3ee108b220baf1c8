package email

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TemplateHeader names the notification template a message was rendered from.
const TemplateHeader = "X-Autos-Template"

const mockEmailTTL = 5 * time.Minute

// MockEmail is what RedisSender stores for end-to-end tests.
type MockEmail struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Template string `json:"template"`
	SentAt   string `json:"sent_at"`
}

// RedisSender stores messages in Redis so tests can read them back through the
// service API instead of an inbox.
type RedisSender struct {
	client *redis.Client
}

func NewRedisSender(client *redis.Client) *RedisSender {
	return &RedisSender{client: client}
}

// MockEmailKey is the key of the last message of a template sent to an address.
func MockEmailKey(to, template string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), template)
}

// headerValue reads one header from the head of a raw message.
func headerValue(raw []byte, name string) string {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	prefix := strings.ToLower(name) + ":"
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line == "\r" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	template := headerValue(rawMessage, TemplateHeader)
	if template == "" {
		template = "unknown"
	}
	for _, rcpt := range to {
		data, err := json.Marshal(MockEmail{
			To:       rcpt,
			Subject:  subject,
			Body:     string(rawMessage),
			Template: template,
			SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal email data: %w", err)
		}
		key := MockEmailKey(rcpt, template)
		if err := s.client.Set(ctx, key, data, mockEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		log.Printf("Mock email stored in Redis key '%s'", key)
	}
	return nil
}

// Lookup returns the stored message, or nil when none is present.
func (s *RedisSender) Lookup(ctx context.Context, to, template string) (*MockEmail, error) {
	data, err := s.client.Get(ctx, MockEmailKey(to, template)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mock email: %w", err)
	}
	var out MockEmail
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode mock email: %w", err)
	}
	return &out, nil
}
