package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// OutboxEntry is one line of the file outbox.
type OutboxEntry struct {
	LoggedAt time.Time `json:"logged_at"`
	To       []string  `json:"to"`
	Subject  string    `json:"subject"`
	Template string    `json:"template,omitempty"`
	Raw      string    `json:"raw"`
}

// FileEmailSender appends every message to a JSON-lines outbox so notifications can
// be inspected in development without an SMTP relay.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
	now      func() time.Time
}

func NewFileEmailSender(filePath string) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email outbox path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory '%s': %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath, now: time.Now}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	line, err := json.Marshal(OutboxEntry{
		LoggedAt: s.now().UTC(),
		To:       to,
		Subject:  subject,
		Template: headerValue(rawMessage, TemplateHeader),
		Raw:      string(rawMessage),
	})
	if err != nil {
		return fmt.Errorf("failed to encode outbox entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email outbox: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to email outbox: %w", err)
	}
	return nil
}
