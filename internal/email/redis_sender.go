package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"soomhub/market/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// Integration tests read them back from mockemail:<to>:<template>.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
	ttl    time.Duration
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
		ttl:    5 * time.Minute,
	}
}

// MockEmailKey is the key a message to recipient rendered from templateID is stored under.
func MockEmailKey(recipient, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(recipient), templateID)
}

// Send stores a JSON representation of the email instead of delivering it.
// Only the first recipient is used for the key.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := TemplateIDFromMessage(rawMessage)

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":          strings.Join(to, ", "),
		"from":        s.cfg.SmtpFromAddress,
		"subject":     subject,
		"body":        string(rawMessage),
		"sent_at":     time.Now().UTC().Format(time.RFC3339Nano),
		"template_id": templateID,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, templateID)
	if err := s.client.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, s.ttl, strings.Join(to, ", "), subject)
	return nil
}
