package email

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"soomhub/market/internal/config"
)

const outboxEntryEnd = "--- End Logged Email ---"

// FileEmailSender appends every notification to an outbox file (LOG_EMAILS) for local inspection.
// Workers send concurrently, so writes are serialized.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
	from     string
}

func NewFileEmailSender(filePath string, cfg *config.Config) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, errors.New("email outbox path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create email outbox directory for %s: %w", filePath, err)
	}
	from := ""
	if cfg != nil {
		from = cfg.SmtpFromAddress
	}
	return &FileEmailSender{filePath: filePath, from: from}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := TemplateIDFromMessage(rawMessage)
	var entry strings.Builder
	fmt.Fprintf(&entry, "--- Email Logged at %s (From: %s, To: %s, Subject: %s, Template: %s) ---\n",
		time.Now().UTC().Format(time.RFC3339Nano), s.from, strings.Join(to, ", "), subject, templateID)
	entry.Write(rawMessage)
	entry.WriteString("\n" + outboxEntryEnd + "\n\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email outbox %s: %w", s.filePath, err)
	}
	if _, err := file.WriteString(entry.String()); err != nil {
		file.Close()
		return fmt.Errorf("failed to append %s to email outbox: %w", templateID, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close email outbox %s: %w", s.filePath, err)
	}
	log.Printf("Email %s to %v written to outbox %s", templateID, to, s.filePath)
	return nil
}
