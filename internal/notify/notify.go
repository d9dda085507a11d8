// Package notify sends best-effort email notifications when a stored
// extraction completes. Delivery failures are logged and never fail the
// request that triggered them.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"decklens/internal/core"
)

// Config holds SMTP relay settings. An empty Host disables notifications.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Mailer sends extraction notifications through an SMTP relay.
type Mailer struct {
	cfg Config
	log *slog.Logger

	// send is swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Mailer. Returns nil when notifications are not configured.
func New(cfg Config, log *slog.Logger) *Mailer {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// ExtractionStored notifies recipients that a deck extraction was persisted.
// Best-effort: errors are logged, never returned.
func (m *Mailer) ExtractionStored(record *core.StoredExtraction, status string) {
	if m == nil {
		return
	}

	subject := fmt.Sprintf("Deck extraction %s: %s", status, record.FilePath)
	body := fmt.Sprintf(
		"Extraction %s stored at %s\n\nFile: %s\nCompany: %s\nIndustry: %s\nFunding sought: %s\nStatus: %s\n",
		record.ID,
		record.CreatedAt.Format(time.RFC3339),
		record.FilePath,
		record.Profile.CompanyName,
		record.Profile.Industry,
		record.Profile.FundingSought,
		status,
	)

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + strings.Join(m.cfg.To, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, []byte(msg)); err != nil {
		m.log.Warn("notification email failed",
			"record_id", record.ID,
			"file_path", record.FilePath,
			"error", err,
		)
	}
}
