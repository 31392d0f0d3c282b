// Package models defines the persisted receptionist data model.
package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Message senders. A call's message log is append-only and chronological.
const (
	SenderSystem    = "system"
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Call statuses.
const (
	CallPending   = "pending"
	CallActive    = "active"
	CallCompleted = "completed"
	CallFailed    = "failed"
)

type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex;not null"`
	Company   string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PhoneNumber struct {
	ID                  uint   `gorm:"primaryKey"`
	Number              string `gorm:"uniqueIndex;not null"`
	CustomerID          uint   `gorm:"not null"`
	Customer            *Customer
	BusinessName        string
	BusinessHours       string
	BusinessDescription string
	Address             string
	ContactEmail        string
	Services            string `gorm:"type:text"` // comma-separated
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ServiceList splits the comma-separated services column.
func (p *PhoneNumber) ServiceList() []string {
	if strings.TrimSpace(p.Services) == "" {
		return nil
	}
	parts := strings.Split(p.Services, ",")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Call struct {
	ID             uint   `gorm:"primaryKey"`
	ExternalCallID string `gorm:"uniqueIndex;not null"`
	PhoneNumberID  uint   `gorm:"not null"`
	PhoneNumber    *PhoneNumber
	CustomerID     *uint
	Customer       *Customer
	CallerPhone    string
	Status         string `gorm:"default:pending"`
	AISessionID    string // opaque provider session handle, at most one active
	Summary        string
	StartedAt      *time.Time
	EndedAt        *time.Time
	Messages       []CallMessage `gorm:"foreignKey:CallID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DurationSeconds is the call length, 0 while the call is still open.
func (c *Call) DurationSeconds() int {
	if c.StartedAt == nil || c.EndedAt == nil {
		return 0
	}
	return int(c.EndedAt.Sub(*c.StartedAt).Seconds())
}

// FormattedDuration renders the duration as M:SS.
func (c *Call) FormattedDuration() string {
	total := c.DurationSeconds()
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

type CallMessage struct {
	ID        uint   `gorm:"primaryKey"`
	CallID    uint   `gorm:"index;not null"`
	Sender    string `gorm:"not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}

// FAQ website scan statuses.
const (
	ScanStatusNotScanned = "not_scanned"
	ScanStatusScanning   = "scanning"
	ScanStatusScanned    = "scanned"
	ScanStatusFailed     = "scan_failed"
)

// scanStaleAfter is how long scanned website content stays fresh.
const scanStaleAfter = 7 * 24 * time.Hour

type FAQ struct {
	ID                uint   `gorm:"primaryKey"`
	PhoneNumberID     uint   `gorm:"index;not null"`
	Question          string `gorm:"type:text;not null"`
	Answer            string `gorm:"type:text;not null"`
	Category          string
	Priority          int `gorm:"default:0"`
	WebsiteURL        string
	WebsiteScanStatus string `gorm:"default:not_scanned"`
	WebsiteScannedAt  *time.Time
	ContentHash       string
	Embedding         *pgvector.Vector `gorm:"type:vector(1536)"` // OpenAI embedding size; nil until indexed
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HashContent fingerprints scanned content for change detection.
func HashContent(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NeedsWebsiteScan reports whether the FAQ's website content should be
// (re)scanned: never scanned, a previous scan failed, or the last scan is
// older than a week.
func (f *FAQ) NeedsWebsiteScan() bool {
	if f.WebsiteURL == "" {
		return false
	}
	switch f.WebsiteScanStatus {
	case ScanStatusNotScanned, ScanStatusFailed:
		return true
	}
	if f.WebsiteScannedAt == nil {
		return true
	}
	return time.Since(*f.WebsiteScannedAt) > scanStaleAfter
}

// ContentChanged reports whether the answer text no longer matches the hash
// recorded at scan time.
func (f *FAQ) ContentChanged() bool {
	if f.Answer == "" || f.ContentHash == "" {
		return false
	}
	return HashContent(f.Answer) != f.ContentHash
}
