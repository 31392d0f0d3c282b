// Package database wraps gorm with the persistence operations the gateway
// consumes. Per-session write serialization is assumed from the caller;
// the underlying *gorm.DB is safe for concurrent use across sessions.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-receptionist/internal/models"
)

// summaryEvery is the message-count interval at which a call's summary is
// refreshed.
const summaryEvery = 10

type DB struct {
	*gorm.DB
}

// NewDB connects to postgres, enables the pgvector extension and migrates
// the schema.
func NewDB(host, user, password, dbname string, port int) (*DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		host, user, password, dbname, port)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Enable pgvector extension
	if err := gormDB.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, err
	}

	return New(gormDB)
}

// New migrates the schema on an already-open gorm connection. Split out of
// NewDB so tests can supply a different dialector.
func New(gormDB *gorm.DB) (*DB, error) {
	if err := gormDB.AutoMigrate(
		&models.Customer{},
		&models.PhoneNumber{},
		&models.Call{},
		&models.CallMessage{},
		&models.FAQ{},
	); err != nil {
		return nil, err
	}
	return &DB{gormDB}, nil
}

// FindOrCreateChatCall returns the call for a chat session, creating it on
// the first message of the session.
func (db *DB) FindOrCreateChatCall(sessionID string, phoneNumberID uint, customerID *uint) (*models.Call, error) {
	externalID := "chat_" + sessionID

	var call models.Call
	err := db.Where("external_call_id = ?", externalID).First(&call).Error
	if err == nil {
		return &call, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	now := time.Now()
	call = models.Call{
		ExternalCallID: externalID,
		PhoneNumberID:  phoneNumberID,
		CustomerID:     customerID,
		CallerPhone:    "web_chat",
		Status:         models.CallActive,
		StartedAt:      &now,
		Summary:        "Web chat conversation",
	}
	if err := db.Create(&call).Error; err != nil {
		return nil, err
	}
	return &call, nil
}

// LoadCallWithHistory loads a call and its messages in chronological order.
func (db *DB) LoadCallWithHistory(callID uint) (*models.Call, error) {
	var call models.Call
	err := db.
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Preload("PhoneNumber").
		Preload("Customer").
		First(&call, callID).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// CallBySessionID loads a call by its external chat session id.
func (db *DB) CallBySessionID(sessionID string) (*models.Call, error) {
	var call models.Call
	err := db.Where("external_call_id = ?", "chat_"+sessionID).First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// AppendMessage appends one message to a call's log and refreshes the call
// summary at every 10-message boundary.
func (db *DB) AppendMessage(callID uint, sender, content string) error {
	msg := models.CallMessage{
		CallID:  callID,
		Sender:  sender,
		Content: content,
	}
	if err := db.Create(&msg).Error; err != nil {
		return err
	}
	return db.refreshCallSummary(callID)
}

func (db *DB) refreshCallSummary(callID uint) error {
	var count int64
	if err := db.Model(&models.CallMessage{}).Where("call_id = ?", callID).Count(&count).Error; err != nil {
		return err
	}
	if count <= 2 || count%summaryEvery != 0 {
		return nil
	}

	var recent []models.CallMessage
	if err := db.Where("call_id = ?", callID).
		Order("created_at DESC, id DESC").Limit(3).Find(&recent).Error; err != nil {
		return err
	}
	topics := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		topics = append(topics, recent[i].Content)
	}

	summary := fmt.Sprintf("Chat conversation with %d messages. Recent topics: %s",
		count, strings.Join(topics, "; "))
	if runes := []rune(summary); len(runes) > 255 {
		summary = string(runes[:255])
	}
	return db.Model(&models.Call{}).Where("id = ?", callID).
		Update("summary", summary).Error
}

// SetAISessionID records the provider session handle on a call.
func (db *DB) SetAISessionID(callID uint, sessionID string) error {
	return db.Model(&models.Call{}).Where("id = ?", callID).
		Update("ai_session_id", sessionID).Error
}

// ClearAISessionID drops the provider session handle when a session ends.
func (db *DB) ClearAISessionID(callID uint) error {
	return db.Model(&models.Call{}).Where("id = ?", callID).
		Update("ai_session_id", "").Error
}

// CompleteCall marks a call finished.
func (db *DB) CompleteCall(callID uint) error {
	now := time.Now()
	return db.Model(&models.Call{}).Where("id = ?", callID).
		Updates(map[string]any{
			"status":        models.CallCompleted,
			"ended_at":      &now,
			"ai_session_id": "",
		}).Error
}

// FAQsForPhoneNumber returns up to limit FAQs, highest priority first, then
// insertion order.
func (db *DB) FAQsForPhoneNumber(phoneNumberID uint, limit int) ([]models.FAQ, error) {
	var faqs []models.FAQ
	err := db.Where("phone_number_id = ?", phoneNumberID).
		Order("priority DESC, id ASC").
		Limit(limit).
		Find(&faqs).Error
	return faqs, err
}

// FAQsNeedingScan returns FAQs whose website content has never been scanned
// or whose last scan failed.
func (db *DB) FAQsNeedingScan(phoneNumberID uint) ([]models.FAQ, error) {
	var faqs []models.FAQ
	err := db.Where("phone_number_id = ?", phoneNumberID).
		Where("website_url <> ''").
		Where("website_scan_status IN ?", []string{models.ScanStatusNotScanned, models.ScanStatusFailed}).
		Find(&faqs).Error
	return faqs, err
}

// SearchSimilarFAQs returns the FAQs nearest to the query embedding.
// Postgres-only: the <-> operator comes from pgvector.
func (db *DB) SearchSimilarFAQs(embedding []float32, phoneNumberID uint, limit int) ([]models.FAQ, error) {
	var faqs []models.FAQ

	vector := pgvector.NewVector(embedding)

	err := db.Where("phone_number_id = ?", phoneNumberID).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{vector}},
		}).
		Limit(limit).
		Find(&faqs).Error
	return faqs, err
}

// CustomerByID loads a customer, returning nil without error when absent.
func (db *DB) CustomerByID(id uint) (*models.Customer, error) {
	var customer models.Customer
	err := db.First(&customer, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// PhoneNumberByID loads a phone number record.
func (db *DB) PhoneNumberByID(id uint) (*models.PhoneNumber, error) {
	var pn models.PhoneNumber
	if err := db.First(&pn, id).Error; err != nil {
		return nil, err
	}
	return &pn, nil
}

// RecentCallsForCustomer returns a customer's most recent calls, newest
// first, excluding the given call.
func (db *DB) RecentCallsForCustomer(customerID uint, excludeCallID uint, limit int) ([]models.Call, error) {
	var calls []models.Call
	err := db.Where("customer_id = ?", customerID).
		Where("id <> ?", excludeCallID).
		Order("created_at DESC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}
