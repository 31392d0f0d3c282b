package database

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ai-receptionist/internal/models"
)

func seedPhoneNumber(t *testing.T, db *DB) (models.Customer, models.PhoneNumber) {
	t.Helper()
	customer := models.Customer{Name: "Pat Jones", Email: "pat@example.com"}
	require.NoError(t, db.Create(&customer).Error)

	pn := models.PhoneNumber{
		Number:       "+15550100",
		CustomerID:   customer.ID,
		BusinessName: "Acme Dental",
	}
	require.NoError(t, db.Create(&pn).Error)
	return customer, pn
}

func TestFindOrCreateChatCall(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)

	call, err := db.FindOrCreateChatCall("abc123", pn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "chat_abc123", call.ExternalCallID)
	assert.Equal(t, models.CallActive, call.Status)
	assert.NotNil(t, call.StartedAt)

	again, err := db.FindOrCreateChatCall("abc123", pn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, call.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.Call{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAppendMessage_RoundTripPreservesOrder(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)
	call, err := db.FindOrCreateChatCall("s1", pn.ID, nil)
	require.NoError(t, err)

	require.NoError(t, db.AppendMessage(call.ID, models.SenderUser, "hello"))
	require.NoError(t, db.AppendMessage(call.ID, models.SenderAssistant, "hi, how can I help?"))

	loaded, err := db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, models.SenderUser, loaded.Messages[0].Sender)
	assert.Equal(t, "hello", loaded.Messages[0].Content)
	assert.Equal(t, models.SenderAssistant, loaded.Messages[1].Sender)
	assert.Equal(t, "hi, how can I help?", loaded.Messages[1].Content)
}

func TestAppendMessage_ManyTurnsStayChronological(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)
	call, err := db.FindOrCreateChatCall("s2", pn.ID, nil)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, db.AppendMessage(call.ID, models.SenderUser, fmt.Sprintf("msg-%d", i)))
	}

	loaded, err := db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 8)
	for i, m := range loaded.Messages {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Content)
	}
}

func TestAppendMessage_SummaryRefreshAtBoundary(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)
	call, err := db.FindOrCreateChatCall("s3", pn.ID, nil)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		require.NoError(t, db.AppendMessage(call.ID, models.SenderUser, fmt.Sprintf("topic-%d", i)))
	}
	loaded, err := db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	assert.Equal(t, "Web chat conversation", loaded.Summary) // unchanged before the boundary

	require.NoError(t, db.AppendMessage(call.ID, models.SenderUser, "topic-9"))
	loaded, err = db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	assert.Contains(t, loaded.Summary, "10 messages")
	assert.Contains(t, loaded.Summary, "topic-9")
}

func TestSessionHandleLifecycle(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)
	call, err := db.FindOrCreateChatCall("s4", pn.ID, nil)
	require.NoError(t, err)

	require.NoError(t, db.SetAISessionID(call.ID, "ollama_1_99"))
	loaded, err := db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	assert.Equal(t, "ollama_1_99", loaded.AISessionID)

	require.NoError(t, db.ClearAISessionID(call.ID))
	loaded, err = db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.AISessionID)
}

func TestCompleteCall(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)
	call, err := db.FindOrCreateChatCall("s5", pn.ID, nil)
	require.NoError(t, err)
	require.NoError(t, db.SetAISessionID(call.ID, "h_1_2"))

	require.NoError(t, db.CompleteCall(call.ID))

	loaded, err := db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallCompleted, loaded.Status)
	assert.Empty(t, loaded.AISessionID)
	assert.NotNil(t, loaded.EndedAt)
}

func TestFAQsForPhoneNumber_PriorityThenInsertionOrder(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)

	for i, faq := range []models.FAQ{
		{Question: "low-a", Answer: "a", Priority: 0},
		{Question: "high", Answer: "h", Priority: 5},
		{Question: "low-b", Answer: "b", Priority: 0},
	} {
		faq.PhoneNumberID = pn.ID
		require.NoError(t, db.Create(&faq).Error, "faq %d", i)
	}

	faqs, err := db.FAQsForPhoneNumber(pn.ID, 10)
	require.NoError(t, err)
	require.Len(t, faqs, 3)
	assert.Equal(t, "high", faqs[0].Question)
	assert.Equal(t, "low-a", faqs[1].Question)
	assert.Equal(t, "low-b", faqs[2].Question)

	limited, err := db.FAQsForPhoneNumber(pn.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFAQsNeedingScan(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)

	for _, faq := range []models.FAQ{
		{Question: "q1", Answer: "a", WebsiteURL: "https://example.com", WebsiteScanStatus: models.ScanStatusNotScanned},
		{Question: "q2", Answer: "a", WebsiteURL: "https://example.com", WebsiteScanStatus: models.ScanStatusFailed},
		{Question: "q3", Answer: "a", WebsiteURL: "https://example.com", WebsiteScanStatus: models.ScanStatusScanned},
		{Question: "q4", Answer: "a", WebsiteScanStatus: models.ScanStatusNotScanned}, // no URL
	} {
		faq.PhoneNumberID = pn.ID
		require.NoError(t, db.Create(&faq).Error)
	}

	faqs, err := db.FAQsNeedingScan(pn.ID)
	require.NoError(t, err)
	require.Len(t, faqs, 2)
	assert.Equal(t, "q1", faqs[0].Question)
	assert.Equal(t, "q2", faqs[1].Question)
}

func TestFAQ_EmbeddingIsOptional(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)

	plain := models.FAQ{PhoneNumberID: pn.ID, Question: "q1", Answer: "a1"}
	require.NoError(t, db.Create(&plain).Error)

	vector := pgvector.NewVector([]float32{0.1, 0.2, 0.3})
	indexed := models.FAQ{PhoneNumberID: pn.ID, Question: "q2", Answer: "a2", Embedding: &vector}
	require.NoError(t, db.Create(&indexed).Error)

	faqs, err := db.FAQsForPhoneNumber(pn.ID, 10)
	require.NoError(t, err)
	require.Len(t, faqs, 2)
	assert.Nil(t, faqs[0].Embedding)
	require.NotNil(t, faqs[1].Embedding)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, faqs[1].Embedding.Slice())
}

func TestSearchSimilarFAQs_ComposesNearestNeighborQuery(t *testing.T) {
	db := OpenTest(t)

	// Dry run: the <-> operator only exists on postgres, but the query must
	// still assemble cleanly.
	dry := &DB{db.Session(&gorm.Session{DryRun: true})}
	_, err := dry.SearchSimilarFAQs([]float32{0.1, 0.2, 0.3}, 1, 5)
	require.NoError(t, err)
}

func TestRefreshCallSummary_TruncatesOnRuneBoundary(t *testing.T) {
	db := OpenTest(t)
	_, pn := seedPhoneNumber(t, db)
	call, err := db.FindOrCreateChatCall("s6", pn.ID, nil)
	require.NoError(t, err)

	topic := strings.Repeat("é", 120)
	for i := 0; i < 10; i++ {
		require.NoError(t, db.AppendMessage(call.ID, models.SenderUser, topic))
	}

	loaded, err := db.LoadCallWithHistory(call.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(loaded.Summary))
	assert.Equal(t, 255, utf8.RuneCountInString(loaded.Summary))
}

func TestCustomerByID_AbsentIsNilNotError(t *testing.T) {
	db := OpenTest(t)

	customer, err := db.CustomerByID(999)
	require.NoError(t, err)
	assert.Nil(t, customer)
}

func TestRecentCallsForCustomer(t *testing.T) {
	db := OpenTest(t)
	customer, pn := seedPhoneNumber(t, db)

	var callIDs []uint
	for i := 0; i < 5; i++ {
		call, err := db.FindOrCreateChatCall(fmt.Sprintf("r%d", i), pn.ID, &customer.ID)
		require.NoError(t, err)
		callIDs = append(callIDs, call.ID)
	}

	recent, err := db.RecentCallsForCustomer(customer.ID, callIDs[4], 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	for _, c := range recent {
		assert.NotEqual(t, callIDs[4], c.ID)
	}
}
