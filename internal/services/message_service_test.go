package services

import (
	"context"
	"strings"
	"testing"

	"enoriel/autos/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageService_CustomerMessageMovesWatermark(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	before, err := l.messages.UnreadCountForAdmin(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, before)

	msg, err := l.messages.PostCustomerMessage(ctx, b.ID, "  Is the price negotiable?  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Is the price negotiable?", msg.Body)
	assert.False(t, msg.IsFromAdmin)

	after, err := l.messages.UnreadCountForAdmin(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	stored := l.reload(t, b.ID)
	require.NotNil(t, stored.LastCustomerMessage)
	assertSameInstant(t, msg.CreatedAt, *stored.LastCustomerMessage)
	assertSameInstant(t, msg.CreatedAt, stored.UpdatedAt)

	timeline, err := l.activities.Timeline(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityMessage, timeline[0].Type)
	assert.Equal(t, "New message from customer", timeline[0].Title)
	assert.Equal(t, models.ActorCustomer, timeline[0].PerformedBy)
}

func TestMessageService_AdminReplyClearsUnread(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	_, err := l.messages.PostCustomerMessage(ctx, b.ID, "hello", nil)
	require.NoError(t, err)
	_, err = l.messages.PostCustomerMessage(ctx, b.ID, "anyone there?", nil)
	require.NoError(t, err)

	n, err := l.messages.UnreadCountForAdmin(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	reply, err := l.messages.PostAdminMessage(ctx, b.ID, "Yes, we're here", nil, "")
	require.NoError(t, err)
	n, err = l.messages.UnreadCountForAdmin(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored := l.reload(t, b.ID)
	require.NotNil(t, stored.LastAdminResponse)
	assertSameInstant(t, reply.CreatedAt, *stored.LastAdminResponse)
}

func TestMessageService_HasUnreadMessages(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	unread, err := l.messages.HasUnreadMessages(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, unread, "the welcome message alone is not unread")

	_, err = l.messages.PostCustomerMessage(ctx, b.ID, "thanks", nil)
	require.NoError(t, err)
	unread, err = l.messages.HasUnreadMessages(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, unread)

	_, err = l.messages.PostAdminMessage(ctx, b.ID, "you're welcome", nil, "")
	require.NoError(t, err)
	unread, err = l.messages.HasUnreadMessages(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, unread)
}

func TestMessageService_MarkAdminMessagesReadIsIdempotent(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.advanceTo(t, models.StatusInspectionScheduled)

	n, err := l.messages.MarkAdminMessagesRead(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = l.messages.MarkAdminMessagesRead(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, err := l.messages.List(ctx, b.ID)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
		assert.NotNil(t, m.ReadAt)
	}
}

func TestMessageService_PriceOffer(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	zero := 0.0
	_, err := l.messages.PostCustomerMessage(ctx, b.ID, "free?", &zero)
	assert.ErrorIs(t, err, ErrValidation)

	offer := 9000000.0
	msg, err := l.messages.PostCustomerMessage(ctx, b.ID, "Would you take 9m?", &offer)
	require.NoError(t, err)
	require.NotNil(t, msg.PriceOffer)
	assert.Equal(t, offer, *msg.PriceOffer)

	timeline, err := l.activities.Timeline(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Customer offered ₦9,000,000", timeline[0].Title)
}

func TestMessageService_Rejections(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	_, err := l.messages.PostCustomerMessage(ctx, b.ID, "   ", nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.messages.PostAdminMessage(ctx, b.ID, "", nil, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.messages.PostCustomerMessage(ctx, 4242, "hello", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)
	_, err = l.messages.PostCustomerMessage(ctx, b.ID, "hello?", nil)
	assert.ErrorIs(t, err, ErrNotFound, "cancelled bookings take no messages")
	assert.Equal(t, int64(1), l.countMessages(t, b.ID))
}

func TestMessageService_LongMessageTimelineExcerpt(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	long := strings.Repeat("é", 150)
	msg, err := l.messages.PostCustomerMessage(ctx, b.ID, long, nil)
	require.NoError(t, err)
	assert.Equal(t, long, msg.Body)

	timeline, err := l.activities.Timeline(ctx, b.ID, false)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 100), timeline[0].Description)
}

func TestMessageService_AdminAttachment(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)

	msg, err := l.messages.PostAdminMessage(ctx, b.ID, "Here is the inspection report", nil, "attachments/1/report.jpg")
	require.NoError(t, err)
	assert.True(t, msg.IsFromAdmin)

	msgs, err := l.messages.List(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "attachments/1/report.jpg", msgs[len(msgs)-1].AttachmentKey)
}

func TestMessageService_PostCustomerMessageRetriedAfterLockConflict(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)
	before := l.countMessages(t, b.ID)
	conflicts := 1
	l.failCreates(t, "activities", func() error {
		if conflicts == 0 {
			return nil
		}
		conflicts--
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	})

	msg, err := l.messages.PostCustomerMessage(ctx, b.ID, "Still available?", nil)
	require.NoError(t, err)
	assert.Zero(t, conflicts)
	assert.Equal(t, before+1, l.countMessages(t, b.ID))

	var stored models.Message
	require.NoError(t, l.db.Where("booking_id = ? AND is_from_admin = ?", b.ID, false).First(&stored).Error)
	assert.Equal(t, stored.ID, msg.ID)
	assertSameInstant(t, stored.CreatedAt, msg.CreatedAt)

	var entries []models.Activity
	require.NoError(t, l.db.Where("booking_id = ? AND type = ?", b.ID, models.ActivityMessage).Find(&entries).Error)
	require.Len(t, entries, 1)
	assertSameInstant(t, msg.CreatedAt, entries[0].CreatedAt)
	assertSameInstant(t, msg.CreatedAt, *l.reload(t, b.ID).LastCustomerMessage)
}

func TestMessageService_OfferTitleUsesRuntimeCurrency(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	b := l.createBooking(t)
	l.override(KeyCurrencySymbol, "NGN ")

	offer := 11000000.0
	_, err := l.messages.PostCustomerMessage(ctx, b.ID, "Would you take this?", &offer)
	require.NoError(t, err)

	timeline, err := l.activities.Timeline(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Customer offered NGN 11,000,000", timeline[0].Title)
}
