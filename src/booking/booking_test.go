package booking

import (
	"log"
	"testing"
	"time"
	"tix/src/db"
	"tix/src/models"
	"tix/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDb}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    types.OrderStatus
		to      types.OrderStatus
		allowed bool
	}{
		{types.ORDER_PENDING, types.ORDER_PAID, true},
		{types.ORDER_PENDING, types.ORDER_EXPIRED, true},
		{types.ORDER_PENDING, types.ORDER_CANCELED, true},
		{types.ORDER_PENDING, types.ORDER_PENDING, false},
		{types.ORDER_PAID, types.ORDER_EXPIRED, false},
		{types.ORDER_PAID, types.ORDER_CANCELED, false},
		{types.ORDER_PAID, types.ORDER_PENDING, false},
		{types.ORDER_EXPIRED, types.ORDER_PAID, false},
		{types.ORDER_EXPIRED, types.ORDER_CANCELED, false},
		{types.ORDER_CANCELED, types.ORDER_PAID, false},
		{types.ORDER_CANCELED, types.ORDER_EXPIRED, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.allowed, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestMergeSelections(t *testing.T) {
	merged := MergeSelections([]types.TicketSelection{
		{TicketTypeID: 9, Qty: 1},
		{TicketTypeID: 2, Qty: 2},
		{TicketTypeID: 9, Qty: 3},
	})

	assert.Len(t, merged, 2)
	assert.Equal(t, uint(2), merged[0].TicketTypeID)
	assert.Equal(t, uint(2), merged[0].Qty)
	assert.Equal(t, uint(9), merged[1].TicketTypeID)
	assert.Equal(t, uint(4), merged[1].Qty)
}

func TestConfirmPaymentReplay(t *testing.T) {
	gormDB, mock := newMockDB(t)
	db.NewDB(gormDB)

	intent := "pi_replayed"
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "user_id", "event_id", "booking_code", "status", "payment_intent_id", "total"}).
			AddRow(1, 7, 3, "1b4e28ba-2fa1-4d3b-a3f5-ef19b5a4633c", "paid", intent, 40.0))
	mock.ExpectQuery(`SELECT \* FROM "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "qty"}))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "someone@example.com"))
	mock.ExpectCommit()

	// The replay must not issue any statement beyond the locked read; the
	// mock rejects unexpected updates and inserts.
	order, err := ConfirmPayment(1, intent)
	assert.Nil(t, err)
	assert.Equal(t, types.ORDER_PAID, order.Status)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestConfirmPaymentTerminalState(t *testing.T) {
	gormDB, mock := newMockDB(t)
	db.NewDB(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "user_id", "event_id", "booking_code", "status"}).
			AddRow(1, 7, 3, "1b4e28ba-2fa1-4d3b-a3f5-ef19b5a4633c", "canceled"))
	mock.ExpectQuery(`SELECT \* FROM "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "qty"}))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "someone@example.com"))
	mock.ExpectRollback()

	_, err := ConfirmPayment(1, "pi_late")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestMarkExpiredAlreadyExpired(t *testing.T) {
	gormDB, mock := newMockDB(t)
	db.NewDB(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "user_id", "booking_code", "status"}).
			AddRow(1, 7, "1b4e28ba-2fa1-4d3b-a3f5-ef19b5a4633c", "expired"))
	mock.ExpectQuery(`SELECT \* FROM "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "qty"}))
	mock.ExpectCommit()

	err := MarkExpired(1, time.Now())
	assert.Nil(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestMarkExpiredRaceLost(t *testing.T) {
	gormDB, mock := newMockDB(t)
	db.NewDB(gormDB)

	extended := time.Now().Add(10 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders"`).
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "user_id", "booking_code", "status", "reserved_until"}).
			AddRow(1, 7, "1b4e28ba-2fa1-4d3b-a3f5-ef19b5a4633c", "pending", extended))
	mock.ExpectQuery(`SELECT \* FROM "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "qty"}))
	mock.ExpectRollback()

	err := MarkExpired(1, time.Now())
	assert.ErrorIs(t, err, ErrExpiryRaceLost)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestValidatePurchase(t *testing.T) {
	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	base := models.TicketType{
		Name:              "GA",
		Quantity:          100,
		MinTicketPurchase: 1,
		MaxTicketPurchase: 10,
	}

	t.Run("accepts a quantity within limits", func(t *testing.T) {
		tt := base
		assert.Nil(t, ValidatePurchase(&tt, 2, now))
	})

	t.Run("rejects disabled ticket types", func(t *testing.T) {
		tt := base
		tt.IsDisabled = true
		assert.NotNil(t, ValidatePurchase(&tt, 2, now))
	})

	t.Run("rejects sales before the window opens", func(t *testing.T) {
		tt := base
		tt.StartTime = &future
		assert.NotNil(t, ValidatePurchase(&tt, 2, now))
	})

	t.Run("rejects sales after the window closes", func(t *testing.T) {
		tt := base
		tt.EndTime = &past
		assert.NotNil(t, ValidatePurchase(&tt, 2, now))
	})

	t.Run("rejects quantities below the minimum", func(t *testing.T) {
		tt := base
		tt.MinTicketPurchase = 2
		assert.NotNil(t, ValidatePurchase(&tt, 1, now))
	})

	t.Run("rejects quantities above the maximum", func(t *testing.T) {
		tt := base
		assert.NotNil(t, ValidatePurchase(&tt, 11, now))
	})
}
