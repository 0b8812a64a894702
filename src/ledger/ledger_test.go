package ledger

import (
	"log"
	"testing"
	"time"
	"tix/src/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

func TestAvailable(t *testing.T) {
	tt := &models.TicketType{Quantity: 100, SoldQuantity: 30, HeldQuantity: 20}
	assert.Equal(t, int64(50), Available(tt))

	tt = &models.TicketType{Quantity: 5}
	assert.Equal(t, int64(5), Available(tt))

	tt = &models.TicketType{Quantity: 5, SoldQuantity: 5}
	assert.Equal(t, int64(0), Available(tt))
}

func TestCheckHold(t *testing.T) {
	tt := &models.TicketType{Name: "GA", Quantity: 5}

	assert.Nil(t, CheckHold(tt, 3))
	tt.HeldQuantity = 3

	err := CheckHold(tt, 3)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	assert.Nil(t, CheckHold(tt, 2))
}

func TestCheckHoldExactRemainder(t *testing.T) {
	tt := &models.TicketType{Name: "VIP", Quantity: 10, SoldQuantity: 4, HeldQuantity: 6}

	err := CheckHold(tt, 1)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Nil(t, CheckHold(tt, 0))
}

func TestActiveHeldQuantity(t *testing.T) {
	gormDB, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(7)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(order_items.qty\), 0\) FROM "order_items"`).
		WillReturnRows(rows)

	held, err := ActiveHeldQuantity(gormDB, 1)
	assert.Nil(t, err)
	assert.Equal(t, int64(7), held)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestAvailableCount(t *testing.T) {
	gormDB, mock := newMockDB(t)

	now := time.Now()
	rows := sqlmock.
		NewRows([]string{"id", "quantity", "sold_quantity", "held_quantity", "created_at", "updated_at"}).
		AddRow(1, 100, 40, 10, now, now)
	mock.ExpectQuery(`SELECT \* FROM "ticket_types"`).WillReturnRows(rows)

	available, err := AvailableCount(gormDB, 1)
	assert.Nil(t, err)
	assert.Equal(t, int64(50), available)
	assert.Nil(t, mock.ExpectationsWereMet())
}
