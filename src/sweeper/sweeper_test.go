package sweeper

import (
	"log"
	"testing"
	"time"

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

func TestDueOrderIDs(t *testing.T) {
	gormDB, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(7)
	mock.ExpectQuery(`SELECT "id" FROM "orders"`).WillReturnRows(rows)

	ids, err := DueOrderIDs(gormDB, time.Now(), DefaultBatchSize)
	assert.Nil(t, err)
	assert.Equal(t, []uint{3, 7}, ids)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestDueOrderIDsEmpty(t *testing.T) {
	gormDB, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id"})
	mock.ExpectQuery(`SELECT "id" FROM "orders"`).WillReturnRows(rows)

	ids, err := DueOrderIDs(gormDB, time.Now(), DefaultBatchSize)
	assert.Nil(t, err)
	assert.Len(t, ids, 0)
	assert.Nil(t, mock.ExpectationsWereMet())
}
