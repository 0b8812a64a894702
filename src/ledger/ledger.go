package ledger

import (
	"errors"
	"fmt"
	"log"
	"time"
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficientInventory is returned when a requested quantity exceeds
	// the available count. Recoverable: the caller retries with a smaller
	// quantity or a different ticket type.
	ErrInsufficientInventory = errors.New("requested quantity exceeds availability")
	// ErrInventoryExhausted signals that the sold/held counters no longer add
	// up. It must never occur while locking is correct and is logged as an
	// alarm, never swallowed.
	ErrInventoryExhausted = errors.New("inventory counters are inconsistent")
)

// Available returns quantity - sold - held for an already loaded ticket type.
func Available(t *models.TicketType) int64 {
	return int64(t.Quantity) - int64(t.SoldQuantity) - int64(t.HeldQuantity)
}

// CheckHold verifies that qty units can be held against t.
func CheckHold(t *models.TicketType, qty uint) error {
	if Available(t) < int64(qty) {
		return fmt.Errorf("ticket type [%s]: %w", t.Name, ErrInsufficientInventory)
	}
	return nil
}

// LockTicketType loads a ticket type under a row-level FOR UPDATE lock.
// Every counter mutation below goes through this lock, which serializes
// conflicting writers per ticket type without blocking unrelated types.
func LockTicketType(tx *gorm.DB, id uint) (*models.TicketType, error) {
	var tt models.TicketType
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(&models.TicketType{ID: id}).
		First(&tt).
		Error; err != nil {
		return nil, err
	}
	return &tt, nil
}

// Hold takes qty units from the available pool of the locked ticket type tt.
// The caller must have obtained tt via LockTicketType inside tx.
func Hold(tx *gorm.DB, tt *models.TicketType, qty uint) error {
	if err := CheckHold(tt, qty); err != nil {
		return err
	}
	if err := tx.
		Model(&models.TicketType{}).
		Where(&models.TicketType{ID: tt.ID}).
		UpdateColumn("held_quantity", gorm.Expr("held_quantity + ?", qty)).
		Error; err != nil {
		return err
	}
	tt.HeldQuantity += qty
	return nil
}

// Release returns qty held units of a ticket type to the available pool.
func Release(tx *gorm.DB, id uint, qty uint) error {
	tt, err := LockTicketType(tx, id)
	if err != nil {
		return err
	}
	if tt.HeldQuantity < qty {
		log.Printf("[ALARM] ticket type %d: releasing %d units but only %d held\n", id, qty, tt.HeldQuantity)
		return ErrInventoryExhausted
	}
	return tx.
		Model(&models.TicketType{}).
		Where(&models.TicketType{ID: id}).
		UpdateColumn("held_quantity", gorm.Expr("held_quantity - ?", qty)).
		Error
}

// CommitSale converts qty held units into sold units on payment
// confirmation.
func CommitSale(tx *gorm.DB, id uint, qty uint) error {
	tt, err := LockTicketType(tx, id)
	if err != nil {
		return err
	}
	if tt.HeldQuantity < qty || tt.SoldQuantity+qty > tt.Quantity {
		log.Printf("[ALARM] ticket type %d: commit of %d units would break counters (quantity=%d sold=%d held=%d)\n",
			id, qty, tt.Quantity, tt.SoldQuantity, tt.HeldQuantity)
		return ErrInventoryExhausted
	}
	return tx.
		Model(&models.TicketType{}).
		Where(&models.TicketType{ID: id}).
		UpdateColumns(map[string]any{
			"held_quantity": gorm.Expr("held_quantity - ?", qty),
			"sold_quantity": gorm.Expr("sold_quantity + ?", qty),
		}).
		Error
}

// AvailableCount reads the current available count without locking.
func AvailableCount(tx *gorm.DB, id uint) (int64, error) {
	var tt models.TicketType
	if err := tx.
		Where(&models.TicketType{ID: id}).
		First(&tt).
		Error; err != nil {
		return 0, err
	}
	return Available(&tt), nil
}

// ActiveHeldQuantity recomputes the held count from pending, unexpired
// orders. The maintained held_quantity counter is authoritative; this
// derived sum exists as a consistency check for operators.
func ActiveHeldQuantity(tx *gorm.DB, id uint) (int64, error) {
	var held int64
	err := tx.
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.ticket_type_id = ?", id).
		Where("orders.status = ?", types.ORDER_PENDING).
		Where("orders.reserved_until > ?", time.Now()).
		Select("COALESCE(SUM(order_items.qty), 0)").
		Scan(&held).
		Error
	return held, err
}
