package booking

import (
	"fmt"
	"log"
	"slices"
	"time"
	"tix/src/db"
	"tix/src/ledger"
	"tix/src/models"
	"tix/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MergeSelections collapses duplicate ticket type lines into one and returns
// the result sorted by ascending ticket type id. Locks are always taken in
// that order, which keeps concurrent multi-line orders deadlock free.
func MergeSelections(items []types.TicketSelection) []types.TicketSelection {
	byType := map[uint]uint{}
	for _, item := range items {
		byType[item.TicketTypeID] += item.Qty
	}
	merged := make([]types.TicketSelection, 0, len(byType))
	for id, qty := range byType {
		merged = append(merged, types.TicketSelection{TicketTypeID: id, Qty: qty})
	}
	slices.SortFunc(merged, func(a, b types.TicketSelection) int {
		return int(a.TicketTypeID) - int(b.TicketTypeID)
	})
	return merged
}

// ValidatePurchase checks a single selection against the ticket type's sale
// window and purchase limits.
func ValidatePurchase(tt *models.TicketType, qty uint, now time.Time) error {
	if tt.IsDisabled {
		return fmt.Errorf("ticket type [%s] is not on sale", tt.Name)
	}
	if tt.StartTime != nil && now.Before(*tt.StartTime) {
		return fmt.Errorf("ticket type [%s] is not on sale yet", tt.Name)
	}
	if tt.EndTime != nil && now.After(*tt.EndTime) {
		return fmt.Errorf("ticket type [%s] is no longer on sale", tt.Name)
	}
	if qty < tt.MinTicketPurchase {
		return fmt.Errorf("ticket type [%s] requires at least %d tickets per order", tt.Name, tt.MinTicketPurchase)
	}
	if tt.MaxTicketPurchase > 0 && qty > tt.MaxTicketPurchase {
		return fmt.Errorf("ticket type [%s] allows at most %d tickets per order", tt.Name, tt.MaxTicketPurchase)
	}
	return nil
}

// CreateReservation places holds for every selection and creates a PENDING
// order, all inside one transaction. Either every line is held or the whole
// request fails and no inventory moves.
func CreateReservation(userID uint, body *types.CreateOrderRequestBody, hold time.Duration) (*models.Order, error) {
	selections := MergeSelections(body.Items)
	reservedUntil := time.Now().Add(hold)
	order := &models.Order{
		UserID:        userID,
		BookingCode:   uuid.New(),
		Status:        types.ORDER_PENDING,
		ReservedUntil: &reservedUntil,
	}
	err := db.GetDb().Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var items []models.OrderItem
		for _, sel := range selections {
			tt, err := ledger.LockTicketType(tx, sel.TicketTypeID)
			if err != nil {
				return err
			}
			if order.EventID == 0 {
				order.EventID = tt.EventID
				order.Currency = tt.Currency
			} else if order.EventID != tt.EventID {
				return ErrMixedEvents
			}
			if err := ValidatePurchase(tt, sel.Qty, now); err != nil {
				return err
			}
			if err := ledger.Hold(tx, tt, sel.Qty); err != nil {
				return err
			}
			subtotal := tt.Price * float32(sel.Qty)
			items = append(items, models.OrderItem{
				TicketTypeID: tt.ID,
				Qty:          sel.Qty,
				UnitPrice:    tt.Price,
				Subtotal:     subtotal,
			})
			order.Subtotal += subtotal
		}
		order.Total = order.Subtotal
		order.Items = items
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		txn := &models.Transaction{
			OrderID:  order.ID,
			Currency: order.Currency,
			Amount:   float64(order.Total),
			Status:   types.TRANSACTION_PENDING,
			Metadata: types.JSONB{"bookingCode": order.BookingCode.String()},
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		order.TransactionID = &txn.ID
		return tx.Model(order).Update("transaction_id", txn.ID).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[CreateReservation] order %d holds %d line(s) until %s\n", order.ID, len(order.Items), reservedUntil.Format(time.RFC3339))
	return order, nil
}

// ExtendReservation pushes a pending order's hold deadline forward. The new
// deadline must be strictly later than the current one.
func ExtendReservation(orderID uint, until time.Time) (*models.Order, error) {
	var order models.Order
	err := db.GetDb().Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Order{ID: orderID}).
			First(&order).
			Error; err != nil {
			return err
		}
		if order.Status != types.ORDER_PENDING {
			return ErrInvalidState
		}
		if order.ReservedUntil != nil && !until.After(*order.ReservedUntil) {
			return ErrInvalidState
		}
		order.ReservedUntil = &until
		return tx.Model(&order).Update("reserved_until", until).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// releaseHeld returns every held unit of the order's items to the pool.
// Items are walked in ascending ticket type id, matching the lock order used
// when the holds were taken.
func releaseHeld(tx *gorm.DB, order *models.Order) error {
	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)
	slices.SortFunc(items, func(a, b models.OrderItem) int {
		return int(a.TicketTypeID) - int(b.TicketTypeID)
	})
	for _, item := range items {
		if err := ledger.Release(tx, item.TicketTypeID, item.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Cancel releases a pending order's holds and moves it to CANCELED.
func Cancel(orderID uint) (*models.Order, error) {
	var order models.Order
	err := db.GetDb().Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Where(&models.Order{ID: orderID}).
			First(&order).
			Error; err != nil {
			return err
		}
		if order.Status != types.ORDER_PENDING {
			return ErrInvalidState
		}
		if err := releaseHeld(tx, &order); err != nil {
			return err
		}
		order.Status = types.ORDER_CANCELED
		if err := tx.Model(&order).Update("status", types.ORDER_CANCELED).Error; err != nil {
			return err
		}
		return tx.
			Model(&models.Transaction{}).
			Where(&models.Transaction{OrderID: order.ID}).
			Update("status", types.TRANSACTION_CANCELED).
			Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}
