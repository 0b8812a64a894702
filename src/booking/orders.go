package booking

import (
	"encoding/json"
	"log"
	"slices"
	"time"
	"tix/src/db"
	"tix/src/ledger"
	"tix/src/lib"
	"tix/src/lib/mailer"
	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanTransition reports whether an order may move between the two statuses.
// PENDING is the only status with outgoing edges.
func CanTransition(from, to types.OrderStatus) bool {
	if from != types.ORDER_PENDING {
		return false
	}
	switch to {
	case types.ORDER_PAID, types.ORDER_EXPIRED, types.ORDER_CANCELED:
		return true
	}
	return false
}

// ConfirmPayment converts a pending order's holds into sales and marks it
// PAID. A replayed confirmation for the same payment reference returns the
// order unchanged, so webhook retries are safe.
func ConfirmPayment(orderID uint, paymentIntentId string) (*models.Order, error) {
	var order models.Order
	replayed := false
	err := db.GetDb().Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Preload("User").
			Where(&models.Order{ID: orderID}).
			First(&order).
			Error; err != nil {
			return err
		}
		if order.Status == types.ORDER_PAID {
			if order.PaymentIntentId != nil && *order.PaymentIntentId == paymentIntentId {
				log.Printf("[ConfirmPayment] order %d already paid, replay ignored\n", order.ID)
				replayed = true
				return nil
			}
			return ErrInvalidState
		}
		if !CanTransition(order.Status, types.ORDER_PAID) {
			return ErrInvalidState
		}
		items := make([]models.OrderItem, len(order.Items))
		copy(items, order.Items)
		slices.SortFunc(items, func(a, b models.OrderItem) int {
			return int(a.TicketTypeID) - int(b.TicketTypeID)
		})
		for _, item := range items {
			if err := ledger.CommitSale(tx, item.TicketTypeID, item.Qty); err != nil {
				return err
			}
			for seat := uint(1); seat <= item.Qty; seat++ {
				attendee := &models.Attendee{
					OrderID:      order.ID,
					OrderItemID:  item.ID,
					TicketTypeID: item.TicketTypeID,
					EventID:      order.EventID,
					UserID:       order.UserID,
					SeatNumber:   seat,
				}
				if err := tx.Create(attendee).Error; err != nil {
					return err
				}
			}
		}
		order.Status = types.ORDER_PAID
		order.PaymentIntentId = &paymentIntentId
		if err := tx.
			Model(&order).
			UpdateColumns(map[string]any{
				"status":            types.ORDER_PAID,
				"payment_intent_id": paymentIntentId,
			}).
			Error; err != nil {
			return err
		}
		return tx.
			Model(&models.Transaction{}).
			Where(&models.Transaction{OrderID: order.ID}).
			UpdateColumns(map[string]any{
				"status":            types.TRANSACTION_COMPLETED,
				"amount_paid":       order.Total,
				"payment_intent_id": paymentIntentId,
			}).
			Error
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return &order, nil
	}
	go notifyOrderStatus(&order, "orders-paid")
	go mailer.SendOrderConfirmation(&order)
	return &order, nil
}

// MarkExpired reclaims the holds of a pending order whose deadline has
// passed. Orders already expired are a no-op; a concurrent payment or
// extension surfaces as ErrExpiryRaceLost and leaves the order untouched.
func MarkExpired(orderID uint, now time.Time) error {
	var order models.Order
	replayed := false
	err := db.GetDb().Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Where(&models.Order{ID: orderID}).
			First(&order).
			Error; err != nil {
			return err
		}
		if order.Status == types.ORDER_EXPIRED {
			replayed = true
			return nil
		}
		if order.Status != types.ORDER_PENDING {
			return ErrExpiryRaceLost
		}
		if order.ReservedUntil != nil && order.ReservedUntil.After(now) {
			return ErrExpiryRaceLost
		}
		if err := releaseHeld(tx, &order); err != nil {
			return err
		}
		order.Status = types.ORDER_EXPIRED
		if err := tx.Model(&order).Update("status", types.ORDER_EXPIRED).Error; err != nil {
			return err
		}
		return tx.
			Model(&models.Transaction{}).
			Where(&models.Transaction{OrderID: order.ID}).
			Update("status", types.TRANSACTION_EXPIRED).
			Error
	})
	if err != nil {
		return err
	}
	if replayed {
		return nil
	}
	go notifyOrderStatus(&order, "orders-expired")
	return nil
}

func notifyOrderStatus(order *models.Order, topic string) {
	payload, err := json.Marshal(map[string]any{
		"order_id":     order.ID,
		"booking_code": order.BookingCode.String(),
		"status":       order.Status,
	})
	if err != nil {
		log.Printf("[notifyOrderStatus] marshal failed: %s\n", err.Error())
		return
	}
	if err := lib.KafkaProduceMessage(topic, order.BookingCode.String(), payload); err != nil {
		log.Printf("[notifyOrderStatus] produce to [%s] failed: %s\n", topic, err.Error())
	}
}
