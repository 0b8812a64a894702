package models

import (
	"tix/src/types"
	"time"

	"github.com/google/uuid"
)

// Order is a single checkout attempt. While PENDING it holds inventory for
// its items until ReservedUntil; BookingCode doubles as the idempotency key
// carried through payment-provider metadata.
type Order struct {
	ID                uint              `gorm:"primarykey" json:"id"`
	UserID            uint              `json:"user_id,omitempty"`
	EventID           uint              `json:"event_id,omitempty"`
	BookingCode       uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"booking_code"`
	Status            types.OrderStatus `gorm:"default:'pending'" json:"status,omitempty"`
	ReservedUntil     *time.Time        `json:"reserved_until,omitempty"`
	Subtotal          float32           `json:"subtotal,omitempty"`
	Total             float32           `json:"total,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	PaymentIntentId   *string           `json:"-"`
	CheckoutSessionId *string           `json:"-"`
	TransactionID     *uuid.UUID        `json:"transaction_id,omitempty"`

	User        *User        `gorm:"foreignKey:user_id" json:"user,omitempty"`
	Event       *Event       `gorm:"foreignKey:event_id" json:"event,omitempty"`
	Items       []OrderItem  `gorm:"constraint:OnDelete:CASCADE;" json:"items,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`

	types.Timestamps
}

type OrderItem struct {
	ID           uint    `gorm:"primarykey" json:"id"`
	OrderID      uint    `json:"order_id,omitempty"`
	TicketTypeID uint    `json:"ticket_type_id,omitempty"`
	Qty          uint    `json:"qty,omitempty"`
	UnitPrice    float32 `json:"unit_price,omitempty"`
	Subtotal     float32 `json:"subtotal,omitempty"`

	TicketType TicketType `json:"ticket_type,omitempty"`

	types.Timestamps
}
