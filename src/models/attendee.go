package models

import (
	"tix/src/types"
	"time"
)

// Attendee is materialized once an order reaches PAID, one per ticketed
// seat. SeatNumber is the ordinal within the order item.
type Attendee struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	OrderID      uint       `json:"order_id,omitempty"`
	OrderItemID  uint       `json:"order_item_id,omitempty"`
	TicketTypeID uint       `json:"ticket_type_id,omitempty"`
	EventID      uint       `json:"event_id,omitempty"`
	UserID       uint       `json:"user_id,omitempty"`
	SeatNumber   uint       `json:"seat_number,omitempty"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy  *uint      `json:"checked_in_by,omitempty"`

	Order      Order      `json:"-"`
	TicketType TicketType `json:"ticket_type,omitempty"`

	types.Timestamps
}
