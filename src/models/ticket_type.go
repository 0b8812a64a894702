package models

import (
	"tix/src/types"
	"time"
)

// TicketType is one purchasable category within a show. Quantity is the
// total sellable stock; SoldQuantity counts confirmed sales and
// HeldQuantity counts units held by pending orders. Both counters are only
// ever updated under a row lock on this record, so
// quantity - sold_quantity - held_quantity never goes negative.
type TicketType struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	EventID           uint       `json:"event_id,omitempty"`
	ShowID            uint       `json:"show_id,omitempty"`
	Name              string     `json:"name,omitempty"`
	Price             float32    `json:"price"`
	Currency          string     `json:"currency,omitempty"`
	Quantity          uint       `json:"quantity"`
	SoldQuantity      uint       `gorm:"default:0" json:"sold_quantity"`
	HeldQuantity      uint       `gorm:"default:0" json:"held_quantity"`
	MinTicketPurchase uint       `gorm:"default:1" json:"min_ticket_purchase,omitempty"`
	MaxTicketPurchase uint       `gorm:"default:10" json:"max_ticket_purchase,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	IsDisabled        bool       `gorm:"default:false" json:"is_disabled"`
	StripePriceId     *string    `json:"-"`

	Event Event `json:"event,omitempty"`
	Show  *Show `json:"show,omitempty"`

	Stats *TicketTypeStats `gorm:"-" json:"stats,omitempty"`

	types.Timestamps
}

type TicketTypeStats struct {
	TicketTypeID uint  `json:"ticket_type_id,omitempty"`
	Available    int64 `json:"available"`
	Sold         uint  `json:"sold"`
	Held         uint  `json:"held"`
}
