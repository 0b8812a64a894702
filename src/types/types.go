package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

// Handler consumes one raw queue message.
type Handler func(message string)

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_OPEN      EventStatus = "open"
	EVENT_CLOSED    EventStatus = "closed"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_ARCHIVED  EventStatus = "archived"
)

// OrderStatus values form the order lifecycle. PENDING is the only
// non-terminal status; PAID, EXPIRED and CANCELED accept no further
// transitions.
type OrderStatus string

const (
	ORDER_PENDING  OrderStatus = "pending"
	ORDER_PAID     OrderStatus = "paid"
	ORDER_EXPIRED  OrderStatus = "expired"
	ORDER_CANCELED OrderStatus = "canceled"
)

type TransactionStatus string

const (
	TRANSACTION_PENDING    TransactionStatus = "pending"
	TRANSACTION_PROCESSING TransactionStatus = "processing"
	TRANSACTION_COMPLETED  TransactionStatus = "paid"
	TRANSACTION_CANCELED   TransactionStatus = "canceled"
	TRANSACTION_EXPIRED    TransactionStatus = "expired"
)

type CreateEventRequestBody struct {
	Title       string  `json:"title" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty" binding:"required"`
	DateTime    string  `json:"date_time" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Publish     bool    `json:"publish,omitempty"`
}

type CreateShowRequestBody struct {
	Name     string `json:"name" binding:"required"`
	StartsAt string `json:"starts_at" binding:"required,bookabledate,ltdate=EndsAt" time_format:"2006-01-02 15:04:05 -07:00"`
	EndsAt   string `json:"ends_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
}

type CreateTicketTypeRequestBody struct {
	Name        string  `json:"name" binding:"required"`
	Currency    string  `json:"currency" binding:"required"`
	Price       float32 `json:"price" binding:"required"`
	EventID     uint    `json:"event" binding:"required"`
	ShowID      uint    `json:"show,omitempty"`
	Quantity    uint    `json:"quantity" binding:"required,min=1"`
	MinPurchase uint    `json:"min_purchase,omitempty"`
	MaxPurchase uint    `json:"max_purchase,omitempty"`
	StartTime   *string `json:"start_time,omitempty" binding:"omitempty,ltdate=EndTime" time_format:"2006-01-02 15:04:05 -07:00"`
	EndTime     *string `json:"end_time,omitempty"`
}

// TicketSelection is one requested line of an order.
type TicketSelection struct {
	TicketTypeID uint `json:"ticket_type" binding:"required"`
	Qty          uint `json:"qty" binding:"required,min=1"`
}

type CreateOrderRequestBody struct {
	Items       []TicketSelection `json:"items" binding:"required,min=1"`
	HoldMinutes uint              `json:"hold_minutes,omitempty" binding:"omitempty,max=60"`
}

type ExtendOrderRequestBody struct {
	ReservedUntil string `json:"reserved_until" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
}

type CheckInRequestBody struct {
	Code string `json:"code" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name,omitempty"`
}

type LoginRequestBody struct {
	Email string `json:"email" binding:"required,email"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type AttendeeCodeURIParams struct {
	OrderID    uint `uri:"id" binding:"required"`
	AttendeeID uint `uri:"attendeeId" binding:"required"`
}
