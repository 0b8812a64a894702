package models

import (
	"tix/src/types"
	"time"
)

type Event struct {
	ID        uint              `gorm:"primarykey" json:"id"`
	Title     string            `json:"title,omitempty"`
	Name      string            `json:"name,omitempty"`
	Slug      string            `gorm:"index" json:"slug,omitempty"`
	About     *string           `json:"about,omitempty"`
	Location  string            `json:"location,omitempty"`
	DateTime  *time.Time        `json:"date_time,omitempty"`
	Status    types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	CreatedBy uint              `json:"created_by,omitempty"`

	Creator     User         `gorm:"foreignKey:created_by" json:"-"`
	Shows       []Show       `json:"shows,omitempty"`
	TicketTypes []TicketType `json:"ticket_types,omitempty"`

	types.Timestamps
}

type Show struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	EventID  uint      `json:"event_id,omitempty"`
	Name     string    `json:"name,omitempty"`
	StartsAt time.Time `json:"starts_at,omitempty"`
	EndsAt   time.Time `json:"ends_at,omitempty"`

	Event Event `json:"-"`

	types.Timestamps
}
