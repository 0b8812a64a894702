package models

import "tix/src/types"

type User struct {
	ID               uint            `gorm:"primarykey" json:"id"`
	Name             string          `json:"name,omitempty"`
	Email            string          `gorm:"uniqueIndex" json:"email,omitempty"`
	Role             string          `json:"role,omitempty"`
	EmailVerified    bool            `json:"email_verified,omitempty"`
	StripeCustomerId *string         `json:"-"`
	Metadata         *types.Metadata `gorm:"type:jsonb" json:"-"`

	Orders []Order `gorm:"foreignKey:user_id" json:"orders,omitempty"`

	types.Timestamps
}
