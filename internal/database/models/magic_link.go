package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MagicLink is a single-use login token bound to a user.
type MagicLink struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_magic_links_user_id" json:"userId"`
	Token     string     `gorm:"uniqueIndex:idx_magic_links_token;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index:idx_magic_links_expires_at" json:"expiresAt"`
	Used      bool       `gorm:"not null;default:false" json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (MagicLink) TableName() string {
	return "magic_links"
}

func (m *MagicLink) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Redeemable reports whether the link can still be exchanged at the given time.
func (m *MagicLink) Redeemable(now time.Time) bool {
	return !m.Used && now.Before(m.ExpiresAt)
}

func (m *MagicLink) Clone() *MagicLink {
	if m == nil {
		return nil
	}
	c := *m
	if m.UsedAt != nil {
		t := *m.UsedAt
		c.UsedAt = &t
	}
	return &c
}
