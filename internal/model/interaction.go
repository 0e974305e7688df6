package model

import (
	"time"
)

type InteractionType string

const (
	InteractionLike    InteractionType = "like"
	InteractionDislike InteractionType = "dislike"
	InteractionRating  InteractionType = "rating"
	InteractionView    InteractionType = "view"
	InteractionRead    InteractionType = "read"
	InteractionFollow  InteractionType = "follow"
)

// Interaction 行为明细，(actor_key, item_id, type) 唯一
type Interaction struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	ActorKey  string          `gorm:"type:varchar(80);not null;uniqueIndex:idx_actor_item_type,priority:1" json:"actor_key"`
	ItemID    uint64          `gorm:"not null;uniqueIndex:idx_actor_item_type,priority:2;index:idx_item_type,priority:1" json:"item_id"`
	Type      InteractionType `gorm:"type:varchar(16);not null;uniqueIndex:idx_actor_item_type,priority:3;index:idx_item_type,priority:2" json:"type"`
	Value     *float64        `gorm:"type:decimal(3,1)" json:"value,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Interaction) TableName() string {
	return "interactions"
}
