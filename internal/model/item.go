package model

import (
	"time"
)

type ItemType string

const (
	ItemTypeStory   ItemType = "story"
	ItemTypeChapter ItemType = "chapter"
)

const (
	ItemStatusDraft     int8 = 0
	ItemStatusPublished int8 = 1
	ItemStatusHidden    int8 = 2
)

// Item 内容条目（作品或章节），章节的 ParentID 指向所属作品
type Item struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Type      ItemType  `gorm:"type:varchar(16);not null" json:"type"`
	ParentID  uint64    `gorm:"not null;default:0;index:idx_parent_id" json:"parent_id"`
	AuthorID  uint64    `gorm:"not null;index:idx_author_id" json:"author_id"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	Status    int8      `gorm:"not null;default:0" json:"status"` // 0:草稿, 1:已发布, 2:隐藏
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联关系
	CoAuthors []ItemCoAuthor `gorm:"foreignKey:ItemID;references:ID"`
}

func (Item) TableName() string {
	return "items"
}

// StoryID 返回条目所属作品
func (i *Item) StoryID() uint64 {
	if i.Type == ItemTypeChapter && i.ParentID > 0 {
		return i.ParentID
	}
	return i.ID
}

// IsAuthoredBy 作者或合著者
func (i *Item) IsAuthoredBy(userID uint64) bool {
	if userID == 0 {
		return false
	}
	if i.AuthorID == userID {
		return true
	}
	for _, c := range i.CoAuthors {
		if c.UserID == userID {
			return true
		}
	}
	return false
}
