package model

type ItemCoAuthor struct {
	ItemID uint64 `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	UserID uint64 `gorm:"primaryKey;autoIncrement:false;index:idx_user_id" json:"user_id"`
}

func (ItemCoAuthor) TableName() string {
	return "item_co_authors"
}
