package model

// LocalEntry 客户端离线快照中的一项，键为 story_<id>_chapter_<id>
type LocalEntry struct {
	Like      bool     `json:"like"`
	Dislike   bool     `json:"dislike"`
	Read      bool     `json:"read"`
	View      bool     `json:"view"`
	Follow    bool     `json:"follow"`
	Rating    *float64 `json:"rating,omitempty"`
	Timestamp int64    `json:"timestamp" validate:"gte=0"` // 毫秒
}
