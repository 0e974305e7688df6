package dto

// FollowResult 关注切换结果
type FollowResult struct {
	Changed    bool `json:"changed"`
	IsFollowed bool `json:"is_followed"`
}

// FollowEvent 关注变更事件，投递到消息队列
type FollowEvent struct {
	ItemID    uint64 `json:"item_id"`
	StoryID   uint64 `json:"story_id"`
	ActorKey  string `json:"actor_key"`
	UserID    uint64 `json:"user_id,omitempty"`
	Followed  bool   `json:"followed"`
	Timestamp int64  `json:"timestamp"`
}
