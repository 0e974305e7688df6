package dto

// ActionReq 点赞/点踩通用请求
type ActionReq struct {
	Action int `json:"action" binding:"required,oneof=1 2"` // 1:执行, 2:取消
}

// RatingReq 评分请求，服务端按 0.5 取整
type RatingReq struct {
	Rating float64 `json:"rating" binding:"required"`
}

// ActionResult 写操作结果，Changed 为 false 表示重复操作未产生变化
type ActionResult struct {
	Changed bool       `json:"changed"`
	Stats   *ItemStats `json:"stats"`
}

// ViewResult 浏览上报结果
type ViewResult struct {
	Skipped bool       `json:"skipped"`
	Stats   *ItemStats `json:"stats"`
}

// ActorState 当前操作者在条目上的状态
type ActorState struct {
	Liked      bool     `json:"liked"`
	Disliked   bool     `json:"disliked"`
	Read       bool     `json:"read"`
	Followed   bool     `json:"followed"`
	UserRating *float64 `json:"user_rating"`
}

// ItemStateDTO 计数与操作者状态
type ItemStateDTO struct {
	Stats *ItemStats  `json:"stats"`
	State *ActorState `json:"state"`
}
