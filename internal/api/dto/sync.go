package dto

import "Inkwell/internal/model"

// SyncReq 登录时上报的离线快照
type SyncReq struct {
	AnonToken string                       `json:"anon_token" binding:"max=128"`
	Entries   map[string]*model.LocalEntry `json:"entries"`
}

// SyncResp 合并后的快照
type SyncResp struct {
	Entries map[string]*model.LocalEntry `json:"entries"`
}
