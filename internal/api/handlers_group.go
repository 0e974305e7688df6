package api

import "Inkwell/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	InteractionHandler *handler.InteractionHandler
	FollowHandler      *handler.FollowHandler
	StatsHandler       *handler.StatsHandler
	SyncHandler        *handler.SyncHandler
}
