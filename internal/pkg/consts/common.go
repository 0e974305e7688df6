package consts

const (
	// AnonTokenHeader 匿名客户端令牌请求头
	AnonTokenHeader = "X-Anon-Token"
)

const (
	DefaultStatsTTLSeconds = 300
	DefaultRankLimit       = 20
	MaxRankLimit           = 100
	MaxBatchStatsSize      = 200
	SyncPendingTTLHours    = 24 * 7
)

const (
	ActionDo   = 1
	ActionUndo = 2
)
