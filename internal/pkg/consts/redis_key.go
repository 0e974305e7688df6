package consts

const (
	ItemStatsKey       = "item:stats:"
	ItemRollupDirtyKey = "item:rollup:dirty"
	SyncPendingKey     = "sync:pending:"
)
