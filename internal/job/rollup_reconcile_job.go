package job

import (
	"Inkwell/internal/pkg/consts"
	"Inkwell/internal/pkg/logger"
	"Inkwell/internal/pkg/redis"
	"Inkwell/internal/pkg/util"
	"Inkwell/internal/service"
	"context"
	log "log/slog"

	"github.com/google/uuid"
)

// RollupReconcileJob 从明细重算被写过的条目的累计值，修复写明细成功而计数失败留下的偏差
type RollupReconcileJob struct {
	reconcileSvc service.ReconcileService
}

func NewRollupReconcileJob(reconcileSvc service.ReconcileService) *RollupReconcileJob {
	return &RollupReconcileJob{reconcileSvc: reconcileSvc}
}

func (s *RollupReconcileJob) Run() {
	traceID := "job-rollup-" + uuid.NewString()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID)
	s.RunOnce(ctx)
}

// RunOnce 先把脏集合改名再处理，处理期间的新写入进入新的集合
func (s *RollupReconcileJob) RunOnce(ctx context.Context) {
	processingKey := consts.ItemRollupDirtyKey + ":processing"
	exists, err := redis.Exists(ctx, processingKey)
	if err != nil {
		log.ErrorContext(ctx, "check rollup processing set error", "err", err)
		return
	}
	// 上一轮未处理完的集合优先
	if !exists {
		if err = redis.Rename(ctx, consts.ItemRollupDirtyKey, processingKey); err != nil {
			return
		}
	}

	members, err := redis.GetSet(ctx, processingKey)
	if err != nil {
		log.ErrorContext(ctx, "get rollup dirty set error", "err", err)
		return
	}
	itemIDs, err := util.StrSliceToUInt64Slice(members)
	if err != nil {
		log.ErrorContext(ctx, "convert rollup dirty set error", "err", err)
		return
	}

	failed := 0
	for _, id := range itemIDs {
		if err = s.reconcileSvc.ReconcileItem(ctx, id); err != nil {
			failed++
			log.ErrorContext(ctx, "reconcile item rollup error", "item_id", id, "err", err)
		}
	}

	if err = redis.DeleteKey(ctx, processingKey); err != nil {
		log.ErrorContext(ctx, "delete rollup processing set error", "err", err)
	}

	log.InfoContext(ctx, "reconcile item rollups finished",
		"item_count", len(itemIDs),
		"failed", failed)
}
