package wire

import (
	"Inkwell/internal/api"
	"Inkwell/internal/api/config"
	"Inkwell/internal/api/handler"
	"Inkwell/internal/job"
	"Inkwell/internal/pkg/cron"
	"Inkwell/internal/pkg/kafka"
	"Inkwell/internal/pkg/security"
	"Inkwell/internal/repository"
	"Inkwell/internal/service"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router         *gin.Engine
	DB             *gorm.DB
	CronMgr        *cron.Manager
	FollowProducer *kafka.FollowProducer
}

func BuildApplication(db *gorm.DB, cfg *config.Config) (*ApplicationContainer, error) {
	security.SetJWTSecret(cfg.Security.JWTSecret)
	resolver := security.NewActorResolver(cfg.Security.AnonSecret)

	interactionRepo := repository.NewInteractionRepo(db)
	rollupRepo := repository.NewRollupRepo(db)
	itemRepo := repository.NewItemRepo(db)

	// 关注事件投递，未启用 Kafka 时丢弃
	var (
		sink     service.FollowEventSink = service.NoopFollowSink()
		producer *kafka.FollowProducer
	)
	if cfg.Kafka.Enabled {
		p, err := kafka.NewFollowProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		producer = p
		sink = p
		log.Info("Follow events will be published", "topic", cfg.Kafka.FollowTopic)
	}

	statsTTL := time.Duration(cfg.Cache.StatsTTLSeconds) * time.Second
	statsService := service.NewStatsService(rollupRepo, interactionRepo, resolver, statsTTL, cfg.Jobs.ReconcileEnabled, time.Now)
	interactionService := service.NewInteractionService(interactionRepo, rollupRepo, itemRepo, resolver, statsService, cfg.Features, time.Now)
	followService := service.NewFollowService(interactionRepo, rollupRepo, itemRepo, resolver, statsService, sink, cfg.Features, time.Now)
	syncService := service.NewSyncService(interactionService, followService, interactionRepo, itemRepo, resolver)
	reconcileService := service.NewReconcileService(interactionRepo, rollupRepo, itemRepo, statsService)

	handlers := &api.HandlersGroup{
		InteractionHandler: handler.NewInteractionHandler(interactionService),
		FollowHandler:      handler.NewFollowHandler(followService),
		StatsHandler:       handler.NewStatsHandler(statsService),
		SyncHandler:        handler.NewSyncHandler(syncService),
	}

	router := api.SetupRouter(handlers)

	reconcileJob := job.NewRollupReconcileJob(reconcileService)
	cronMgr := cron.NewCronManager(cfg.Jobs, reconcileJob)

	return &ApplicationContainer{
		Router:         router,
		DB:             db,
		CronMgr:        cronMgr,
		FollowProducer: producer,
	}, nil
}
