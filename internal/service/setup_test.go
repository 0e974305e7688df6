package service

import (
	"Inkwell/internal/api/config"
	"Inkwell/internal/api/dto"
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/redis"
	"Inkwell/internal/pkg/security"
	"Inkwell/internal/repository"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	storyA    uint64 = 1
	chapterA1 uint64 = 11
	chapterA2 uint64 = 12
	draftA3   uint64 = 13
	storyB    uint64 = 2
	authorID  uint64 = 500
	coAuthor  uint64 = 501
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*dto.FollowEvent
}

func (s *recordingSink) PublishFollow(_ context.Context, event *dto.FollowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type testEnv struct {
	db              *gorm.DB
	mr              *miniredis.Miniredis
	clock           *fakeClock
	sink            *recordingSink
	resolver        *security.ActorResolver
	interactionRepo repository.InteractionRepo
	rollupRepo      repository.RollupRepo
	itemRepo        repository.ItemRepo
	stats           StatsService
	interactions    InteractionService
	follows         FollowService
	sync            SyncService
}

func allFeatures() config.FeatureConfig {
	return config.FeatureConfig{Ratings: true, Dislikes: true, Views: true, Anonymous: true}
}

func newTestEnv(t *testing.T, features config.FeatureConfig) *testEnv {
	t.Helper()
	return newTestEnvOn(t, openTestDB(t, ":memory:", 1), features)
}

// newConcurrentTestEnv 使用 WAL 模式的临时库文件，允许多个连接并发写
func newConcurrentTestEnv(t *testing.T, features config.FeatureConfig, conns int) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "inkwell.db") + "?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
	return newTestEnvOn(t, openTestDB(t, dsn, conns), features)
}

func openTestDB(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestEnvOn(t *testing.T, db *gorm.DB, features config.FeatureConfig) *testEnv {
	t.Helper()
	require.NoError(t, db.AutoMigrate(&model.Item{}, &model.ItemCoAuthor{}, &model.Interaction{}, &model.ItemRollup{}))

	items := []*model.Item{
		{ID: storyA, Type: model.ItemTypeStory, AuthorID: authorID, Status: model.ItemStatusPublished},
		{ID: chapterA1, Type: model.ItemTypeChapter, ParentID: storyA, AuthorID: authorID, Status: model.ItemStatusPublished},
		{ID: chapterA2, Type: model.ItemTypeChapter, ParentID: storyA, AuthorID: authorID, Status: model.ItemStatusPublished},
		{ID: draftA3, Type: model.ItemTypeChapter, ParentID: storyA, AuthorID: authorID, Status: model.ItemStatusDraft},
		{ID: storyB, Type: model.ItemTypeStory, AuthorID: authorID + 1, Status: model.ItemStatusPublished},
	}
	require.NoError(t, db.Create(&items).Error)
	require.NoError(t, db.Create(&model.ItemCoAuthor{ItemID: chapterA1, UserID: coAuthor}).Error)

	mr := miniredis.RunT(t)
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redis.Rdb.Close() })

	env := &testEnv{
		db:              db,
		mr:              mr,
		clock:           &fakeClock{t: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)},
		sink:            &recordingSink{},
		resolver:        security.NewActorResolver("test-secret"),
		interactionRepo: repository.NewInteractionRepo(db),
		rollupRepo:      repository.NewRollupRepo(db),
		itemRepo:        repository.NewItemRepo(db),
	}
	env.stats = NewStatsService(env.rollupRepo, env.interactionRepo, env.resolver, time.Minute, true, env.clock.Now)
	env.interactions = NewInteractionService(env.interactionRepo, env.rollupRepo, env.itemRepo, env.resolver, env.stats, features, env.clock.Now)
	env.follows = NewFollowService(env.interactionRepo, env.rollupRepo, env.itemRepo, env.resolver, env.stats, env.sink, features, env.clock.Now)
	env.sync = NewSyncService(env.interactions, env.follows, env.interactionRepo, env.itemRepo, env.resolver)
	return env
}

func (e *testEnv) rollup(t *testing.T, itemID uint64) *model.ItemRollup {
	t.Helper()
	row, err := e.rollupRepo.Get(context.Background(), itemID)
	require.NoError(t, err)
	if row == nil {
		return &model.ItemRollup{ItemID: itemID}
	}
	return row
}

func (e *testEnv) countRows(t *testing.T, actorKey string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Interaction{}).Where("actor_key = ?", actorKey).Count(&n).Error)
	return n
}
