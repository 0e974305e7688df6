package service

import (
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rollupCounters(r *model.ItemRollup) [5]int64 {
	return [5]int64{r.LikesTotal, r.DislikesTotal, r.RatingCountTotal, r.FollowCount, r.ViewsTotal}
}

func TestSyncOnLogin_LocalOnlyApplied(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 7

	require.NoError(t, env.sync.MarkPendingSync(ctx, user))
	pending, err := env.sync.HasPendingSync(ctx, user)
	require.NoError(t, err)
	assert.True(t, pending)

	ts := env.clock.Now().Add(-time.Hour).UnixMilli()
	local := map[string]*model.LocalEntry{
		util.BuildSyncKey(storyA, chapterA1): {Like: true, Read: true, Rating: f(4), Timestamp: ts},
		util.BuildSyncKey(storyA, 0):         {Follow: true, Timestamp: ts},
		"garbage":                            {Like: true, Timestamp: ts},
	}

	merged, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)
	assert.Len(t, merged, 2)
	assert.NotContains(t, merged, "garbage")

	assert.Equal(t, int64(1), env.rollup(t, chapterA1).LikesTotal)
	assert.Equal(t, int64(1), env.rollup(t, chapterA1).RatingCountTotal)
	assert.Equal(t, int64(1), env.rollup(t, storyA).FollowCount)

	// 章节键隐含浏览明细，但不计数
	has, err := env.interactionRepo.Has(ctx, model.UserActor(user), chapterA1, model.InteractionView)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Zero(t, env.rollup(t, chapterA1).ViewsTotal)

	rows, err := env.interactionRepo.GetAllForActorItem(ctx, model.UserActor(user), chapterA1)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, ts, row.UpdatedAt.UnixMilli())
	}

	pending, err = env.sync.HasPendingSync(ctx, user)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestSyncOnLogin_ReplayIsIdempotent(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 7

	ts := env.clock.Now().UnixMilli()
	local := map[string]*model.LocalEntry{
		util.BuildSyncKey(storyA, chapterA1): {Like: true, Rating: f(3.5), Follow: true, Timestamp: ts},
		util.BuildSyncKey(storyB, 0):         {Dislike: true, Timestamp: ts},
	}

	first, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)
	before := map[uint64][5]int64{
		storyA:    rollupCounters(env.rollup(t, storyA)),
		chapterA1: rollupCounters(env.rollup(t, chapterA1)),
		storyB:    rollupCounters(env.rollup(t, storyB)),
	}

	second, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)
	for id, counters := range before {
		assert.Equal(t, counters, rollupCounters(env.rollup(t, id)), id)
	}
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, ts, second[util.BuildSyncKey(storyB, 0)].Timestamp)
}

func TestSyncOnLogin_TimestampResolution(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 9

	_, err := env.interactions.RecordLike(ctx, storyB, user, "")
	require.NoError(t, err)
	_, err = env.interactions.RecordLike(ctx, storyA, user, "")
	require.NoError(t, err)

	serverTS := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	require.NoError(t, env.interactionRepo.TouchItem(ctx, model.UserActor(user), storyB, serverTS))
	require.NoError(t, env.interactionRepo.TouchItem(ctx, model.UserActor(user), storyA, serverTS))

	local := map[string]*model.LocalEntry{
		// 本地更新：取消点赞生效
		util.BuildSyncKey(storyB, 0): {Like: false, Timestamp: serverTS.UnixMilli() + 1},
		// 时间相同：服务端胜出
		util.BuildSyncKey(storyA, 0): {Like: false, Timestamp: serverTS.UnixMilli()},
	}
	merged, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)

	assert.False(t, merged[util.BuildSyncKey(storyB, 0)].Like)
	assert.Zero(t, env.rollup(t, storyB).LikesTotal)

	assert.True(t, merged[util.BuildSyncKey(storyA, 0)].Like)
	assert.Equal(t, serverTS.UnixMilli(), merged[util.BuildSyncKey(storyA, 0)].Timestamp)
	assert.Equal(t, int64(1), env.rollup(t, storyA).LikesTotal)
}

func TestSyncOnLogin_ServerOnlyKept(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 3

	_, err := env.interactions.RecordRating(ctx, chapterA2, 5, user, "")
	require.NoError(t, err)

	merged, err := env.sync.SyncOnLogin(ctx, user, nil, "")
	require.NoError(t, err)
	entry := merged[util.BuildSyncKey(storyA, chapterA2)]
	require.NotNil(t, entry)
	require.NotNil(t, entry.Rating)
	assert.Equal(t, 5.0, *entry.Rating)
	assert.Positive(t, entry.Timestamp)
}

func TestSyncOnLogin_AnonymousReattribution(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 21
	const token = "device-token"

	_, err := env.interactions.RecordLike(ctx, chapterA1, 0, token)
	require.NoError(t, err)
	_, err = env.interactions.RecordRating(ctx, storyB, 4, 0, token)
	require.NoError(t, err)
	_, err = env.interactions.RecordLike(ctx, chapterA1, user, "")
	require.NoError(t, err)

	before := rollupCounters(env.rollup(t, chapterA1))
	require.Equal(t, int64(2), before[0])

	merged, err := env.sync.SyncOnLogin(ctx, user, nil, token)
	require.NoError(t, err)

	anon := env.resolver.Resolve(0, token)
	assert.Zero(t, env.countRows(t, anon.Key()))
	assert.Equal(t, int64(2), env.countRows(t, model.UserActor(user).Key()))
	assert.Equal(t, before, rollupCounters(env.rollup(t, chapterA1)))

	require.Contains(t, merged, util.BuildSyncKey(storyB, 0))
	assert.Equal(t, 4.0, *merged[util.BuildSyncKey(storyB, 0)].Rating)
	assert.True(t, merged[util.BuildSyncKey(storyA, chapterA1)].Like)
}

func TestSyncOnLogin_RequiresUser(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	_, err := env.sync.SyncOnLogin(context.Background(), 0, nil, "tok")
	assert.ErrorIs(t, err, ErrActorUnresolved)
}

func TestSyncOnLogin_SkipsMalformedEntry(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()

	local := map[string]*model.LocalEntry{
		util.BuildSyncKey(storyB, 0): {Like: true, Timestamp: -5},
	}
	merged, err := env.sync.SyncOnLogin(ctx, 9, local, "")
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.Zero(t, env.countRows(t, model.UserActor(9).Key()))
}

func TestSyncOnLogin_KeyResolvedToRealParent(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 9

	_, err := env.interactions.RecordRating(ctx, chapterA1, 5, user, "")
	require.NoError(t, err)
	serverTS := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	require.NoError(t, env.interactionRepo.TouchItem(ctx, model.UserActor(user), chapterA1, serverTS))

	local := map[string]*model.LocalEntry{
		// 故事编号写错且比服务端旧，不能覆盖
		util.BuildSyncKey(storyB, chapterA1): {Rating: f(1), Timestamp: serverTS.Add(-time.Hour).UnixMilli()},
		// 故事编号写错但比服务端新，按真实归属生效
		util.BuildSyncKey(storyB, chapterA2): {Like: true, Timestamp: serverTS.UnixMilli()},
	}
	merged, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)

	row, err := env.interactionRepo.Get(ctx, model.UserActor(user), chapterA1, model.InteractionRating)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 5.0, *row.Value)
	assert.Equal(t, serverTS.UnixMilli(), row.UpdatedAt.UnixMilli())
	assert.Equal(t, 5.0, env.rollup(t, chapterA1).RatingSumTotal)

	assert.Len(t, merged, 2)
	assert.NotContains(t, merged, util.BuildSyncKey(storyB, chapterA1))
	assert.NotContains(t, merged, util.BuildSyncKey(storyB, chapterA2))
	require.Contains(t, merged, util.BuildSyncKey(storyA, chapterA1))
	assert.Equal(t, 5.0, *merged[util.BuildSyncKey(storyA, chapterA1)].Rating)
	require.Contains(t, merged, util.BuildSyncKey(storyA, chapterA2))
	assert.True(t, merged[util.BuildSyncKey(storyA, chapterA2)].Like)
	assert.Equal(t, int64(1), env.rollup(t, chapterA2).LikesTotal)
}

func TestSyncOnLogin_ChapterUnderStoryKey(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 9

	ts := env.clock.Now().UnixMilli()
	local := map[string]*model.LocalEntry{
		util.BuildSyncKey(chapterA1, 0):      {Like: true, Timestamp: ts - 1},
		util.BuildSyncKey(storyA, chapterA1): {Like: true, Read: true, Timestamp: ts},
	}
	merged, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)

	assert.Len(t, merged, 1)
	entry := merged[util.BuildSyncKey(storyA, chapterA1)]
	require.NotNil(t, entry)
	assert.True(t, entry.Read)
	assert.Equal(t, int64(1), env.rollup(t, chapterA1).LikesTotal)
}

func TestSyncOnLogin_SkipsUnavailableItems(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()
	const user uint64 = 9

	ts := env.clock.Now().UnixMilli()
	local := map[string]*model.LocalEntry{
		util.BuildSyncKey(storyA, draftA3): {Like: true, Timestamp: ts},
		util.BuildSyncKey(storyA, 999999):  {Like: true, Timestamp: ts},
	}
	merged, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.Zero(t, env.countRows(t, model.UserActor(user).Key()))
}

func TestSyncOnLogin_RejectedStepReturnsStoredState(t *testing.T) {
	features := allFeatures()
	features.Ratings = false
	env := newTestEnv(t, features)
	ctx := context.Background()
	const user uint64 = 9

	ts := env.clock.Now().UnixMilli()
	local := map[string]*model.LocalEntry{
		util.BuildSyncKey(storyB, 0):         {Rating: f(4), Timestamp: ts},
		util.BuildSyncKey(storyA, chapterA1): {Like: true, Rating: f(4), Timestamp: ts},
		util.BuildSyncKey(storyA, chapterA2): {Like: true, Timestamp: ts},
	}
	merged, err := env.sync.SyncOnLogin(ctx, user, local, "")
	require.NoError(t, err)

	assert.Len(t, merged, 2)
	assert.NotContains(t, merged, util.BuildSyncKey(storyB, 0))

	partial := merged[util.BuildSyncKey(storyA, chapterA1)]
	require.NotNil(t, partial)
	assert.True(t, partial.Like)
	assert.True(t, partial.View)
	assert.Nil(t, partial.Rating)
	assert.Equal(t, ts, partial.Timestamp)

	assert.Same(t, local[util.BuildSyncKey(storyA, chapterA2)], merged[util.BuildSyncKey(storyA, chapterA2)])
}
