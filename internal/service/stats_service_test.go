package service

import (
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/consts"
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetItemStats_CacheAside(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()

	stats, err := env.stats.GetItemStats(ctx, storyB)
	require.NoError(t, err)
	assert.Zero(t, stats.Likes)
	assert.True(t, env.mr.Exists(consts.ItemStatsKey+strconv.FormatUint(storyB, 10)))

	// 绕过服务直接写库，缓存未失效前读到旧值
	require.NoError(t, env.db.Create(&model.ItemRollup{ItemID: storyB, ItemType: model.ItemTypeStory, LikesTotal: 5}).Error)
	stats, err = env.stats.GetItemStats(ctx, storyB)
	require.NoError(t, err)
	assert.Zero(t, stats.Likes)

	env.stats.Invalidate(ctx, storyB)
	stats, err = env.stats.GetItemStats(ctx, storyB)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Likes)

	_, err = env.stats.GetItemStats(ctx, 0)
	assert.ErrorIs(t, err, ErrParamInvalid)
}

func TestBatchGetStats(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()

	_, err := env.interactions.RecordLike(ctx, storyA, 1, "")
	require.NoError(t, err)
	_, err = env.interactions.RecordView(ctx, storyB, 1)
	require.NoError(t, err)

	res, err := env.stats.BatchGetStats(ctx, []uint64{storyA, storyB, 404, storyA, 0})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, int64(1), res[storyA].Likes)
	assert.Equal(t, int64(1), res[storyB].Views)
	assert.Zero(t, res[404].Views)

	// 第二次全部命中缓存
	res, err = env.stats.BatchGetStats(ctx, []uint64{storyA, 404})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res[storyA].Likes)
}

func TestRankings(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.interactions.RecordView(ctx, storyB, 0)
		require.NoError(t, err)
	}
	_, err := env.interactions.RecordView(ctx, chapterA1, 0)
	require.NoError(t, err)
	_, err = env.interactions.RecordRating(ctx, storyA, 4, 1, "")
	require.NoError(t, err)
	_, err = env.interactions.RecordRating(ctx, storyB, 3, 1, "")
	require.NoError(t, err)

	viewed, err := env.stats.MostViewed(ctx, "week", 10, "story")
	require.NoError(t, err)
	require.Len(t, viewed, 2)
	assert.Equal(t, storyB, viewed[0].ItemID)
	assert.Equal(t, 3.0, viewed[0].Score)

	trending, err := env.stats.Trending(ctx, "total", 10, "")
	require.NoError(t, err)
	require.Len(t, trending, 3)
	assert.Equal(t, storyB, trending[0].ItemID)

	rated, err := env.stats.TopRated(ctx, "month", 10, "story", 1)
	require.NoError(t, err)
	require.Len(t, rated, 2)
	assert.Equal(t, storyA, rated[0].ItemID)
	assert.Equal(t, 4.0, rated[0].Score)

	_, err = env.stats.TopRated(ctx, "year", 10, "", 1)
	assert.ErrorIs(t, err, ErrParamInvalid)
	_, err = env.stats.MostViewed(ctx, "week", 10, "poem")
	assert.ErrorIs(t, err, ErrParamInvalid)
}

func TestGetActorState(t *testing.T) {
	env := newTestEnv(t, allFeatures())
	ctx := context.Background()

	state, err := env.stats.GetActorState(ctx, chapterA1, 0, "")
	require.NoError(t, err)
	assert.False(t, state.Liked)

	_, err = env.interactions.RecordLike(ctx, chapterA1, 0, "tok")
	require.NoError(t, err)
	_, err = env.follows.ToggleFollow(ctx, chapterA1, 0, "tok")
	require.NoError(t, err)

	state, err = env.stats.GetActorState(ctx, chapterA1, 0, "tok")
	require.NoError(t, err)
	assert.True(t, state.Liked)
	assert.True(t, state.Followed)
	assert.False(t, state.Disliked)
	assert.Nil(t, state.UserRating)
}
