package handler

import (
	"Inkwell/internal/api/dto"
	"Inkwell/internal/model"
	"Inkwell/internal/pkg/response"
	"Inkwell/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// withActor 模拟鉴权中间件注入的身份
func withActor(userID uint64, anonToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("anon_token", anonToken)
		c.Next()
	}
}

func serve(t *testing.T, r *gin.Engine, method, path, body string) envelope {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type call struct {
	name      string
	itemID    uint64
	userID    uint64
	anonToken string
	rating    float64
}

type fakeInteractionService struct {
	service.InteractionService
	calls []call
	err   error
}

func (f *fakeInteractionService) record(name string, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	f.calls = append(f.calls, call{name: name, itemID: itemID, userID: userID, anonToken: anonToken})
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ActionResult{Changed: true, Stats: &dto.ItemStats{ItemID: itemID, Likes: 1}}, nil
}

func (f *fakeInteractionService) RecordLike(_ context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	return f.record("like", itemID, userID, anonToken)
}

func (f *fakeInteractionService) RemoveLike(_ context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	return f.record("unlike", itemID, userID, anonToken)
}

func (f *fakeInteractionService) RecordDislike(_ context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error) {
	return f.record("dislike", itemID, userID, anonToken)
}

func (f *fakeInteractionService) RecordRating(_ context.Context, itemID uint64, rating float64, userID uint64, anonToken string) (*dto.ActionResult, error) {
	f.calls = append(f.calls, call{name: "rate", itemID: itemID, userID: userID, anonToken: anonToken, rating: rating})
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ActionResult{Changed: true}, nil
}

func (f *fakeInteractionService) RecordView(_ context.Context, itemID, viewerID uint64) (*dto.ViewResult, error) {
	f.calls = append(f.calls, call{name: "view", itemID: itemID, userID: viewerID})
	return &dto.ViewResult{Skipped: viewerID == 500, Stats: &dto.ItemStats{ItemID: itemID}}, nil
}

func (f *fakeInteractionService) RemoveRead(_ context.Context, itemID, userID uint64) (*dto.ActionResult, error) {
	return f.record("unread", itemID, userID, "")
}

func newInteractionRouter(f *fakeInteractionService, userID uint64, anonToken string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewInteractionHandler(f)
	r := gin.New()
	r.Use(withActor(userID, anonToken))
	r.POST("/likes/:item_id", h.Like)
	r.POST("/dislikes/:item_id", h.Dislike)
	r.POST("/ratings/:item_id", h.Rate)
	r.POST("/views/:item_id", h.View)
	r.POST("/reads/:item_id", h.Read)
	return r
}

func TestInteractionHandlerLikeDispatch(t *testing.T) {
	f := &fakeInteractionService{}
	r := newInteractionRouter(f, 0, "device-1")

	env := serve(t, r, http.MethodPost, "/likes/11", `{"action":1}`)
	assert.Equal(t, response.Ok, env.Code)
	var res dto.ActionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Changed)

	serve(t, r, http.MethodPost, "/likes/11", `{"action":2}`)
	serve(t, r, http.MethodPost, "/dislikes/11", `{"action":1}`)

	require.Len(t, f.calls, 3)
	assert.Equal(t, []string{"like", "unlike", "dislike"}, []string{f.calls[0].name, f.calls[1].name, f.calls[2].name})
	assert.Equal(t, "device-1", f.calls[0].anonToken)
	assert.Equal(t, uint64(11), f.calls[0].itemID)
}

func TestInteractionHandlerRejectsBadInput(t *testing.T) {
	f := &fakeInteractionService{}
	r := newInteractionRouter(f, 1, "")

	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodPost, "/likes/abc", `{"action":1}`).Code)
	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodPost, "/likes/0", `{"action":1}`).Code)
	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodPost, "/likes/11", `{"action":3}`).Code)
	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodPost, "/ratings/11", `{}`).Code)
	assert.Empty(t, f.calls)
}

func TestInteractionHandlerMapsServiceErrors(t *testing.T) {
	f := &fakeInteractionService{err: service.ErrInvalidItem}
	r := newInteractionRouter(f, 1, "")

	env := serve(t, r, http.MethodPost, "/ratings/11", `{"rating":4.5}`)
	assert.Equal(t, response.BadRequest, env.Code)
	assert.Equal(t, service.ErrInvalidItem.Error(), env.Message)
	require.Len(t, f.calls, 1)
	assert.Equal(t, 4.5, f.calls[0].rating)
}

func TestInteractionHandlerViewAndRead(t *testing.T) {
	f := &fakeInteractionService{}
	r := newInteractionRouter(f, 500, "")

	env := serve(t, r, http.MethodPost, "/views/11", "")
	assert.Equal(t, response.Ok, env.Code)
	var view dto.ViewResult
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Skipped)

	serve(t, r, http.MethodPost, "/reads/11", `{"action":2}`)
	require.Len(t, f.calls, 2)
	assert.Equal(t, "unread", f.calls[1].name)
	assert.Equal(t, uint64(500), f.calls[1].userID)
}

type fakeFollowService struct {
	service.FollowService
	followed bool
}

func (f *fakeFollowService) ToggleFollow(_ context.Context, postID, userID uint64, anonToken string) (*dto.FollowResult, error) {
	if userID == 0 && anonToken == "" {
		return nil, service.ErrActorUnresolved
	}
	f.followed = !f.followed
	return &dto.FollowResult{Changed: true, IsFollowed: f.followed}, nil
}

func (f *fakeFollowService) HasFollow(context.Context, uint64, uint64, string) (bool, error) {
	return f.followed, nil
}

func TestFollowHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := &fakeFollowService{}
	h := NewFollowHandler(f)

	r := gin.New()
	r.Use(withActor(9, ""))
	r.POST("/follows/:post_id/toggle", h.Toggle)
	r.GET("/follows/:post_id", h.Get)

	env := serve(t, r, http.MethodPost, "/follows/1/toggle", "")
	assert.Equal(t, response.Ok, env.Code)

	env = serve(t, r, http.MethodGet, "/follows/1", "")
	var res dto.FollowResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.IsFollowed)

	anon := gin.New()
	anon.Use(withActor(0, ""))
	anon.POST("/follows/:post_id/toggle", h.Toggle)
	assert.Equal(t, response.BadRequest, serve(t, anon, http.MethodPost, "/follows/1/toggle", "").Code)
}

type fakeStatsService struct {
	service.StatsService
	lastRank string
	lastReq  dto.RankReq
}

func (f *fakeStatsService) GetItemStats(_ context.Context, itemID uint64) (*dto.ItemStats, error) {
	return &dto.ItemStats{ItemID: itemID, Views: 3, Likes: 2}, nil
}

func (f *fakeStatsService) BatchGetStats(_ context.Context, itemIDs []uint64) (map[uint64]*dto.ItemStats, error) {
	res := make(map[uint64]*dto.ItemStats, len(itemIDs))
	for _, id := range itemIDs {
		res[id] = &dto.ItemStats{ItemID: id}
	}
	return res, nil
}

func (f *fakeStatsService) GetActorState(_ context.Context, _, userID uint64, _ string) (*dto.ActorState, error) {
	return &dto.ActorState{Liked: userID > 0}, nil
}

func (f *fakeStatsService) TopRated(_ context.Context, window string, limit int, itemType string, minVotes int64) ([]*dto.RankItemDTO, error) {
	f.lastRank = "top-rated"
	f.lastReq = dto.RankReq{Window: window, Limit: limit, Type: itemType, MinVotes: minVotes}
	return []*dto.RankItemDTO{{ItemID: 1, ItemType: "story", Score: 4.5}}, nil
}

func (f *fakeStatsService) Trending(_ context.Context, window string, limit int, itemType string) ([]*dto.RankItemDTO, error) {
	f.lastRank = "trending"
	f.lastReq = dto.RankReq{Window: window, Limit: limit, Type: itemType}
	return nil, nil
}

func newStatsRouter(f *fakeStatsService, userID uint64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStatsHandler(f)
	r := gin.New()
	r.Use(withActor(userID, ""))
	r.GET("/stats/:item_id", h.GetStats)
	r.POST("/stats/batch", h.BatchStats)
	r.GET("/state/:item_id", h.GetState)
	r.GET("/rankings/top-rated", h.TopRated)
	r.GET("/rankings/trending", h.Trending)
	return r
}

func TestStatsHandlerState(t *testing.T) {
	r := newStatsRouter(&fakeStatsService{}, 3)

	env := serve(t, r, http.MethodGet, "/state/11", "")
	assert.Equal(t, response.Ok, env.Code)
	var state dto.ItemStateDTO
	require.NoError(t, json.Unmarshal(env.Data, &state))
	require.NotNil(t, state.Stats)
	require.NotNil(t, state.State)
	assert.Equal(t, int64(3), state.Stats.Views)
	assert.True(t, state.State.Liked)
}

func TestStatsHandlerBatch(t *testing.T) {
	r := newStatsRouter(&fakeStatsService{}, 0)

	env := serve(t, r, http.MethodPost, "/stats/batch", `{"item_ids":[1,2]}`)
	assert.Equal(t, response.Ok, env.Code)
	var res map[string]*dto.ItemStats
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res, 2)

	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodPost, "/stats/batch", `{"item_ids":[]}`).Code)
}

func TestStatsHandlerRankings(t *testing.T) {
	f := &fakeStatsService{}
	r := newStatsRouter(f, 0)

	env := serve(t, r, http.MethodGet, "/rankings/top-rated?window=week&limit=5&type=story&min_votes=3", "")
	assert.Equal(t, response.Ok, env.Code)
	assert.Equal(t, "top-rated", f.lastRank)
	assert.Equal(t, dto.RankReq{Window: "week", Limit: 5, Type: "story", MinVotes: 3}, f.lastReq)

	serve(t, r, http.MethodGet, "/rankings/trending", "")
	assert.Equal(t, "trending", f.lastRank)
	assert.Equal(t, dto.RankReq{}, f.lastReq)

	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodGet, "/rankings/trending?window=year", "").Code)
	assert.Equal(t, response.BadRequest, serve(t, r, http.MethodGet, "/rankings/trending?limit=1000", "").Code)
}

type fakeSyncService struct {
	service.SyncService
	anonToken string
	pending   bool
}

func (f *fakeSyncService) SyncOnLogin(_ context.Context, userID uint64, local map[string]*model.LocalEntry, anonToken string) (map[string]*model.LocalEntry, error) {
	if userID == 0 {
		return nil, service.ErrActorUnresolved
	}
	f.anonToken = anonToken
	f.pending = false
	return local, nil
}

func (f *fakeSyncService) MarkPendingSync(context.Context, uint64) error {
	f.pending = true
	return nil
}

func (f *fakeSyncService) HasPendingSync(context.Context, uint64) (bool, error) {
	return f.pending, nil
}

func TestSyncHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := &fakeSyncService{}
	h := NewSyncHandler(f)

	r := gin.New()
	r.Use(withActor(8, "header-token"))
	r.POST("/sync", h.Sync)
	r.POST("/sync/pending", h.MarkPending)
	r.GET("/sync/pending", h.GetPending)

	serve(t, r, http.MethodPost, "/sync/pending", "")
	env := serve(t, r, http.MethodGet, "/sync/pending", "")
	assert.JSONEq(t, `{"pending":true}`, string(env.Data))

	env = serve(t, r, http.MethodPost, "/sync", `{"entries":{"story_1_chapter_11":{"like":true,"timestamp":10}}}`)
	assert.Equal(t, response.Ok, env.Code)
	assert.Equal(t, "header-token", f.anonToken)
	var res dto.SyncResp
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Contains(t, res.Entries, "story_1_chapter_11")
	assert.True(t, res.Entries["story_1_chapter_11"].Like)

	serve(t, r, http.MethodPost, "/sync", `{"anon_token":"body-token","entries":{}}`)
	assert.Equal(t, "body-token", f.anonToken)
	assert.False(t, f.pending)
}
