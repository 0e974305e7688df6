package handler

import (
	"Inkwell/internal/api/dto"
	"Inkwell/internal/pkg/response"
	"Inkwell/internal/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type StatsHandler struct {
	statsSvc service.StatsService
}

func NewStatsHandler(statsSvc service.StatsService) *StatsHandler {
	return &StatsHandler{
		statsSvc: statsSvc,
	}
}

// GetStats 单条目计数
func (s *StatsHandler) GetStats(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	stats, err := s.statsSvc.GetItemStats(c.Request.Context(), itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// BatchStats 批量计数，列表页使用
func (s *StatsHandler) BatchStats(c *gin.Context) {
	var req dto.BatchStatsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	stats, err := s.statsSvc.BatchGetStats(c.Request.Context(), req.ItemIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GetStoryStats 作品计数，含关注数
func (s *StatsHandler) GetStoryStats(c *gin.Context) {
	storyID, ok := parseID(c, "story_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	stats, err := s.statsSvc.GetStoryStats(c.Request.Context(), storyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GetState 详情页的计数与当前操作者状态
func (s *StatsHandler) GetState(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)

	state := &dto.ItemStateDTO{}
	g, gCtx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		state.Stats, err = s.statsSvc.GetItemStats(gCtx, itemID)
		return err
	})
	g.Go(func() error {
		var err error
		state.State, err = s.statsSvc.GetActorState(gCtx, itemID, userID, anonToken)
		return err
	})
	if err := g.Wait(); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

func (s *StatsHandler) TopRated(c *gin.Context) {
	var req dto.RankReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	res, err := s.statsSvc.TopRated(c.Request.Context(), req.Window, req.Limit, req.Type, req.MinVotes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *StatsHandler) MostViewed(c *gin.Context) {
	var req dto.RankReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	res, err := s.statsSvc.MostViewed(c.Request.Context(), req.Window, req.Limit, req.Type)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *StatsHandler) Trending(c *gin.Context) {
	var req dto.RankReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	res, err := s.statsSvc.Trending(c.Request.Context(), req.Window, req.Limit, req.Type)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
