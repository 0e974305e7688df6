package handler

import (
	"Inkwell/internal/api/dto"
	"Inkwell/internal/pkg/consts"
	"Inkwell/internal/pkg/response"
	"Inkwell/internal/service"
	"context"

	"github.com/gin-gonic/gin"
)

type InteractionHandler struct {
	interactionSvc service.InteractionService
}

func NewInteractionHandler(interactionSvc service.InteractionService) *InteractionHandler {
	return &InteractionHandler{
		interactionSvc: interactionSvc,
	}
}

// Like 点赞/取消点赞
func (s *InteractionHandler) Like(c *gin.Context) {
	s.toggle(c, s.interactionSvc.RecordLike, s.interactionSvc.RemoveLike)
}

// Dislike 点踩/取消点踩
func (s *InteractionHandler) Dislike(c *gin.Context) {
	s.toggle(c, s.interactionSvc.RecordDislike, s.interactionSvc.RemoveDislike)
}

type actionFunc func(ctx context.Context, itemID, userID uint64, anonToken string) (*dto.ActionResult, error)

func (s *InteractionHandler) toggle(c *gin.Context, do, undo actionFunc) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	var req dto.ActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)

	fn := do
	if req.Action == consts.ActionUndo {
		fn = undo
	}
	res, err := fn(c.Request.Context(), itemID, userID, anonToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Rate 评分，重复评分视为修改
func (s *InteractionHandler) Rate(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	var req dto.RatingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)

	res, err := s.interactionSvc.RecordRating(c.Request.Context(), itemID, req.Rating, userID, anonToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Unrate 撤销评分
func (s *InteractionHandler) Unrate(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)

	res, err := s.interactionSvc.RemoveRating(c.Request.Context(), itemID, userID, anonToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// View 上报浏览
func (s *InteractionHandler) View(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, _ := actorOf(c)

	res, err := s.interactionSvc.RecordView(c.Request.Context(), itemID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Read 标记已读/取消已读
func (s *InteractionHandler) Read(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	var req dto.ActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, _ := actorOf(c)

	var (
		res *dto.ActionResult
		err error
	)
	if req.Action == consts.ActionDo {
		res, err = s.interactionSvc.RecordRead(c.Request.Context(), itemID, userID)
	} else {
		res, err = s.interactionSvc.RemoveRead(c.Request.Context(), itemID, userID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
