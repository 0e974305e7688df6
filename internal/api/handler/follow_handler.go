package handler

import (
	"Inkwell/internal/api/dto"
	"Inkwell/internal/pkg/response"
	"Inkwell/internal/service"

	"github.com/gin-gonic/gin"
)

type FollowHandler struct {
	followSvc service.FollowService
}

func NewFollowHandler(followSvc service.FollowService) *FollowHandler {
	return &FollowHandler{
		followSvc: followSvc,
	}
}

// Toggle 关注/取消关注，章节会代理到所属作品
func (s *FollowHandler) Toggle(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)

	res, err := s.followSvc.ToggleFollow(c.Request.Context(), postID, userID, anonToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Get 查询是否已关注
func (s *FollowHandler) Get(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)

	followed, err := s.followSvc.HasFollow(c.Request.Context(), postID, userID, anonToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, &dto.FollowResult{IsFollowed: followed})
}
