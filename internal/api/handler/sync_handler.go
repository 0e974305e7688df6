package handler

import (
	"Inkwell/internal/api/dto"
	"Inkwell/internal/pkg/response"
	"Inkwell/internal/service"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	syncSvc service.SyncService
}

func NewSyncHandler(syncSvc service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncSvc: syncSvc,
	}
}

// Sync 登录后合并本地快照，body 未带匿名令牌时取请求头
func (s *SyncHandler) Sync(c *gin.Context) {
	var req dto.SyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, anonToken := actorOf(c)
	if req.AnonToken != "" {
		anonToken = req.AnonToken
	}

	merged, err := s.syncSvc.SyncOnLogin(c.Request.Context(), userID, req.Entries, anonToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, &dto.SyncResp{Entries: merged})
}

// MarkPending 客户端声明有待合并的离线数据
func (s *SyncHandler) MarkPending(c *gin.Context) {
	userID, _ := actorOf(c)
	if err := s.syncSvc.MarkPendingSync(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *SyncHandler) GetPending(c *gin.Context) {
	userID, _ := actorOf(c)
	pending, err := s.syncSvc.HasPendingSync(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"pending": pending})
}
