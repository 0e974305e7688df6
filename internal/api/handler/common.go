package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseID 解析路径中的正整数 ID
func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// actorOf 取出鉴权中间件注入的用户与匿名令牌
func actorOf(c *gin.Context) (uint64, string) {
	return c.GetUint64("user_id"), c.GetString("anon_token")
}
