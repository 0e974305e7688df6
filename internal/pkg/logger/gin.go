package logger

import (
	"Inkwell/internal/api/config"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type accessRecord struct {
	Time        string `json:"time"`
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	TraceID     string `json:"trace_id"`
	UserID      uint64 `json:"user_id,omitempty"`
	LogToken    string `json:"log_token,omitempty"`
	TargetIndex string `json:"target_index,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Status      int    `json:"status"`
	Latency     string `json:"latency"`
}

func accessLine(p gin.LogFormatterParams) string {
	rec := accessRecord{
		Time:    p.TimeStamp.Format(time.RFC3339),
		Level:   "INFO",
		Msg:     "GIN_ACCESS",
		Method:  p.Method,
		Path:    p.Path,
		Status:  p.StatusCode,
		Latency: p.Latency.String(),
	}
	if p.Keys != nil {
		rec.TraceID, _ = p.Keys[TraceIDKey].(string)
		rec.UserID, _ = p.Keys[UserIDKey].(uint64)
	}
	if rec.TraceID == "" && p.Request != nil {
		rec.TraceID, _ = p.Request.Context().Value(TraceIDKey).(string)
	}
	if cfg := config.Cfg; cfg != nil {
		rec.LogToken = cfg.Logstash.Token
		rec.TargetIndex = cfg.Logstash.Index
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return string(b) + "\n"
}

// SetupGin 访问日志与 panic 恢复，恢复后仍按统一结构返回
func SetupGin(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		Formatter: accessLine,
	}))

	r.Use(gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered", "path", c.Request.URL.Path, "err", recovered)
		c.AbortWithStatusJSON(http.StatusOK, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "系统异常，请稍后重试",
			"data":    nil,
		})
	}))
}
