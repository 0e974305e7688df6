package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	JWTIssuer         = "Inkwell"
	JWTExpirationTime = time.Hour * 24
)

// JWTSecret 签名密钥，启动时由配置覆盖
var JWTSecret = "Inkwell"

// SetJWTSecret 使用配置中的密钥
func SetJWTSecret(secret string) {
	if secret != "" {
		JWTSecret = secret
	}
}

// UserClaims 定义了我们 Token 中需要包含的业务信息
type UserClaims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}
