package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"Inkwell/internal/model"
)

// MaxAnonTokenLen 匿名令牌最大字符数
const MaxAnonTokenLen = 128

// ActorResolver 将请求身份解析为存储用的 Actor，匿名令牌只保留 HMAC 摘要
type ActorResolver struct {
	secret []byte
}

func NewActorResolver(secret string) *ActorResolver {
	return &ActorResolver{secret: []byte(secret)}
}

// Resolve 登录用户优先，令牌被忽略；否则使用匿名令牌
func (r *ActorResolver) Resolve(userID uint64, anonToken string) model.Actor {
	if userID > 0 {
		return model.UserActor(userID)
	}
	hash, ok := r.HashToken(anonToken)
	if !ok {
		return model.Actor{}
	}
	return model.AnonymousActor(hash)
}

// HashToken 返回令牌的十六进制摘要，空串或超长时 ok=false
func (r *ActorResolver) HashToken(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" || utf8.RuneCountInString(token) > MaxAnonTokenLen {
		return "", false
	}
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil)), true
}
