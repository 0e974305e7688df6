package model

import "strconv"

type ActorKind uint8

const (
	ActorAbsent ActorKind = iota
	ActorUser
	ActorAnonymous
)

const (
	userKeyPrefix = "u:"
	anonKeyPrefix = "a:"
)

// Actor 行为主体：登录用户或匿名令牌的摘要，二者互斥
type Actor struct {
	Kind   ActorKind
	UserID uint64
	Hash   string
}

func UserActor(userID uint64) Actor {
	if userID == 0 {
		return Actor{}
	}
	return Actor{Kind: ActorUser, UserID: userID}
}

func AnonymousActor(hash string) Actor {
	if hash == "" {
		return Actor{}
	}
	return Actor{Kind: ActorAnonymous, Hash: hash}
}

// Key 落库使用的唯一主体键
func (a Actor) Key() string {
	switch a.Kind {
	case ActorUser:
		return userKeyPrefix + strconv.FormatUint(a.UserID, 10)
	case ActorAnonymous:
		return anonKeyPrefix + a.Hash
	default:
		return ""
	}
}

func (a Actor) IsAbsent() bool {
	return a.Kind == ActorAbsent
}

func (a Actor) IsUser() bool {
	return a.Kind == ActorUser
}
