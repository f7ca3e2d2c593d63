package flows

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Keys builds every cache key the gateway writes. Namespace is prepended
// verbatim so several deployments can share one Redis.
type Keys struct {
	Namespace string
}

func (k Keys) RateLimit(ip string) string {
	return k.Namespace + "rate_limit:auth:" + ip
}

func (k Keys) FailedAttempts(ip string) string {
	return k.Namespace + "auth_failed:" + ip
}

func (k Keys) Blacklist(tokenHash string) string {
	return k.Namespace + "token_blacklist:" + tokenHash
}

func (k Keys) UserActive(userID int64) string {
	return k.Namespace + "user:active:" + strconv.FormatInt(userID, 10)
}

func (k Keys) TokenUse(jti string) string {
	return k.Namespace + "token_jti:" + jti
}

// TokenHash is the hex SHA-256 of the raw token string.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
