package testutil

import (
	"time"

	"github.com/David-Krivoklatsky/GreedAdvisor/internal/auth"
)

const (
	DemoUserID  int64 = 1
	OtherUserID int64 = 2

	DemoEmail  = "demo@example.com"
	OtherEmail = "trader@example.com"
)

func GenerateJWT(userID int64, email string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	return auth.NewToken(userID, email, secret, ttl, now)
}
