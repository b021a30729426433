package game

import (
	"math/rand"
	"strconv"

	"live-quiz-service/internal/domain"
)

const (
	minCode = 100000
	maxCode = 999999
)

// GenerateCode draws a 6-digit code that is not a key of games.
// The check runs against a snapshot, so two concurrent creators may still collide.
func GenerateCode(rnd *rand.Rand, games domain.Games) string {
	for {
		code := strconv.Itoa(minCode + rnd.Intn(maxCode-minCode+1))
		if _, taken := games[code]; !taken {
			return code
		}
	}
}
