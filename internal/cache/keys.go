package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func SessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:results", sessionID)
}

func AnswerKey(analysisID string) string {
	return fmt.Sprintf("analysis:answer:%s", analysisID)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
