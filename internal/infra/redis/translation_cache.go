package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"quizrelay/internal/domain"
)

// TranslationCache stores translated quizzes in Redis so a restarted process
// can reuse earlier translations. It is still only a cache: errors degrade to
// a miss, writes are best-effort.
// Entries are stored as: SET quiz:{quizID}:i18n:{language} {json} EX ttl
type TranslationCache struct {
	client *redis.Client
	ttl    time.Duration
	rnd    *rand.Rand
}

func NewTranslationCache(client *redis.Client, ttl time.Duration) *TranslationCache {
	return &TranslationCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *TranslationCache) Get(ctx context.Context, quizID int64, language string) (domain.TranslatedQuiz, bool) {
	raw, err := c.client.Get(ctx, c.key(quizID, language)).Bytes()
	if err != nil {
		return domain.TranslatedQuiz{}, false
	}
	var translated domain.TranslatedQuiz
	if err := json.Unmarshal(raw, &translated); err != nil {
		return domain.TranslatedQuiz{}, false
	}
	return translated, true
}

func (c *TranslationCache) Set(ctx context.Context, quizID int64, language string, translated domain.TranslatedQuiz) {
	raw, err := json.Marshal(translated)
	if err != nil {
		log.Printf("translation cache: marshal quiz %d (%s): %v", quizID, language, err)
		return
	}
	if err := c.client.Set(ctx, c.key(quizID, language), raw, c.ttlWithJitter()).Err(); err != nil {
		log.Printf("translation cache: set quiz %d (%s): %v", quizID, language, err)
	}
}

func (c *TranslationCache) key(quizID int64, language string) string {
	return fmt.Sprintf("quiz:%d:i18n:%s", quizID, language)
}

func (c *TranslationCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
