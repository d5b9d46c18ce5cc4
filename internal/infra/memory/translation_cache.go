package memory

import (
	"context"
	"fmt"
	"sync"

	"quizrelay/internal/domain"
)

// TranslationCache keeps translated quizzes for the process lifetime only.
// Losing it on restart just costs a re-translation.
type TranslationCache struct {
	mu      sync.RWMutex
	entries map[string]domain.TranslatedQuiz
}

func NewTranslationCache() *TranslationCache {
	return &TranslationCache{entries: make(map[string]domain.TranslatedQuiz)}
}

func (c *TranslationCache) Get(_ context.Context, quizID int64, language string) (domain.TranslatedQuiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cacheKey(quizID, language)]
	return entry, ok
}

func (c *TranslationCache) Set(_ context.Context, quizID int64, language string, translated domain.TranslatedQuiz) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(quizID, language)] = translated
}

func cacheKey(quizID int64, language string) string {
	return fmt.Sprintf("%d:%s", quizID, language)
}
