package app

import (
	"context"

	"quizrelay/internal/domain"
)

// BatchResult is the per-destination outcome of a fan-out: every destination
// is attempted, failures are collected instead of aborting the batch.
type BatchResult struct {
	Succeeded []int64
	Failed    map[int64]error
}

// fanOut runs send against every group, tolerating partial failure. A failure
// for one group never prevents delivery to the remaining groups.
func fanOut(ctx context.Context, groups []domain.GroupSubscription, send func(ctx context.Context, group domain.GroupSubscription) error) BatchResult {
	result := BatchResult{Failed: make(map[int64]error)}
	for _, group := range groups {
		if err := send(ctx, group); err != nil {
			result.Failed[group.ID] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, group.ID)
	}
	return result
}
