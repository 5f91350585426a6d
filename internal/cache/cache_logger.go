package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// BatchInvalidate invalidates multiple patterns in batch
func BatchInvalidate(ctx context.Context, helper *CacheHelper, patterns []string) error {
	var lastErr error
	for _, pattern := range patterns {
		if err := helper.InvalidatePattern(ctx, pattern); err != nil {
			lastErr = err
			slog.ErrorContext(ctx, "Failed to invalidate pattern in batch",
				"error", err,
				"pattern", pattern)
		}
	}
	return lastErr
}

// InvalidateExamCache invalidates all exam-related caches using pipeline
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID string, creatorID string) {
	// Delete specific keys using single call
	SafeDelete(ctx, cm.Exam,
		fmt.Sprintf("id:%s", examID),
		fmt.Sprintf("details:%s", examID))

	// Invalidate patterns
	SafeInvalidatePattern(ctx, cm.Exam, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Exam, "list:*")
	SafeInvalidatePattern(ctx, cm.Question, fmt.Sprintf("exam:%s:*", examID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%s:*", examID))
}

// InvalidateGroupCache invalidates all group-related caches
func InvalidateGroupCache(ctx context.Context, cm *CacheManager, groupID string, creatorID string) {
	SafeDelete(ctx, cm.Group,
		fmt.Sprintf("id:%s", groupID),
		fmt.Sprintf("details:%s", groupID))
	SafeInvalidatePattern(ctx, cm.Group, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Group, fmt.Sprintf("member:%s:*", groupID))
	SafeInvalidatePattern(ctx, cm.Group, "list:*")
}
