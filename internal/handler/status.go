package handler

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/atomic"

	"tg-exchange/internal/logger"
)

// 统计信息
var (
	totalMessagesProcessed = atomic.NewInt64(0)
	totalChannelPosts      = atomic.NewInt64(0)
	totalChatMemberUpdates = atomic.NewInt64(0)
	totalEnforcements      = atomic.NewInt64(0)
	totalErrors            = atomic.NewInt64(0)
	startTime              = time.Now()
)

func incrementCounter(counter *atomic.Int64) {
	counter.Inc()
}

// GetProcessingStats 获取处理统计信息
func GetProcessingStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime_seconds":            int64(time.Since(startTime).Seconds()),
		"total_messages":            totalMessagesProcessed.Load(),
		"total_channel_posts":       totalChannelPosts.Load(),
		"total_chat_member_updates": totalChatMemberUpdates.Load(),
		"total_enforcements":        totalEnforcements.Load(),
		"total_errors":              totalErrors.Load(),
		"memory_usage_mb":           bToMb(m.Alloc),
		"sys_memory_mb":             bToMb(m.Sys),
		"gc_runs":                   m.NumGC,
		"goroutines":                runtime.NumGoroutine(),
	}
}

// LogProcessingStats 定期记录处理统计信息，ctx 结束时返回
func LogProcessingStats(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := GetProcessingStats()
		logger.Infof("Processing stats: %+v", stats)

		// 错误率过高时记录警告
		messages := stats["total_messages"].(int64)
		errors := stats["total_errors"].(int64)
		if messages > 0 && float64(errors)/float64(messages) > 0.1 {
			logger.Warningf("High error rate: %.2f%% (%d errors out of %d messages)",
				float64(errors)/float64(messages)*100, errors, messages)
		}
	}
}

// bToMb 将字节转换为MB
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// GetDetailedStatus 获取详细状态信息（用于调试）
func GetDetailedStatus() string {
	stats := GetProcessingStats()
	return fmt.Sprintf(`
=== Exchange Node Processing Status ===
Uptime: %d seconds
Messages Processed: %d
Channel Posts: %d
Chat Member Updates: %d
Enforcements: %d
Errors: %d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
=======================================
`,
		stats["uptime_seconds"],
		stats["total_messages"],
		stats["total_channel_posts"],
		stats["total_chat_member_updates"],
		stats["total_enforcements"],
		stats["total_errors"],
		stats["memory_usage_mb"],
		stats["sys_memory_mb"],
		stats["gc_runs"],
		stats["goroutines"],
	)
}
