package counter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/manana-app/manana/internal/pkg/cache"
	"github.com/manana-app/manana/internal/pkg/database"
)

const (
	generationsKey = "generation:counters:daily"

	KindLesson = "lesson"
	KindPlanB  = "planb"
)

// AddGeneration increments the pending counter for a generation kind. The
// hash field encodes day and kind so the flush produces one row per pair.
func AddGeneration(kind string) error {
	ctx := context.Background()
	field := fmt.Sprintf("%s:%s", time.Now().UTC().Format("2006-01-02"), kind)
	return cache.GetClient().HIncrBy(ctx, generationsKey, field, 1).Err()
}

// FlushAll drains the pending counters to the database
func FlushAll() error {
	return flushHashToStats(generationsKey)
}

// flushHashToStats drains a Redis hash atomically and upserts batched counts
// into daily_stats. Uses RENAME to a temporary key for atomic drain without
// losing in-flight increments.
func flushHashToStats(redisKey string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type row struct {
		day  string
		kind string
		inc  int64
	}
	rows := make([]row, 0, len(data))
	for field, v := range data {
		parts := strings.SplitN(field, ":", 2)
		if len(parts) != 2 {
			continue
		}
		var inc int64
		if _, serr := fmt.Sscanf(v, "%d", &inc); serr != nil || inc == 0 {
			continue
		}
		rows = append(rows, row{day: parts[0], kind: parts[1], inc: inc})
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].day != rows[j].day {
			return rows[i].day < rows[j].day
		}
		return rows[i].kind < rows[j].kind
	})

	// Compose one batched upsert for all (day, kind) pairs
	var builder strings.Builder
	args := make([]interface{}, 0, len(rows)*3)
	builder.WriteString("INSERT INTO daily_stats (day, kind, count, created_at, updated_at) VALUES ")
	for i, r := range rows {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("(?, ?, ?, NOW(), NOW())")
		args = append(args, r.day, r.kind, r.inc)
	}
	builder.WriteString(" ON DUPLICATE KEY UPDATE count = count + VALUES(count), updated_at = NOW()")

	db := database.GetDB()
	if err := db.Exec(builder.String(), args...).Error; err != nil {
		return err
	}
	return nil
}
