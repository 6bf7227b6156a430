package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/medira/clinicflow/pkg/metrics"
)

const startTimeKey = "metrics:start_time"

// Instrument hooks query timing into every gorm operation so DBQueryDuration
// reflects real statement latency per operation and table.
func Instrument(db *gorm.DB, collector *metrics.Collector) error {
	type registration struct {
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name string, fn func(*gorm.DB)) error
	}

	regs := []registration{
		{"create", db.Callback().Create().Before("gorm:create").Register, db.Callback().Create().After("gorm:create").Register},
		{"query", db.Callback().Query().Before("gorm:query").Register, db.Callback().Query().After("gorm:query").Register},
		{"update", db.Callback().Update().Before("gorm:update").Register, db.Callback().Update().After("gorm:update").Register},
		{"delete", db.Callback().Delete().Before("gorm:delete").Register, db.Callback().Delete().After("gorm:delete").Register},
		{"row", db.Callback().Row().Before("gorm:row").Register, db.Callback().Row().After("gorm:row").Register},
		{"raw", db.Callback().Raw().Before("gorm:raw").Register, db.Callback().Raw().After("gorm:raw").Register},
	}

	for _, r := range regs {
		if err := r.before("metrics:before_"+r.operation, markStart); err != nil {
			return fmt.Errorf("registering before callback for %s: %w", r.operation, err)
		}
		if err := r.after("metrics:after_"+r.operation, observe(r.operation, collector)); err != nil {
			return fmt.Errorf("registering after callback for %s: %w", r.operation, err)
		}
	}

	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func observe(operation string, collector *metrics.Collector) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		collector.DBQueryDuration.WithLabelValues(operation, table).
			Observe(time.Since(start).Seconds())
	}
}

// MonitorPool keeps the open-connections gauge current until ctx is done.
func MonitorPool(ctx context.Context, db *gorm.DB, collector *metrics.Collector, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}
}
