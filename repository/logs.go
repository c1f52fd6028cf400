package repository

import (
	"context"
	"time"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type RequestLogRepository struct {
	db *gorm.DB
}

// LogFilter narrows the request log listing
type LogFilter struct {
	ListParams
	Level      string
	Method     string
	StatusCode int
	UserID     *uint
	Since      *time.Time
}

var logSorts = map[string]string{
	"createdAt":  "created_at",
	"statusCode": "status_code",
	"latencyMs":  "latency_ms",
	"path":       "path",
}

// List returns request logs, newest first by default
func (r *RequestLogRepository) List(ctx context.Context, f LogFilter) ([]models.RequestLog, int64, error) {
	f.Normalize()
	q := r.db.WithContext(ctx).Model(&models.RequestLog{}).Scopes(searchScope(f.Search, "path", "ip", "user_agent"))
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}
	if f.StatusCode != 0 {
		q = q.Where("status_code = ?", f.StatusCode)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}

	var logs []models.RequestLog
	total, err := paginate(q, f.ListParams, []interface{}{f.orderBy(logSorts, "created_at", true), "id"}, &logs)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list request logs")
	}
	return logs, total, nil
}

// Create stores one log row through gorm. The request middleware writes
// through the pgx pool instead.
func (r *RequestLogRepository) Create(ctx context.Context, l *models.RequestLog) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(l).Error, "failed to store request log")
}

type groupCount struct {
	Label string
	Total int64
}

// Stats summarizes the request log since the given instant
func (r *RequestLogRepository) Stats(ctx context.Context, since time.Time) (*models.LogStats, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.RequestLog{}).Where("created_at >= ?", since.UTC())
	}
	stats := &models.LogStats{
		Since:         since,
		ByStatusClass: map[string]int64{},
	}

	var err error
	if stats.ByLevel, err = countBy(base(), "level"); err != nil {
		return nil, err
	}
	if stats.ByMethod, err = countBy(base(), "method"); err != nil {
		return nil, err
	}

	var codes []groupCount
	if err := base().Select("CAST(status_code AS TEXT) AS label, COUNT(*) AS total").Group("status_code").Scan(&codes).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count status codes")
	}
	for _, c := range codes {
		stats.ByStatusClass[statusClass(c.Label)] += c.Total
	}

	var ips []groupCount
	err = base().Select("ip AS label, COUNT(*) AS total").Group("ip").Order("total DESC").Limit(10).Scan(&ips).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to rank client ips")
	}
	for _, ip := range ips {
		stats.TopIPs = append(stats.TopIPs, models.IPCount{IP: ip.Label, Requests: ip.Total})
	}

	var avg struct{ Avg float64 }
	if err := base().Select("COALESCE(AVG(latency_ms), 0) AS avg").Scan(&avg).Error; err != nil {
		return nil, errors.Wrap(err, "failed to average latency")
	}
	stats.AverageLatencyMs = avg.Avg
	return stats, nil
}

// Purge deletes log rows older than before
func (r *RequestLogRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", before.UTC()).Delete(&models.RequestLog{})
	return res.RowsAffected, errors.Wrap(res.Error, "failed to purge request logs")
}

func countBy(q *gorm.DB, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := q.Select(column + " AS label, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to count by %s", column)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Label] = row.Total
	}
	return out, nil
}

func statusClass(code string) string {
	if len(code) != 3 {
		return "other"
	}
	switch code[0] {
	case '2':
		return "success"
	case '3':
		return "redirect"
	case '4':
		return "client_error"
	case '5':
		return "server_error"
	}
	return "other"
}
