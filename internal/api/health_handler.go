package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

const notConfigured = "not configured"

// DB is the database handle the health checks use.
type DB interface {
	PingContext(ctx context.Context) error
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BucketHeader is the S3 call used to probe upload storage.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ReadyChecker reports whether the delivery transport has its credentials.
type ReadyChecker interface {
	Ready() error
}

// HealthChecker reports on the database, Redis, upload bucket, delivery
// transport and scheduled-campaign backlog. Any dependency can be nil.
type HealthChecker struct {
	db          DB
	redisClient *redis.Client
	s3Client    BucketHeader
	s3Bucket    string
	sender      ReadyChecker
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db DB, redisClient *redis.Client, s3Client BucketHeader, s3Bucket string, sender ReadyChecker) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		s3Bucket:    s3Bucket,
		sender:      sender,
		startTime:   time.Now(),
	}
}

const healthVersion = "1.0.0"

// HandleHealth always answers 200; the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	probes := map[string]func(context.Context) ComponentCheck{
		"database":  hc.checkDatabase,
		"redis":     hc.checkRedis,
		"s3":        hc.checkS3,
		"delivery":  hc.checkDelivery,
		"scheduler": hc.checkBacklog,
	}

	ch := make(chan result, len(probes))
	for name, probe := range probes {
		name, probe := name, probe
		go func() { ch <- result{name, probe(ctx)} }()
	}
	checks := make(map[string]ComponentCheck, len(probes))
	for range probes {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// timed classifies a probe result by error and latency.
func timed(latency, slow time.Duration, err error, okMsg string) ComponentCheck {
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: okMsg}
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	err := hc.db.PingContext(ctx)
	return timed(time.Since(start), time.Second, err, "connected")
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	err := hc.redisClient.Ping(ctx).Err()
	return timed(time.Since(start), 500*time.Millisecond, err, "connected")
}

func (hc *HealthChecker) checkS3(ctx context.Context) ComponentCheck {
	if hc.s3Client == nil || hc.s3Bucket == "" {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	_, err := hc.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &hc.s3Bucket})
	return timed(time.Since(start), 2*time.Second, err, fmt.Sprintf("bucket %q accessible", hc.s3Bucket))
}

func (hc *HealthChecker) checkDelivery(_ context.Context) ComponentCheck {
	if hc.sender == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	if err := hc.sender.Ready(); err != nil {
		return ComponentCheck{Status: "degraded", Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Message: "credentials present"}
}

// checkBacklog counts scheduled campaigns already past due. A growing
// backlog means the sweep is not running.
func (hc *HealthChecker) checkBacklog(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	var count int
	err := hc.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE status = 'scheduled' AND send_mode = 'scheduled' AND scheduled_for <= NOW() - INTERVAL '5 minutes'`,
	).Scan(&count)
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("backlog check failed: %v", err)}
	}
	if count > 0 {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("%d overdue campaigns", count)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "no overdue campaigns"}
}

// determineOverallStatus is "unhealthy" when a configured database is down,
// "degraded" when anything else configured is not up, "healthy" otherwise.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" && db.Message != notConfigured {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != notConfigured {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
