// Package dashboard aggregates orders, samples and payments for the admin
// overview. It never writes.
package dashboard

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/diagnostics"
	"github.com/pathlab/pathlab/internal/platform/cache"
	"github.com/pathlab/pathlab/internal/platform/db"
	"github.com/pathlab/pathlab/internal/platform/metrics"
)

const statsCacheKey = "dashboard:stats"

const (
	DefaultMonths = 6
	MaxMonths     = 24
	DefaultLimit  = 10
	MaxLimit      = 50
)

var bucketNames = map[string]string{
	catalog.SampleBlood:  "Blood Tests",
	catalog.SampleUrine:  "Urine Tests",
	catalog.SampleSaliva: "Saliva Tests",
	catalog.SampleTissue: "Tissue Tests",
	catalog.SampleOther:  "Others",
}

type Service struct {
	repo     Repository
	snapshot db.SnapshotReader
	cache    cache.KVStore
	cacheTTL time.Duration
	metrics  *metrics.Collector
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, snapshot db.SnapshotReader) *Service {
	return &Service{
		repo:     repo,
		snapshot: snapshot,
		cache:    cache.Noop{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// SetCache enables caching of Stats for ttl. A zero ttl disables it.
func (s *Service) SetCache(kv cache.KVStore, ttl time.Duration) {
	if kv == nil || ttl <= 0 {
		s.cache, s.cacheTTL = cache.Noop{}, 0
		return
	}
	s.cache, s.cacheTTL = kv, ttl
}

func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

func monthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Stats returns headline counts. Cache failures fall through to the store.
// A cached result is eventually consistent: it may lag the store by up to the
// cache TTL.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var cached Stats
	hit, err := cache.GetJSON(ctx, s.cache, statsCacheKey, &cached)
	switch {
	case err != nil:
		s.metrics.Cache("error")
		s.logger.Warn().Err(err).Str("key", statsCacheKey).Msg("dashboard cache read failed")
	case hit:
		s.metrics.Cache("hit")
		return &cached, nil
	default:
		s.metrics.Cache("miss")
	}

	out := &Stats{}
	err = s.snapshot.WithinSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if out.TotalPatients, err = s.repo.CountPatients(ctx); err != nil {
			return err
		}
		if out.TotalBookings, err = s.repo.CountOrders(ctx); err != nil {
			return err
		}
		byStatus, err := s.repo.CountSamplesByStatus(ctx)
		if err != nil {
			return err
		}
		for status, n := range byStatus {
			if status == diagnostics.SampleTested {
				out.TestsCompleted += n
			} else {
				out.PendingReports += n
			}
		}
		if out.TotalRevenue, err = s.repo.SumPaid(ctx); err != nil {
			return err
		}

		current := monthStart(s.now())
		previous := current.AddDate(0, -1, 0)
		next := current.AddDate(0, 1, 0)
		cur, err := s.repo.CountOrdersCreatedBetween(ctx, current, next)
		if err != nil {
			return err
		}
		prev, err := s.repo.CountOrdersCreatedBetween(ctx, previous, current)
		if err != nil {
			return err
		}
		out.MonthlyGrowth = growth(cur, prev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, s.cache, statsCacheKey, out, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", statsCacheKey).Msg("dashboard cache write failed")
		}
	}
	return out, nil
}

// growth is the percentage change from prev to cur rounded half away from
// zero to one decimal place, or zero when prev is zero.
func growth(cur, prev int64) decimal.Decimal {
	if prev == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(cur - prev).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(prev)).
		Round(1)
}

// MonthlyBookings returns the last months calendar months, oldest first,
// including the current one. A non-positive count yields no buckets.
func (s *Service) MonthlyBookings(ctx context.Context, months int) ([]MonthlyBooking, error) {
	if months <= 0 {
		return []MonthlyBooking{}, nil
	}
	if months > MaxMonths {
		months = MaxMonths
	}
	current := monthStart(s.now())
	out := make([]MonthlyBooking, 0, months)
	err := s.snapshot.WithinSnapshot(ctx, func(ctx context.Context) error {
		for i := months - 1; i >= 0; i-- {
			from := current.AddDate(0, -i, 0)
			to := from.AddDate(0, 1, 0)
			bookings, err := s.repo.CountOrdersCreatedBetween(ctx, from, to)
			if err != nil {
				return err
			}
			revenue, err := s.repo.SumPaidBetween(ctx, from, to)
			if err != nil {
				return err
			}
			out = append(out, MonthlyBooking{
				Month:    from.Format("Jan"),
				Bookings: bookings,
				Revenue:  revenue,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TestDistribution reports each occurring sample type's share of all
// samples, rounded down. Shares are not adjusted to sum to 100.
func (s *Service) TestDistribution(ctx context.Context) ([]TestDistribution, error) {
	counts, err := s.repo.CountSamplesBySampleType(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	out := []TestDistribution{}
	for _, st := range catalog.SampleTypes {
		n, ok := counts[st]
		if !ok {
			continue
		}
		value := 0
		if total > 0 {
			value = int(n * 100 / total)
		}
		out = append(out, TestDistribution{Name: bucketNames[st], Value: value})
	}
	return out, nil
}

// RecentActivity merges the newest bookings, payments and collected samples
// into one feed of at most limit entries.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var (
		orders   []OrderEvent
		payments []PaymentEvent
		samples  []SampleEvent
	)
	err := s.snapshot.WithinSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if orders, err = s.repo.RecentOrders(ctx, limit); err != nil {
			return err
		}
		if payments, err = s.repo.RecentPayments(ctx, limit); err != nil {
			return err
		}
		samples, err = s.repo.RecentSamples(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	feed := make([]Activity, 0, len(orders)+len(payments)+len(samples))
	for _, o := range orders {
		feed = append(feed, Activity{
			ID:        o.ID,
			Type:      ActivityBooking,
			Message:   "New booking from " + o.PatientName + " for " + strings.Join(o.TestNames, ", "),
			Time:      timeAgo(o.CreatedAt, now),
			Status:    strings.ToLower(o.Status),
			Timestamp: o.CreatedAt,
		})
	}
	for _, p := range payments {
		feed = append(feed, Activity{
			ID:        p.ID,
			Type:      ActivityPayment,
			Message:   "Payment received from " + p.PatientName,
			Time:      timeAgo(p.PaidAt, now),
			Status:    "completed",
			Timestamp: p.PaidAt,
		})
	}
	for _, sm := range samples {
		feed = append(feed, Activity{
			ID:        sm.ID,
			Type:      ActivityReport,
			Message:   "Report generated for " + sm.PatientName + " (" + sm.TestName + ")",
			Time:      timeAgo(sm.CollectedAt, now),
			Status:    "completed",
			Timestamp: sm.CollectedAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Timestamp.After(feed[j].Timestamp) })
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

func timeAgo(t, now time.Time) string {
	minutes := int64(now.Sub(t) / time.Minute)
	if minutes < 1 {
		return "Just now"
	}
	if minutes < 60 {
		return plural(minutes, "minute")
	}
	hours := minutes / 60
	if hours < 24 {
		return plural(hours, "hour")
	}
	return plural(hours/24, "day")
}

func plural(n int64, unit string) string {
	s := strconv.FormatInt(n, 10) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s + " ago"
}
