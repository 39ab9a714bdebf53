package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pathlab/pathlab/internal/domain/billing"
	"github.com/pathlab/pathlab/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) count(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	var n int64
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, db.MapError(err, "count", "")
	}
	return n, nil
}

func (r *repoPG) sum(ctx context.Context, sql string, args ...interface{}) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return decimal.Zero, db.MapError(err, "sum", "")
	}
	return total, nil
}

func (r *repoPG) CountPatients(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM patients`)
}

func (r *repoPG) CountOrders(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM orders`)
}

func (r *repoPG) CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`, from, to)
}

func (r *repoPG) SumPaid(ctx context.Context) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1`, billing.StatusPaid)
}

func (r *repoPG) SumPaidBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return r.sum(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE status = $1 AND paid_at >= $2 AND paid_at < $3`,
		billing.StatusPaid, from, to)
}

func (r *repoPG) groupCount(ctx context.Context, sql string) (map[string]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, sql)
	if err != nil {
		return nil, db.MapError(err, "count", "")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *repoPG) CountSamplesByStatus(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, `SELECT status, COUNT(*) FROM samples GROUP BY status`)
}

func (r *repoPG) CountSamplesBySampleType(ctx context.Context) (map[string]int64, error) {
	return r.groupCount(ctx, `
		SELECT t.sample_type, COUNT(*)
		FROM samples s JOIN tests t ON t.id = s.test_id
		GROUP BY t.sample_type`)
}

func (r *repoPG) RecentOrders(ctx context.Context, limit int) ([]OrderEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT o.id, p.name, o.status, o.created_at,
			COALESCE((
				SELECT array_agg(t.name ORDER BY ot.position NULLS LAST, t.name)
				FROM samples s
				JOIN tests t ON t.id = s.test_id
				LEFT JOIN order_tests ot ON ot.order_id = s.order_id AND ot.test_id = s.test_id
				WHERE s.order_id = o.id
			), '{}')
		FROM orders o JOIN patients p ON p.id = o.patient_id
		ORDER BY o.created_at DESC, o.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, db.MapError(err, "order", "")
	}
	defer rows.Close()
	var items []OrderEvent
	for rows.Next() {
		var e OrderEvent
		if err := rows.Scan(&e.ID, &e.PatientName, &e.Status, &e.CreatedAt, &e.TestNames); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) RecentPayments(ctx context.Context, limit int) ([]PaymentEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pay.id, p.name, pay.paid_at
		FROM payments pay
		JOIN orders o ON o.id = pay.order_id
		JOIN patients p ON p.id = o.patient_id
		WHERE pay.paid_at IS NOT NULL
		ORDER BY pay.paid_at DESC, pay.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, db.MapError(err, "payment", "")
	}
	defer rows.Close()
	var items []PaymentEvent
	for rows.Next() {
		var e PaymentEvent
		if err := rows.Scan(&e.ID, &e.PatientName, &e.PaidAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) RecentSamples(ctx context.Context, limit int) ([]SampleEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, p.name, t.name, s.collected_at
		FROM samples s
		JOIN orders o ON o.id = s.order_id
		JOIN patients p ON p.id = o.patient_id
		JOIN tests t ON t.id = s.test_id
		WHERE s.collected_at IS NOT NULL
		ORDER BY s.collected_at DESC, s.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, db.MapError(err, "sample", "")
	}
	defer rows.Close()
	var items []SampleEvent
	for rows.Next() {
		var e SampleEvent
		if err := rows.Scan(&e.ID, &e.PatientName, &e.TestName, &e.CollectedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
