package diagnostics

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/db"
)

// filter accumulates AND-ed predicates with positional arguments.
type filter struct {
	clauses []string
	args    []interface{}
}

func (f *filter) add(clause string, arg interface{}) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(f.args))))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause with the
// full argument list.
func (f *filter) page(limit, offset int) (string, []interface{}) {
	n := len(f.args)
	args := append(append([]interface{}{}, f.args...), limit, offset)
	return " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2), args
}

// =========== Order Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository { return &orderRepoPG{pool: pool} }

func (r *orderRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const orderCols = `id, patient_id, created_by, booking_date, status, created_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PatientID, &o.CreatedBy, &o.BookingDate, &o.Status, &o.CreatedAt)
	return &o, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO orders (id, patient_id, created_by, booking_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		o.ID, o.PatientID, o.CreatedBy, o.BookingDate, o.Status).Scan(&o.CreatedAt)
	return db.MapError(err, "order", o.ID)
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "order", id)
	}
	return o, nil
}

func (r *orderRepoPG) Update(ctx context.Context, o *Order) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE orders SET booking_date = $2, status = $3 WHERE id = $1`,
		o.ID, o.BookingDate, o.Status)
	if err != nil {
		return db.MapError(err, "order", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order", o.ID)
	}
	return nil
}

func (r *orderRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return db.MapError(err, "order", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r *orderRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "order", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r *orderRepoPG) List(ctx context.Context, f OrderFilter, limit, offset int) ([]*Order, int, error) {
	var fl filter
	if f.PatientID != nil {
		fl.add("patient_id = ?", *f.PatientID)
	}
	if f.Status != "" {
		fl.add("status = ?", f.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM orders`+fl.where(), fl.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := fl.page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orderCols+` FROM orders`+fl.where()+
		` ORDER BY created_at DESC, id`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

// =========== OrderTest Repository ===========

type orderTestRepoPG struct{ pool *pgxpool.Pool }

func NewOrderTestRepoPG(pool *pgxpool.Pool) OrderTestRepository { return &orderTestRepoPG{pool: pool} }

func (r *orderTestRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *orderTestRepoPG) Add(ctx context.Context, ot *OrderTest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO order_tests (order_id, test_id, position, interpretation)
		VALUES ($1, $2, $3, $4)`,
		ot.OrderID, ot.TestID, ot.Position, ot.Interpretation)
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, "test already booked on this order")
	}
	return db.MapError(err, "order test", ot.TestID)
}

func (r *orderTestRepoPG) Get(ctx context.Context, orderID, testID uuid.UUID) (*OrderTest, error) {
	var ot OrderTest
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT ot.order_id, ot.test_id, ot.position, ot.interpretation, t.name, t.price
		FROM order_tests ot JOIN tests t ON t.id = ot.test_id
		WHERE ot.order_id = $1 AND ot.test_id = $2`, orderID, testID).Scan(
		&ot.OrderID, &ot.TestID, &ot.Position, &ot.Interpretation, &ot.TestName, &ot.Price)
	if err != nil {
		return nil, db.MapError(err, "test on order", testID)
	}
	return &ot, nil
}

func (r *orderTestRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderTest, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ot.order_id, ot.test_id, ot.position, ot.interpretation, t.name, t.price
		FROM order_tests ot JOIN tests t ON t.id = ot.test_id
		WHERE ot.order_id = $1
		ORDER BY ot.position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*OrderTest
	for rows.Next() {
		var ot OrderTest
		if err := rows.Scan(&ot.OrderID, &ot.TestID, &ot.Position, &ot.Interpretation, &ot.TestName, &ot.Price); err != nil {
			return nil, err
		}
		items = append(items, &ot)
	}
	return items, rows.Err()
}

func (r *orderTestRepoPG) Remove(ctx context.Context, orderID, testID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM order_tests WHERE order_id = $1 AND test_id = $2`, orderID, testID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("test on order", testID)
	}
	return nil
}

func (r *orderTestRepoPG) SetInterpretation(ctx context.Context, orderID, testID uuid.UUID, interpretation string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE order_tests SET interpretation = $3 WHERE order_id = $1 AND test_id = $2`,
		orderID, testID, interpretation)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("test on order", testID)
	}
	return nil
}

// =========== Sample Repository ===========

type sampleRepoPG struct{ pool *pgxpool.Pool }

func NewSampleRepoPG(pool *pgxpool.Pool) SampleRepository { return &sampleRepoPG{pool: pool} }

func (r *sampleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const sampleCols = `id, order_id, test_id, collected_by, collected_at, status, notes`

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(&s.ID, &s.OrderID, &s.TestID, &s.CollectedBy, &s.CollectedAt, &s.Status, &s.Notes)
	return &s, err
}

func (r *sampleRepoPG) Create(ctx context.Context, s *Sample) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO samples (`+sampleCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OrderID, s.TestID, s.CollectedBy, s.CollectedAt, s.Status, s.Notes)
	return db.MapError(err, "sample", s.ID)
}

func (r *sampleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sample, error) {
	s, err := scanSample(r.conn(ctx).QueryRow(ctx, `SELECT `+sampleCols+` FROM samples WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "sample", id)
	}
	return s, nil
}

func (r *sampleRepoPG) Update(ctx context.Context, s *Sample) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE samples SET collected_by = $2, collected_at = $3, status = $4, notes = $5
		WHERE id = $1`,
		s.ID, s.CollectedBy, s.CollectedAt, s.Status, s.Notes)
	if err != nil {
		return db.MapError(err, "sample", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("sample", s.ID)
	}
	return nil
}

func (r *sampleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM samples WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "sample", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("sample", id)
	}
	return nil
}

func (r *sampleRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Sample, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.order_id, s.test_id, s.collected_by, s.collected_at, s.status, s.notes
		FROM samples s
		LEFT JOIN order_tests ot ON ot.order_id = s.order_id AND ot.test_id = s.test_id
		WHERE s.order_id = $1
		ORDER BY ot.position NULLS LAST, s.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *sampleRepoPG) List(ctx context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error) {
	var fl filter
	if f.OrderID != nil {
		fl.add("order_id = ?", *f.OrderID)
	}
	if f.Status != "" {
		fl.add("status = ?", f.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM samples`+fl.where(), fl.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := fl.page(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+sampleCols+` FROM samples`+fl.where()+
		` ORDER BY collected_at DESC NULLS LAST, id`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Result Repository ===========

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository { return &resultRepoPG{pool: pool} }

func (r *resultRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const resultCols = `id, order_id, parameter_id, value, entered_by, created_at`

func (r *resultRepoPG) Create(ctx context.Context, res *Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_results (`+resultCols+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.OrderID, res.ParameterID, res.Value, res.EnteredBy, res.CreatedAt)
	return db.MapError(err, "result", res.ParameterID)
}

func (r *resultRepoPG) Update(ctx context.Context, res *Result) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE test_results SET value = $2, entered_by = $3 WHERE id = $1`,
		res.ID, res.Value, res.EnteredBy)
	if err != nil {
		return db.MapError(err, "result", res.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("result", res.ID)
	}
	return nil
}

func (r *resultRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Result, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+resultCols+` FROM test_results WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.OrderID, &res.ParameterID, &res.Value, &res.EnteredBy, &res.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &res)
	}
	return items, rows.Err()
}

func (r *resultRepoPG) DeleteByOrderTest(ctx context.Context, orderID, testID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM test_results
		WHERE order_id = $1
		  AND parameter_id IN (SELECT id FROM test_parameters WHERE test_id = $2)`, orderID, testID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *resultRepoPG) DeleteByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM test_results WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
