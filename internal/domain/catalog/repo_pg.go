package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/db"
)

type testRepoPG struct{ pool *pgxpool.Pool }

func NewTestRepoPG(pool *pgxpool.Pool) TestRepository {
	return &testRepoPG{pool: pool}
}

func (r *testRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const testCols = `id, name, description, sample_type, price, created_at`

const paramCols = `id, test_id, position, name, unit, ref_range_male, ref_range_female, ref_range_child`

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.SampleType, &t.Price, &t.CreatedAt)
	return &t, err
}

func scanParameter(row pgx.Row) (*Parameter, error) {
	var p Parameter
	err := row.Scan(&p.ID, &p.TestID, &p.Position, &p.Name, &p.Unit, &p.RefRangeMale, &p.RefRangeFemale, &p.RefRangeChild)
	return &p, err
}

func (r *testRepoPG) Create(ctx context.Context, t *Test) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tests (id, name, description, sample_type, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		t.ID, t.Name, t.Description, t.SampleType, t.Price).Scan(&t.CreatedAt)
	if err != nil {
		return db.MapError(err, "test", t.ID)
	}
	return r.insertParameters(ctx, t.Parameters)
}

func (r *testRepoPG) insertParameters(ctx context.Context, params []*Parameter) error {
	for _, p := range params {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO test_parameters (`+paramCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.TestID, p.Position, p.Name, p.Unit, p.RefRangeMale, p.RefRangeFemale, p.RefRangeChild)
		if err != nil {
			return db.MapError(err, "parameter", p.ID)
		}
	}
	return nil
}

func (r *testRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	t, err := scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM tests WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "test", id)
	}
	if t.Parameters, err = r.ListParameters(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *testRepoPG) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Test, error) {
	out := make(map[uuid.UUID]*Test, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+testCols+` FROM tests WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

func (r *testRepoPG) List(ctx context.Context, limit, offset int) ([]*Test, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM tests`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+testCols+` FROM tests ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *testRepoPG) Update(ctx context.Context, t *Test) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE tests SET name = $2, description = $3, sample_type = $4, price = $5
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.SampleType, t.Price)
	if err != nil {
		return db.MapError(err, "test", t.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("test", t.ID)
	}
	return nil
}

func (r *testRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, "test is referenced by orders")
	}
	if err != nil {
		return db.MapError(err, "test", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("test", id)
	}
	return nil
}

func (r *testRepoPG) ListParameters(ctx context.Context, testID uuid.UUID) ([]*Parameter, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+paramCols+` FROM test_parameters WHERE test_id = $1 ORDER BY position`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var params []*Parameter
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

func (r *testRepoPG) GetParameters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Parameter, error) {
	out := make(map[uuid.UUID]*Parameter, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+paramCols+` FROM test_parameters WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *testRepoPG) ReplaceParameters(ctx context.Context, testID uuid.UUID, params []*Parameter) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM test_parameters WHERE test_id = $1`, testID); err != nil {
		return db.MapError(err, "parameter", testID)
	}
	return r.insertParameters(ctx, params)
}

func (r *testRepoPG) ParametersHaveResults(ctx context.Context, testID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM test_results tr
			JOIN test_parameters tp ON tp.id = tr.parameter_id
			WHERE tp.test_id = $1)`, testID).Scan(&exists)
	return exists, err
}

func (r *testRepoPG) ReferencedByOrders(ctx context.Context, testID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_tests WHERE test_id = $1)
		    OR EXISTS (SELECT 1 FROM samples WHERE test_id = $1)`, testID).Scan(&exists)
	return exists, err
}
