package billing

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/db"
)

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepoPG{pool: pool}
}

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const paymentCols = `id, order_id, amount, status, paid_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.PaidAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (`+paymentCols+`)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.OrderID, p.Amount, p.Status, p.PaidAt)
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, "order already has a payment")
	}
	return db.MapError(err, "payment", p.ID)
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "payment", id)
	}
	return p, nil
}

func (r *paymentRepoPG) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE order_id = $1`, orderID))
	if err != nil {
		return nil, db.MapError(err, "payment for order", orderID)
	}
	return p, nil
}

func (r *paymentRepoPG) Update(ctx context.Context, p *Payment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payments SET amount = $2, status = $3, paid_at = $4
		WHERE id = $1`,
		p.ID, p.Amount, p.Status, p.PaidAt)
	if err != nil {
		return db.MapError(err, "payment", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment", p.ID)
	}
	return nil
}

func (r *paymentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err, "payment", id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment", id)
	}
	return nil
}

func (r *paymentRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+paymentCols+` FROM payments`+where+
		` ORDER BY paid_at DESC NULLS LAST, id LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *paymentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientPayment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.order_id, p.amount, p.status, p.paid_at, o.booking_date
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE o.patient_id = $1
		ORDER BY o.booking_date DESC, p.id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientPayment
	for rows.Next() {
		var p Payment
		pp := &PatientPayment{Payment: &p}
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.PaidAt, &pp.BookingDate); err != nil {
			return nil, err
		}
		items = append(items, pp)
	}
	return items, rows.Err()
}

func (r *paymentRepoPG) OrderExists(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (r *paymentRepoPG) LoadInvoice(ctx context.Context, p *Payment) (*Invoice, error) {
	inv := &Invoice{Payment: p}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT o.id, o.booking_date, o.status, o.created_at,
			pt.id, pt.name, pt.gender, pt.email, pt.contact_number, pt.address
		FROM orders o
		JOIN patients pt ON pt.id = o.patient_id
		WHERE o.id = $1`, p.OrderID).Scan(
		&inv.Order.ID, &inv.Order.BookingDate, &inv.Order.Status, &inv.Order.CreatedAt,
		&inv.Patient.ID, &inv.Patient.Name, &inv.Patient.Gender, &inv.Patient.Email,
		&inv.Patient.ContactNumber, &inv.Patient.Address)
	if err != nil {
		return nil, db.MapError(err, "order", p.OrderID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT t.id, t.name, t.price
		FROM order_tests ot
		JOIN tests t ON t.id = ot.test_id
		WHERE ot.order_id = $1
		ORDER BY ot.position`, p.OrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	inv.Order.Lines = []InvoiceLine{}
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.TestID, &l.Name, &l.Price); err != nil {
			return nil, err
		}
		inv.Order.Lines = append(inv.Order.Lines, l)
	}
	return inv, rows.Err()
}
