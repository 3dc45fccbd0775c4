package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

const messageCols = `id, control_id, message_type, direction, status, raw,
	patient_id, sending_app, receiving_app, validation_errors, received_at`

func (r *messageRepoPG) scanMessage(row pgx.Row) (*MessageRecord, error) {
	var m MessageRecord
	err := row.Scan(&m.ID, &m.ControlID, &m.MessageType, &m.Direction,
		&m.Status, &m.Raw, &m.PatientID, &m.SendingApp, &m.ReceivingApp,
		&m.ValidationErrors, &m.ReceivedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *MessageRecord) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, control_id, message_type, direction, status, raw,
			patient_id, sending_app, receiving_app, validation_errors, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.ControlID, m.MessageType, m.Direction, m.Status, m.Raw,
		m.PatientID, m.SendingApp, m.ReceivingApp, m.ValidationErrors, m.ReceivedAt)
	return err
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MessageRecord, error) {
	return r.scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE id = $1`, id))
}

func (r *messageRepoPG) GetByControlID(ctx context.Context, controlID string) (*MessageRecord, error) {
	return r.scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE control_id = $1 ORDER BY received_at DESC LIMIT 1`,
		controlID))
}

func (r *messageRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*MessageRecord, int, error) {
	query := `SELECT ` + messageCols + ` FROM messages WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM messages WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["type"]; ok {
		query += fmt.Sprintf(` AND message_type = $%d`, idx)
		countQuery += fmt.Sprintf(` AND message_type = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["direction"]; ok {
		query += fmt.Sprintf(` AND direction = $%d`, idx)
		countQuery += fmt.Sprintf(` AND direction = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["patient"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY received_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MessageRecord
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
