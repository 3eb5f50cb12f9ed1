package encounter

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const encCols = `e.id, e.patient_id, e.encounter_type, e.status,
	e.started_at, e.ended_at, e.diagnosis_code, e.diagnosis_display,
	e.nhie_resource_id, e.created_at, e.updated_at, p.ghana_card`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO encounters (
			id, patient_id, encounter_type, status,
			started_at, ended_at, diagnosis_code, diagnosis_display
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		enc.ID, enc.PatientID, enc.EncounterType, enc.Status,
		enc.StartedAt, enc.EndedAt, enc.DiagnosisCode, enc.DiagnosisDisplay,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return scanEnc(r.pool.QueryRow(ctx, `
		SELECT `+encCols+`
		FROM encounters e
		JOIN patients p ON p.id = e.patient_id
		WHERE e.id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM encounters WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+encCols+`
		FROM encounters e
		JOIN patients p ON p.id = e.patient_id
		WHERE e.patient_id = $1
		ORDER BY e.started_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encs []*Encounter
	for rows.Next() {
		enc, err := scanEnc(rows)
		if err != nil {
			return nil, 0, err
		}
		encs = append(encs, enc)
	}
	return encs, total, rows.Err()
}

func (r *repoPG) SetNHIEResourceID(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE encounters SET nhie_resource_id=$2, updated_at=NOW() WHERE id = $1`, id, externalID)
	return err
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(
		&e.ID, &e.PatientID, &e.EncounterType, &e.Status,
		&e.StartedAt, &e.EndedAt, &e.DiagnosisCode, &e.DiagnosisDisplay,
		&e.NHIEResourceID, &e.CreatedAt, &e.UpdatedAt, &e.PatientGhanaCard,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
