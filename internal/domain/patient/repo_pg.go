package patient

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

const patientCols = `id, ghana_card, nhis_number, folder_number,
	family_name, given_name, middle_name, gender, birth_date, phone,
	address_line1, address_line2, city, district, region, country,
	nhie_resource_id, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (
			id, ghana_card, nhis_number, folder_number,
			family_name, given_name, middle_name, gender, birth_date, phone,
			address_line1, address_line2, city, district, region, country
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
		)`,
		p.ID, p.GhanaCard, p.NHISNumber, p.FolderNumber,
		p.FamilyName, p.GivenName, p.MiddleName, p.Gender, p.BirthDate, p.Phone,
		p.AddressLine1, p.AddressLine2, p.City, p.District, p.Region, p.Country,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByGhanaCard(ctx context.Context, ghanaCard string) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE ghana_card = $1`, ghanaCard))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patients SET
			ghana_card=$2, nhis_number=$3, folder_number=$4,
			family_name=$5, given_name=$6, middle_name=$7, gender=$8,
			birth_date=$9, phone=$10,
			address_line1=$11, address_line2=$12, city=$13, district=$14,
			region=$15, country=$16, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.GhanaCard, p.NHISNumber, p.FolderNumber,
		p.FamilyName, p.GivenName, p.MiddleName, p.Gender,
		p.BirthDate, p.Phone,
		p.AddressLine1, p.AddressLine2, p.City, p.District,
		p.Region, p.Country,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) SetNHIEResourceID(ctx context.Context, id uuid.UUID, externalID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE patients SET nhie_resource_id=$2, updated_at=NOW() WHERE id = $1`, id, externalID)
	return err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.GhanaCard, &p.NHISNumber, &p.FolderNumber,
		&p.FamilyName, &p.GivenName, &p.MiddleName, &p.Gender, &p.BirthDate, &p.Phone,
		&p.AddressLine1, &p.AddressLine2, &p.City, &p.District, &p.Region, &p.Country,
		&p.NHIEResourceID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var patients []*Patient
	for rows.Next() {
		var p Patient
		err := rows.Scan(
			&p.ID, &p.GhanaCard, &p.NHISNumber, &p.FolderNumber,
			&p.FamilyName, &p.GivenName, &p.MiddleName, &p.Gender, &p.BirthDate, &p.Phone,
			&p.AddressLine1, &p.AddressLine2, &p.City, &p.District, &p.Region, &p.Country,
			&p.NHIEResourceID, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, &p)
	}
	return patients, total, rows.Err()
}
