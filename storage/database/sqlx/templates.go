package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
)

type templateRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Vars      string      `db:"vars"`
	Scene     null.String `db:"scene"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
	SyncedAt  time.Time   `db:"synced_at"`
}

func newTemplateRow(t certificate.Template, syncedAt time.Time) (templateRow, error) {
	vars := t.Vars
	if vars == nil {
		vars = []string{}
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil {
		return templateRow{}, errors.Wrap(err, "encoding template vars")
	}
	row := templateRow{
		ID:       t.ID.String(),
		Name:     t.Name,
		Vars:     string(varsJSON),
		SyncedAt: syncedAt,
	}
	if len(t.Scene) > 0 {
		row.Scene = null.StringFrom(string(t.Scene))
	}
	if t.CreatedAt.Valid {
		row.CreatedAt = t.CreatedAt.Time
	}
	if t.UpdatedAt.Valid {
		row.UpdatedAt = t.UpdatedAt.Time
	}
	return row, nil
}

func (row templateRow) template() certificate.Template {
	t := certificate.Template{
		ID:        certificate.RefID(row.ID),
		Name:      row.Name,
		CreatedAt: certificate.Timestamp{Time: row.CreatedAt},
		UpdatedAt: certificate.Timestamp{Time: row.UpdatedAt},
	}
	// the vars column only documents placeholders; a broken value is dropped
	_ = json.Unmarshal([]byte(row.Vars), &t.Vars)
	if row.Scene.Valid {
		t.Scene = json.RawMessage(row.Scene.String)
	}
	return t
}

const (
	templateColumns = `id, name, vars, scene, created_at, updated_at, synced_at`

	upsertTemplate = `
INSERT INTO certificate_templates (` + templateColumns + `)
VALUES (:id, :name, :vars, :scene, :created_at, :updated_at, :synced_at)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	vars = EXCLUDED.vars,
	scene = EXCLUDED.scene,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	synced_at = EXCLUDED.synced_at`
)

// TemplateRepository mirrors the backend certificate templates in postgres.
type TemplateRepository struct {
	db  core.DB
	now func() time.Time
}

var _ certificate.TemplateMirror = (*TemplateRepository)(nil)

func NewTemplateRepository(db core.DB) *TemplateRepository {
	return &TemplateRepository{db: db, now: time.Now}
}

var templateOrderings = map[string]string{"name": "name", "created_at": "created_at", "updated_at": "updated_at"}

func (repo *TemplateRepository) ListTemplates(ctx context.Context) ([]certificate.Template, error) {
	return repo.QueryTemplates(ctx, nil)
}

// QueryTemplates lists templates sorted in the database; unknown fields are ignored.
func (repo *TemplateRepository) QueryTemplates(ctx context.Context, orderings []core.DBOrdering) ([]certificate.Template, error) {
	rows := make([]templateRow, 0)
	q := `SELECT ` + templateColumns + ` FROM certificate_templates ORDER BY ` +
		core.OrderBy(orderings, templateOrderings, core.DBOrdering{Field: "name", Ascending: true}) + `, id ASC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting templates")
	}
	tmpls := make([]certificate.Template, 0, len(rows))
	for _, row := range rows {
		tmpls = append(tmpls, row.template())
	}
	return tmpls, nil
}

func (repo *TemplateRepository) GetTemplate(ctx context.Context, id string) (*certificate.Template, error) {
	var row templateRow
	q := repo.db.Rebind(`SELECT ` + templateColumns + ` FROM certificate_templates WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil, errors.Wrapf(certificate.ErrNotFound, "template %q", id)
		}
		return nil, errors.Wrap(err, "selecting template")
	}
	t := row.template()
	return &t, nil
}

// SaveTemplates upserts templates in a single transaction.
func (repo *TemplateRepository) SaveTemplates(ctx context.Context, templates ...certificate.Template) error {
	syncedAt := repo.now().UTC()
	return core.InTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, t := range templates {
			row, err := newTemplateRow(t, syncedAt)
			if err != nil {
				return err
			}
			if _, err = tx.NamedExecContext(ctx, upsertTemplate, row); err != nil {
				return errors.Wrapf(err, "saving template %q", row.ID)
			}
		}
		return nil
	})
}

func (repo *TemplateRepository) DeleteTemplate(ctx context.Context, id string) error {
	q := repo.db.Rebind(`DELETE FROM certificate_templates WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrap(err, "deleting template")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(certificate.ErrNotFound, "template %q", id)
	}
	return nil
}
