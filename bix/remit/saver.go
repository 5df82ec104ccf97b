package remit

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	pgxv5Pool "github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/constants"
	"github.com/caresuite/bix-app/bix/models"
)

// Saver is the payment persistence collaborator. The importer hands it a
// validated, normalized remittance and never mutates the model afterwards.
type Saver interface {
	SaveRemittance(ctx context.Context, r *models.Remittance, metadata RemitFileMetadata) (fileID uint, err error)
	UpdateImportStatus(ctx context.Context, fileID uint, status string) error
}

// PgxSaver persists remittances to Postgres. The header insert, the detail
// batch copy and the status update run in one transaction; any failure
// rolls the whole file back.
type PgxSaver struct {
	Logger  logrus.FieldLogger
	PgxPool *pgxv5Pool.Pool
}

func (s *PgxSaver) SaveRemittance(ctx context.Context, r *models.Remittance, metadata RemitFileMetadata) (uint, error) {
	if s.PgxPool == nil {
		return 0, fmt.Errorf("pgx pool is required for import operations")
	}

	tx, err := s.PgxPool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start pgx transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				s.Logger.Errorf("Failed to rollback pgx transaction: %s, %s", err.Error(), rollbackErr.Error())
			}
		}
	}()

	var fileID uint
	err = tx.QueryRow(ctx,
		`INSERT INTO remittances
		 (remittance_number, remittance_date, payer_identifier, payer_name,
		  total_amount_cents, claim_count, file_type, source_file, import_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		r.Info.RemittanceNumber, r.Info.RemittanceDate, r.Info.PayerIdentifier,
		r.Info.PayerName, r.Info.TotalAmount, r.Info.ClaimCount,
		string(r.Info.FileType), metadata.Name, constants.ImportInprog,
	).Scan(&fileID)
	if err != nil {
		return 0, fmt.Errorf("database error inserting remittance %s: %w", r.Info.RemittanceNumber, err)
	}

	rows := make([][]interface{}, 0, len(r.Details))
	for seq, d := range r.Details {
		var codes interface{}
		if len(d.AdjustmentCodes) > 0 {
			codes = d.AdjustmentCodes
		}
		rows = append(rows, []interface{}{
			fileID, seq, d.ClaimNumber, d.ServiceDate,
			d.BilledAmount, d.PaidAmount, d.AdjustmentAmount, codes,
		})
	}

	copied, err := tx.CopyFrom(ctx, pgxv5.Identifier{"remittance_details"},
		[]string{"remittance_id", "seq", "claim_number", "service_date",
			"billed_amount_cents", "paid_amount_cents", "adjustment_amount_cents", "adjustment_codes"},
		pgxv5.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to write remittance details to database: %w", err)
	}
	if int(copied) != len(r.Details) {
		err = fmt.Errorf("unexpected number of details imported (expected: %d, actual: %d)", len(r.Details), copied)
		return 0, err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE remittances SET import_status = $1 WHERE id = $2`,
		constants.ImportComplete, fileID); err != nil {
		return 0, fmt.Errorf("database error updating import status for remittance %s: %w", r.Info.RemittanceNumber, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit pgx transaction: %w", err)
	}

	s.Logger.WithFields(logrus.Fields{"imported_count": copied}).
		Infof("successfully imported %d details from remittance %s.", copied, r.Info.RemittanceNumber)
	return fileID, nil
}

func (s *PgxSaver) UpdateImportStatus(ctx context.Context, fileID uint, status string) error {
	if s.PgxPool == nil {
		return fmt.Errorf("pgx pool is required for import operations")
	}
	_, err := s.PgxPool.Exec(ctx,
		`UPDATE remittances SET import_status = $1 WHERE id = $2`, status, fileID)
	return err
}
