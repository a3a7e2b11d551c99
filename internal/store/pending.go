package store

import (
	"context"
	"database/sql"

	"transfer-reconciliation-service/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

// OpenPendingTransfers returns the not-yet-matched transfers touching any of
// accountIDs, oldest first.
func (d *Datasource) OpenPendingTransfers(ctx context.Context, accountIDs []string) ([]*models.PendingTransfer, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Fetching open pending transfers")
	defer span.End()

	if len(accountIDs) == 0 {
		return nil, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, from_account_id, to_account_id, amount, transfer_date,
			tolerance_days, tolerance_amount, from_transaction_id, to_transaction_id, status
		FROM pending_transfers
		WHERE status <> 'matched'
			AND (from_account_id = ANY($1::uuid[]) OR to_account_id = ANY($1::uuid[]))
		ORDER BY created_at, id`,
		pq.Array(accountIDs),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var transfers []*models.PendingTransfer
	for rows.Next() {
		var (
			p               models.PendingTransfer
			status          string
			toleranceDays   sql.NullInt64
			toleranceAmount decimal.NullDecimal
			fromTx, toTx    sql.NullString
		)
		err := rows.Scan(
			&p.ID, &p.FromAccountID, &p.ToAccountID, &p.Amount, &p.TransferDate,
			&toleranceDays, &toleranceAmount, &fromTx, &toTx, &status,
		)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		p.Status = models.PendingTransferStatus(status)
		if toleranceDays.Valid {
			days := int(toleranceDays.Int64)
			p.ToleranceDays = &days
		}
		if toleranceAmount.Valid {
			amount := toleranceAmount.Decimal
			p.ToleranceAmount = &amount
		}
		p.FromTransactionID = nullString(fromTx)
		p.ToTransactionID = nullString(toTx)

		transfers = append(transfers, &p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return transfers, nil
}
