package store

import (
	"context"
	"database/sql"

	"transfer-reconciliation-service/internal/models"

	"go.opentelemetry.io/otel"
)

// PendingUpdate is one slot assignment on a pending transfer.
type PendingUpdate struct {
	// Transfer is the full state to write, slots and status included
	Transfer *models.PendingTransfer

	TransactionID string

	// PeerID is set when the assignment completed the transfer
	PeerID string

	CategoryID *string
}

// linkTransaction points id at peer. The linked_to IS NULL guard keeps two
// runs from linking the same transaction twice.
func linkTransaction(ctx context.Context, tx *sql.Tx, id, peer string, linkType models.LinkType, categoryID *string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET linked_to = $2, link_type = $3, category_id = COALESCE($4, category_id),
			needs_review = false, transfer_status = $5, updated_at = now()
		WHERE id = $1 AND linked_to IS NULL`,
		id, peer, string(linkType), categoryID, models.TransferStatusLinked,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyLinked
	}
	return nil
}

// LinkTransfer links a debit and credit to each other in one SQL transaction.
// Either both sides are written or neither is.
func (d *Datasource) LinkTransfer(ctx context.Context, debitID, creditID string, categoryID *string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Linking transfer")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := linkTransaction(ctx, tx, debitID, creditID, models.LinkTransferOut, categoryID); err != nil {
		rollback(tx)
		span.RecordError(err)
		return err
	}
	if err := linkTransaction(ctx, tx, creditID, debitID, models.LinkTransferIn, categoryID); err != nil {
		rollback(tx)
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ApplyPendingUpdate writes a pending-transfer slot assignment together with
// its effect on the transactions. A completed transfer links both
// transactions; a partial one only tags the transaction.
func (d *Datasource) ApplyPendingUpdate(ctx context.Context, u PendingUpdate) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Applying pending transfer match")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE pending_transfers
		SET from_transaction_id = $2, to_transaction_id = $3, status = $4, updated_at = now()
		WHERE id = $1 AND status <> 'matched'`,
		u.Transfer.ID, u.Transfer.FromTransactionID, u.Transfer.ToTransactionID, string(u.Transfer.Status),
	)
	if err == nil {
		var n int64
		if n, err = res.RowsAffected(); err == nil && n == 0 {
			err = ErrPendingTransferClosed
		}
	}
	if err != nil {
		rollback(tx)
		span.RecordError(err)
		return err
	}

	if u.PeerID != "" {
		err = linkTransaction(ctx, tx, u.TransactionID, u.PeerID, models.LinkTransfer, u.CategoryID)
		if err == nil {
			err = linkTransaction(ctx, tx, u.PeerID, u.TransactionID, models.LinkTransfer, u.CategoryID)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET category_id = COALESCE($2, category_id), transfer_status = $3, updated_at = now()
			WHERE id = $1`,
			u.TransactionID, u.CategoryID, models.TransferStatusPartial,
		)
	}
	if err != nil {
		rollback(tx)
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
