package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"transfer-reconciliation-service/internal/models"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Selection chooses the transactions a detection run looks at: explicit ids,
// or a filter. Empty filter fields are ignored.
type Selection struct {
	IDs               []string
	StatementImportID string
	BankAccountID     string
	DateFrom          *time.Time
	DateTo            *time.Time
}

const selectTransactions = `
	SELECT t.id, COALESCE(t.description, ''), t.amount, COALESCE(t.total_amount, ABS(t.amount)),
		t.direction, t.transaction_date, t.posting_date, t.bank_account_id,
		COALESCE(t.company_id, a.company_id), COALESCE(t.currency, a.currency),
		t.statement_import_id, t.linked_to, t.link_type, t.transfer_status,
		t.category_id, t.needs_review
	FROM transactions t
	JOIN bank_accounts a ON a.id = t.bank_account_id
	WHERE t.direction IN ('debit', 'credit')`

func buildTransactionQuery(sel Selection) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(sel.IDs) > 0 {
		add("t.id = ANY($%d::uuid[])", pq.Array(sel.IDs))
	} else {
		if sel.StatementImportID != "" {
			add("t.statement_import_id = $%d", sel.StatementImportID)
		}
		if sel.BankAccountID != "" {
			add("t.bank_account_id = $%d", sel.BankAccountID)
		}
		if sel.DateFrom != nil {
			add("t.transaction_date >= $%d", sel.DateFrom.Format(models.DateLayout))
		}
		if sel.DateTo != nil {
			add("t.transaction_date <= $%d", sel.DateTo.Format(models.DateLayout))
		}
	}

	var b strings.Builder
	b.WriteString(selectTransactions)
	for _, c := range clauses {
		b.WriteString(" AND ")
		b.WriteString(c)
	}
	b.WriteString(" ORDER BY t.transaction_date, t.created_at, t.id")
	return b.String(), args
}

// LoadTransactions reads the selected debit and credit transactions with their
// account currency and company filled in, in load order.
func (d *Datasource) LoadTransactions(ctx context.Context, sel Selection) ([]*models.Transaction, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Loading transactions")
	defer span.End()

	query, args := buildTransactionQuery(sel)
	span.SetAttributes(attribute.Int("selection.ids", len(sel.IDs)))

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("transactions.loaded", len(transactions)))
	return transactions, nil
}

func scanTransaction(rows *sql.Rows) (*models.Transaction, error) {
	var (
		tx          models.Transaction
		direction   string
		postingDate sql.NullTime
		companyID   sql.NullString
		currency    sql.NullString
		statementID sql.NullString
		linkedTo    sql.NullString
		linkType    sql.NullString
		status      sql.NullString
		categoryID  sql.NullString
	)

	err := rows.Scan(
		&tx.ID, &tx.Description, &tx.Amount, &tx.TotalAmount,
		&direction, &tx.TransactionDate, &postingDate, &tx.BankAccountID,
		&companyID, &currency,
		&statementID, &linkedTo, &linkType, &status,
		&categoryID, &tx.NeedsReview,
	)
	if err != nil {
		return nil, err
	}

	tx.Direction = models.Direction(direction)
	tx.Currency = models.NormalizeCurrency(currency.String)
	if postingDate.Valid {
		tx.PostingDate = &postingDate.Time
	}
	tx.CompanyID = nullString(companyID)
	tx.StatementImportID = nullString(statementID)
	tx.LinkedTo = nullString(linkedTo)
	tx.TransferStatus = nullString(status)
	tx.CategoryID = nullString(categoryID)
	if linkType.Valid {
		lt := models.LinkType(linkType.String)
		tx.LinkType = &lt
	}

	return &tx, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// CategoryIDByCode returns the category id for code, or nil when it does not exist.
func (d *Datasource) CategoryIDByCode(ctx context.Context, code string) (*string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Fetching category by code")
	defer span.End()

	var id string
	err := d.Conn.QueryRowContext(ctx, `SELECT id FROM categories WHERE code = $1`, code).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &id, nil
}
