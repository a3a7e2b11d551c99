package store

import (
	"context"
	"database/sql"

	"transfer-reconciliation-service/internal/fxrate"
	"transfer-reconciliation-service/internal/models"

	"go.opentelemetry.io/otel"
)

// LookupRate reads the persistent exchange-rate cache. A miss returns (nil, nil).
func (d *Datasource) LookupRate(ctx context.Context, key fxrate.RateKey) (*fxrate.Rate, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Fetching cached exchange rate")
	defer span.End()

	row := models.ExchangeRate{FromCurrency: key.From, ToCurrency: key.To}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT rate_date, rate, source
		FROM exchange_rate_cache
		WHERE rate_date = $1 AND from_currency = $2 AND to_currency = $3`,
		key.Date, key.From, key.To,
	).Scan(&row.Date, &row.Rate, &row.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return fxrate.RateFromModel(&row), nil
}
