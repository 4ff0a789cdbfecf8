package models

import (
	"database/sql"
	"fmt"
)

// GetHoldings retrieves every position owned by a user, ordered so that
// repeated reads (and therefore repeated snapshots) see an identical
// sequence.
func GetHoldings(db *sql.DB, userID int64) ([]Position, error) {
	query := `
		SELECT id, user_id, instrument_id, asset_class, market, quantity,
		       avg_cost, last_value_idr, last_value_usd
		FROM holdings
		WHERE user_id = ?
		ORDER BY asset_class, instrument_id, id`

	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying holdings for user %d: %w", userID, err)
	}
	defer rows.Close()

	var holdings []Position
	for rows.Next() {
		var p Position
		var market sql.NullString
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.InstrumentID,
			&p.AssetClass,
			&market,
			&p.Quantity,
			&p.AvgCost,
			&p.LastValueIDR,
			&p.LastValueUSD,
		); err != nil {
			return nil, fmt.Errorf("scanning holding row: %w", err)
		}
		if market.Valid {
			p.Market = Market(market.String)
		}
		holdings = append(holdings, p)
	}
	return holdings, rows.Err()
}

// SaveHolding inserts a new position and returns its id.
func SaveHolding(db *sql.DB, p Position) (int64, error) {
	query := `
		INSERT INTO holdings (user_id, instrument_id, asset_class, market,
		                      quantity, avg_cost, last_value_idr, last_value_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := db.Exec(query, p.UserID, p.InstrumentID, p.AssetClass,
		string(p.Market), p.Quantity, p.AvgCost, p.LastValueIDR, p.LastValueUSD)
	if err != nil {
		return 0, fmt.Errorf("inserting holding %s: %w", p.InstrumentID, err)
	}
	return res.LastInsertId()
}

// UpdateHoldingValuation refreshes the stored valuation fields after a
// pricing cycle. Quantity and avg cost are owned by the add/sell/edit flows
// and are never touched here.
func UpdateHoldingValuation(db *sql.DB, id int64, valueIDR, valueUSD float64) error {
	_, err := db.Exec(
		`UPDATE holdings SET last_value_idr = ?, last_value_usd = ? WHERE id = ?`,
		valueIDR, valueUSD, id)
	if err != nil {
		return fmt.Errorf("updating stored valuation for holding %d: %w", id, err)
	}
	return nil
}
