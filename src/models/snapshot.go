package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveSnapshot persists a daily snapshot. The (user_id, date) key is unique
// and the insert is a full-row REPLACE: re-snapshotting a date overwrites
// the previous record including the breakdown JSON, so repeated captures
// never accumulate duplicate per-class entries.
func SaveSnapshot(db *sql.DB, snap PortfolioSnapshot) error {
	breakdown, err := json.Marshal(snap.Breakdown)
	if err != nil {
		return fmt.Errorf("marshalling snapshot breakdown: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO portfolio_snapshots
			(user_id, date, total_value_idr, total_value_usd,
			 total_invested_idr, total_gain_idr, exchange_rate,
			 breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.Exec(query, snap.UserID, snap.Date, snap.TotalValueIDR,
		snap.TotalValueUSD, snap.TotalInvestedIDR, snap.TotalGainIDR,
		snap.ExchangeRate, string(breakdown), snap.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving snapshot for user %d on %s: %w", snap.UserID, snap.Date, err)
	}
	return nil
}

// GetSnapshot retrieves the snapshot for a user on one date. Returns
// sql.ErrNoRows when no snapshot was taken that day.
func GetSnapshot(db *sql.DB, userID int64, date string) (PortfolioSnapshot, error) {
	var snap PortfolioSnapshot
	var breakdown string
	var createdAt string

	query := `
		SELECT user_id, date, total_value_idr, total_value_usd,
		       total_invested_idr, total_gain_idr, exchange_rate,
		       breakdown, created_at
		FROM portfolio_snapshots
		WHERE user_id = ? AND date = ?`

	err := db.QueryRow(query, userID, date).Scan(
		&snap.UserID,
		&snap.Date,
		&snap.TotalValueIDR,
		&snap.TotalValueUSD,
		&snap.TotalInvestedIDR,
		&snap.TotalGainIDR,
		&snap.ExchangeRate,
		&breakdown,
		&createdAt,
	)
	if err != nil {
		return snap, err
	}

	if err := json.Unmarshal([]byte(breakdown), &snap.Breakdown); err != nil {
		return snap, fmt.Errorf("unmarshalling snapshot breakdown: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		snap.CreatedAt = t
	}
	return snap, nil
}

// CountSnapshots returns how many snapshot rows exist for a user.
func CountSnapshots(db *sql.DB, userID int64) (int, error) {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM portfolio_snapshots WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
