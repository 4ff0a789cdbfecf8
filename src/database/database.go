package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/hartafolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const createTableStatement = `
	CREATE TABLE IF NOT EXISTS holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		instrument_id TEXT NOT NULL,
		asset_class TEXT NOT NULL,
		market TEXT,
		quantity REAL NOT NULL,
		avg_cost REAL NOT NULL DEFAULT 0,
		last_value_idr REAL NOT NULL DEFAULT 0,
		last_value_usd REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		total_value_idr REAL NOT NULL DEFAULT 0,
		total_value_usd REAL NOT NULL DEFAULT 0,
		total_invested_idr REAL NOT NULL DEFAULT 0,
		total_gain_idr REAL NOT NULL DEFAULT 0,
		exchange_rate REAL NOT NULL DEFAULT 0,
		breakdown TEXT NOT NULL DEFAULT '[]',
		created_at TEXT,
		PRIMARY KEY (user_id, date)
	);
	`

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateHoldingsTable()

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// InitTestDB opens an in-memory database with the same schema, for tests.
// It does not touch the global DB.
func InitTestDB() *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		stdlog.Fatalf("failed to open in-memory database: %v", err)
	}
	if _, err := db.Exec(createTableStatement); err != nil {
		stdlog.Fatalf("failed to create test tables: %v", err)
	}
	return db
}

func migrateHoldingsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='holdings'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'holdings' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'holdings' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'holdings' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'holdings' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(holdings)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'holdings'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'holdings': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'holdings'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'holdings': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'holdings'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'holdings': %v", err)
		}
		return
	}

	// Stored valuation columns arrived after the initial schema; older
	// databases get them on first start.
	if _, ok := columnExists["last_value_idr"]; !ok {
		_, err := DB.Exec("ALTER TABLE holdings ADD COLUMN last_value_idr REAL NOT NULL DEFAULT 0")
		if err != nil {
			logger.L.Error("Error adding 'last_value_idr' column to 'holdings' table", "error", err)
		} else {
			logger.L.Info("Added 'last_value_idr' column to 'holdings' table")
		}
	}
	if _, ok := columnExists["last_value_usd"]; !ok {
		_, err := DB.Exec("ALTER TABLE holdings ADD COLUMN last_value_usd REAL NOT NULL DEFAULT 0")
		if err != nil {
			logger.L.Error("Error adding 'last_value_usd' column to 'holdings' table", "error", err)
		} else {
			logger.L.Info("Added 'last_value_usd' column to 'holdings' table")
		}
	}
	if _, ok := columnExists["market"]; !ok {
		_, err := DB.Exec("ALTER TABLE holdings ADD COLUMN market TEXT")
		if err != nil {
			logger.L.Error("Error adding 'market' column to 'holdings' table", "error", err)
		} else {
			logger.L.Info("Added 'market' column to 'holdings' table")
		}
	}
}
