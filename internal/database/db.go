package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection with pooling and prepared statements.
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling.
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool configures pooling on the underlying connection.
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics.
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (or creates) the lead scoring database under dataDir.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "leadscore.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

// migrate creates the necessary tables.
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			company TEXT,
			industry TEXT,
			status TEXT NOT NULL DEFAULT 'new',
			source TEXT,
			lead_score REAL,
			has_budget INTEGER,
			has_authority INTEGER,
			has_need INTEGER,
			has_timeline INTEGER,
			last_contact_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			kind TEXT NOT NULL, -- 'email', 'call', 'meeting', 'note'
			subject TEXT,
			occurred_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (lead_id) REFERENCES leads(id)
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			due_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (lead_id) REFERENCES leads(id)
		)`,

		// Predictions are append-only: no update or delete paths exist.
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			model_version TEXT NOT NULL,
			probability REAL NOT NULL,
			expected_days INTEGER,
			factors TEXT NOT NULL,         -- JSON
			recommendations TEXT NOT NULL, -- JSON
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (lead_id) REFERENCES leads(id)
		)`,

		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			metrics TEXT NOT NULL,            -- JSON
			feature_importance TEXT NOT NULL, -- JSON, ordered
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS training_jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL, -- 'pending', 'running', 'completed', 'failed'
			progress INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			model_id TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ai_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			scoring_enabled INTEGER NOT NULL DEFAULT 1,
			recommendations_enabled INTEGER NOT NULL DEFAULT 1,
			auto_retrain INTEGER NOT NULL DEFAULT 0,
			active_model_id TEXT,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_occurred ON interactions(lead_id, occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_lead ON tasks(lead_id)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_lead ON predictions(lead_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_model ON predictions(model_id, model_version)`,
		`CREATE INDEX IF NOT EXISTS idx_models_active ON models(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_training_jobs_status ON training_jobs(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements.
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_prediction": `INSERT INTO predictions (
			id, lead_id, model_id, model_version, probability, expected_days,
			factors, recommendations, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"insert_interaction": `INSERT INTO interactions (id, lead_id, kind, subject, occurred_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,

		"get_lead": `SELECT id, name, company, industry, status, source, lead_score,
			has_budget, has_authority, has_need, has_timeline, last_contact_at,
			created_at, updated_at
			FROM leads WHERE id = ?`,

		"count_interactions": `SELECT kind, COUNT(*) FROM interactions WHERE lead_id = ? GROUP BY kind`,

		"task_stats": `SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM tasks WHERE lead_id = ?`,

		"get_predictions": `SELECT id, lead_id, model_id, model_version, probability, expected_days,
			factors, recommendations, confidence, created_at
			FROM predictions WHERE lead_id = ? ORDER BY created_at DESC LIMIT ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement by name.
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics.
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the prepared statements and the database connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
