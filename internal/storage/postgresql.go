// Package storage provides primitives for connecting to and interacting with data storage systems.
// It defines the Ledger interface along with a PostgreSQL implementation that records confirmed
// sales and reports the register balance, and an in-memory implementation for running without
// a database.
package storage

import (
	"context"
	"errors"
	"time"

	"store_sim/internal/pkg/logger"

	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	recordSaleQuery = `INSERT INTO content.sales (customer_id, amount) VALUES ($1, $2);`
	balanceQuery    = `SELECT COALESCE(SUM(amount), 0) FROM content.sales;`
)

// ErrDuplicateSale indicates that a sale was already recorded for the customer.
// The PostgreSQL implementation reports the same condition as a unique-violation
// PgError instead.
var ErrDuplicateSale = errors.New("storage: sale already recorded for customer")

// Ledger defines the methods required to account for confirmed payments.
type Ledger interface {
	// Close closes the underlying connection, if any.
	Close()

	// RecordSale books the confirmed payment of one customer.
	RecordSale(ctx context.Context, customerID string, amount float64) error

	// Balance returns the total of all recorded sales.
	Balance(ctx context.Context) (float64, error)
}

// PostgreSQL implements the Ledger interface using a PostgreSQL database.
type PostgreSQL struct {
	db  *sql.DB        // Connection to the database.
	log *logger.Logger // Logger for recording events and errors.
}

// NewPostgreSQL creates a new PostgreSQL instance with the provided connection string and logger.
// It opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sql.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		return &PostgreSQL{db: db, log: l}, err
	}

	return &PostgreSQL{db: db, log: l}, nil
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

// RecordSale inserts the confirmed sale. The sales table carries a unique
// constraint on customer_id, so paying the same customer twice surfaces as a
// unique-violation error for the caller to map.
func (postgresql *PostgreSQL) RecordSale(ctx context.Context, customerID string, amount float64) error {
	_, err := postgresql.db.ExecContext(ctx, recordSaleQuery, customerID, amount)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query recordSaleQuery: %s", err)
		return err
	}
	return nil
}

// Balance sums all recorded sales.
func (postgresql *PostgreSQL) Balance(ctx context.Context) (float64, error) {
	var balance float64
	err := postgresql.db.QueryRowContext(ctx, balanceQuery).Scan(&balance)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query balanceQuery: %s", err)
		return 0, err
	}
	return balance, nil
}
