package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mantrailing/cardservice/internal/models"
)

const (
	customerColumns    = "id, first_name, last_name, email, phone, dog_name, balance, total_transactions, level, training_progress, created_at, updated_at"
	transactionColumns = "id, customer_id, type, description, amount, balance_before, balance_after, session, employee, created_at"

	defaultPageSize = 50
	maxPageSize     = 200
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (models.Customer, error) {
	var c models.Customer
	var level string
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.DogName,
		&c.Balance, &c.TotalTransactions, &level, &c.TrainingProgress, &c.CreatedAt, &c.UpdatedAt)
	c.Level = models.Level(level)
	return c, err
}

// getCustomer loads one customer. With forUpdate the row stays locked until
// the surrounding transaction ends.
func getCustomer(ctx context.Context, q queryer, id string, forUpdate bool) (models.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	c, err := scanCustomer(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("load customer %s: %w", id, err)
	}
	return c, nil
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var t models.Transaction
	var txType string
	err := row.Scan(&t.ID, &t.CustomerID, &txType, &t.Description, &t.Amount,
		&t.BalanceBefore, &t.BalanceAfter, &t.Session, &t.Employee, &t.CreatedAt)
	t.Type = models.TransactionType(txType)
	return t, err
}

// recentTransactions lists transactions newest first. An empty customerID
// lists across all customers.
func recentTransactions(ctx context.Context, q queryer, customerID string, limit, offset int) ([]models.Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if customerID == "" {
		rows, err = q.QueryContext(ctx,
			"SELECT "+transactionColumns+" FROM transactions ORDER BY created_at DESC, id LIMIT $1 OFFSET $2",
			limit, offset)
	} else {
		rows, err = q.QueryContext(ctx,
			"SELECT "+transactionColumns+" FROM transactions WHERE customer_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3",
			customerID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// pagination reads limit and offset query parameters, clamping limit to
// maxPageSize.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
