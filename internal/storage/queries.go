package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// EntryRow mirrors one row of the entries table.
type EntryRow struct {
	LedgerID    string
	ID          int64
	Category    string
	Description string
	Amount      string
}

const insertEntry = `
INSERT INTO entries (ledger_id, id, category, description, amount)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertEntry(ctx context.Context, arg EntryRow) error {
	_, err := q.db.ExecContext(ctx, insertEntry,
		arg.LedgerID, arg.ID, arg.Category, arg.Description, arg.Amount)
	return err
}

const deleteEntry = `
DELETE FROM entries WHERE ledger_id = ? AND category = ? AND id = ?`

func (q *Queries) DeleteEntry(ctx context.Context, ledgerID, category string, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEntry, ledgerID, category, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listEntries = `
SELECT ledger_id, id, category, description, amount
FROM entries
WHERE ledger_id = ? AND category = ?
ORDER BY seq`

func (q *Queries) ListEntries(ctx context.Context, ledgerID, category string) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntries, ledgerID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []EntryRow
	for rows.Next() {
		var i EntryRow
		if err := rows.Scan(&i.LedgerID, &i.ID, &i.Category, &i.Description, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteLedger = `DELETE FROM entries WHERE ledger_id = ?`

func (q *Queries) DeleteLedger(ctx context.Context, ledgerID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLedger, ledgerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countLedgers = `SELECT COUNT(DISTINCT ledger_id) FROM entries`

func (q *Queries) CountLedgers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countLedgers).Scan(&n)
	return n, err
}
