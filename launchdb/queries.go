package launchdb

import (
	"context"
	"time"

	"github.com/lib/pq"
)

const launchColumns = `id, mint, creator, plan, name, symbol, metadata_uri, status, signature, error_kind, registered, last_valid_block_height, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLaunch(row rowScanner) (Launch, error) {
	var i Launch
	err := row.Scan(
		&i.ID,
		&i.Mint,
		&i.Creator,
		&i.Plan,
		&i.Name,
		&i.Symbol,
		&i.MetadataUri,
		&i.Status,
		&i.Signature,
		&i.ErrorKind,
		&i.Registered,
		&i.LastValidBlockHeight,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertLaunch = `
INSERT INTO launches (
    id, mint, creator, plan, name, symbol, metadata_uri, status, last_valid_block_height, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10
)
`

type InsertLaunchParams struct {
	ID                   string
	Mint                 string
	Creator              string
	Plan                 string
	Name                 string
	Symbol               string
	MetadataUri          string
	Status               LaunchStatus
	LastValidBlockHeight int64
	CreatedAt            time.Time
}

func (q *Queries) InsertLaunch(ctx context.Context, arg InsertLaunchParams) error {
	_, err := q.db.ExecContext(ctx, insertLaunch,
		arg.ID,
		arg.Mint,
		arg.Creator,
		arg.Plan,
		arg.Name,
		arg.Symbol,
		arg.MetadataUri,
		arg.Status,
		arg.LastValidBlockHeight,
		arg.CreatedAt,
	)
	return err
}

const updateSubmitted = `
UPDATE launches SET status = $2, signature = $3, updated_at = $4 WHERE mint = $1
`

type UpdateSubmittedParams struct {
	Mint      string
	Status    LaunchStatus
	Signature string
	UpdatedAt time.Time
}

func (q *Queries) UpdateSubmitted(ctx context.Context, arg UpdateSubmittedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSubmitted, arg.Mint, arg.Status, arg.Signature, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateStatus = `
UPDATE launches SET status = $2, error_kind = $3, updated_at = $4 WHERE mint = $1
`

type UpdateStatusParams struct {
	Mint      string
	Status    LaunchStatus
	ErrorKind string
	UpdatedAt time.Time
}

func (q *Queries) UpdateStatus(ctx context.Context, arg UpdateStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateStatus, arg.Mint, arg.Status, arg.ErrorKind, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateRegistered = `
UPDATE launches SET registered = TRUE, updated_at = $2 WHERE mint = $1 AND NOT registered
`

// UpdateRegistered returns 0 if the launch is unknown or already registered.
func (q *Queries) UpdateRegistered(ctx context.Context, mint string, updatedAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRegistered, mint, updatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const selectLaunch = `
SELECT ` + launchColumns + ` FROM launches WHERE mint = $1
`

func (q *Queries) SelectLaunch(ctx context.Context, mint string) (Launch, error) {
	row := q.db.QueryRowContext(ctx, selectLaunch, mint)
	return scanLaunch(row)
}

const selectHistory = `
SELECT ` + launchColumns + ` FROM launches WHERE creator = $1 ORDER BY created_at DESC LIMIT $2
`

func (q *Queries) SelectHistory(ctx context.Context, creator string, limit int32) ([]Launch, error) {
	return q.selectLaunches(ctx, selectHistory, creator, limit)
}

const selectByStatus = `
SELECT ` + launchColumns + ` FROM launches WHERE status = ANY($1::launch_status[]) ORDER BY created_at
`

func (q *Queries) SelectByStatus(ctx context.Context, statuses []string) ([]Launch, error) {
	return q.selectLaunches(ctx, selectByStatus, pq.Array(statuses))
}

func (q *Queries) selectLaunches(ctx context.Context, query string, args ...interface{}) ([]Launch, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Launch
	for rows.Next() {
		i, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
