package launchdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gitlab.com/atechtools/token-launcher/common"
)

//go:embed schema.sql
var schemaSql string

var creations = regexp.MustCompile(`CREATE[^;]+;`).FindAllString(schemaSql, -1)

func creationSql(name string) string {
	hits := make([]string, 0, 1)
	for _, c := range creations {
		if strings.Contains(c, " "+name+" ") {
			hits = append(hits, c)
		}
	}
	if len(hits) != 1 {
		panic(fmt.Sprintf("expect exactly one hit for %s, got %d: %v", name, len(hits), hits))
	}
	return hits[0]
}

// ErrDuplicateLaunch is returned when a launch for the mint is already journaled.
var ErrDuplicateLaunch = errors.New("launch already exists")

const (
	dropLaunchesTable = `
DROP TABLE IF EXISTS launches
`
	dropLaunchStatusType = `
DROP TYPE IF EXISTS launch_status
`
)

var (
	createLaunchesTable = `
DO $$
BEGIN
       IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'launch_status') THEN
               CREATE TYPE launch_status AS ENUM ('prepared', 'submitted', 'confirmed', 'failed', 'timed_out');
       END IF;
END$$;

` + creationSql("launches")
	createLaunchesCreatorIndex = creationSql("launches_creator_idx")
)

var dropSchemas = []struct {
	query       string
	description string
}{
	{dropLaunchesTable, "drop launches table"},
	{dropLaunchStatusType, "drop launch_status type"},
}

var createSchemas = []struct {
	query       string
	description string
}{
	{createLaunchesTable, "create launches table"},
	{createLaunchesCreatorIndex, "create launches creator index"},
}

func handleErrorWithRollback(err error, tx *sql.Tx) error {
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		return rollbackErr
	}
	return err
}

func statusToSql(s common.LaunchStatus) LaunchStatus {
	return LaunchStatus(s.String())
}

func launchFromSql(l Launch) (common.LaunchRecord, error) {
	mint, err := common.SolanaAddressFromString(l.Mint)
	if err != nil {
		return common.LaunchRecord{}, fmt.Errorf("mint %q: %w", l.Mint, err)
	}
	creator, err := common.SolanaAddressFromString(l.Creator)
	if err != nil {
		return common.LaunchRecord{}, fmt.Errorf("creator %q: %w", l.Creator, err)
	}
	tier, err := common.ParseTier(l.Plan)
	if err != nil {
		return common.LaunchRecord{}, fmt.Errorf("launch %s: %w", l.Mint, err)
	}
	status, err := common.ParseLaunchStatus(string(l.Status))
	if err != nil {
		return common.LaunchRecord{}, fmt.Errorf("launch %s: %w", l.Mint, err)
	}
	return common.LaunchRecord{
		ID:                   l.ID,
		Mint:                 mint,
		Creator:              creator,
		Tier:                 tier,
		Name:                 l.Name,
		Symbol:               l.Symbol,
		MetadataURI:          l.MetadataUri,
		Status:               status,
		Signature:            l.Signature,
		ErrorKind:            l.ErrorKind,
		Registered:           l.Registered,
		CreatedAt:            timeFromSql(l.CreatedAt),
		UpdatedAt:            timeFromSql(l.UpdatedAt),
		LastValidBlockHeight: uint64(l.LastValidBlockHeight),
	}, nil
}

func launchesFromSql(rows []Launch) ([]common.LaunchRecord, error) {
	records := make([]common.LaunchRecord, 0, len(rows))
	for _, row := range rows {
		record, err := launchFromSql(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// LaunchDB is the Postgres launch ledger.
type LaunchDB struct {
	db *sql.DB

	timeNow func() time.Time
}

func NewDB(db *sql.DB) (*LaunchDB, error) {
	ldb := &LaunchDB{db: db, timeNow: time.Now}
	if err := ldb.CreateSchemas(); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return ldb, nil
}

func (ldb *LaunchDB) Close() error {
	return ldb.db.Close()
}

func (ldb *LaunchDB) CreateSchemas() error {
	return ldb.runSchemas("CreateSchemas", createSchemas, "")
}

func (ldb *LaunchDB) DropSchemas(cascade bool) error {
	suffix := ""
	if cascade {
		suffix = " CASCADE"
	}
	return ldb.runSchemas("DropSchemas", dropSchemas, suffix)
}

func (ldb *LaunchDB) runSchemas(name string, schemas []struct {
	query       string
	description string
}, suffix string) error {
	lid := uuid.NewString()
	log.Printf("LaunchDB: %s started (%s)", name, lid)
	defer log.Printf("LaunchDB: %s exited (%s)", name, lid)
	tx, err := ldb.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, s := range schemas {
		if _, err := tx.Exec(s.query + suffix); err != nil {
			return handleErrorWithRollback(fmt.Errorf("failed to %s: %w", s.description, err), tx)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (ldb *LaunchDB) createDBObjects(ctx context.Context) (*sql.Tx, *Queries, error) {
	tx, err := ldb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	lq := New(ldb.db).WithTx(tx)
	return tx, lq, nil
}

type ldbMethod func(ctx context.Context, lq *Queries) error

type txCommitError struct {
	msg string
}

func (txErr txCommitError) Error() string {
	return txErr.msg
}

func (ldb *LaunchDB) runRetryableTransaction(ctx context.Context, fn ldbMethod) error {
	return retry.Do(
		func() error {
			tx, lq, err := ldb.createDBObjects(ctx)
			if err != nil {
				return fmt.Errorf("failed to create db objects: %w", err)
			}
			if err := fn(ctx, lq); err != nil {
				return handleErrorWithRollback(err, tx)
			}
			if err := tx.Commit(); err != nil {
				return txCommitError{msg: err.Error()}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.As(err, &txCommitError{}) {
				return true
			}
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "serialization_failure" {
				return true
			}
			return false
		}),
	)
}

func expectOneRow(affected int64, mint common.SolanaAddress) error {
	if affected == 0 {
		return fmt.Errorf("launch %s: %w", mint, common.ErrNotExists)
	}
	return nil
}

// InsertLaunch journals a prepared launch. The record ID is generated when empty.
func (ldb *LaunchDB) InsertLaunch(ctx context.Context, record common.LaunchRecord) (common.LaunchRecord, error) {
	lid := uuid.NewString()
	log.Printf("LaunchDB: InsertLaunch started (%s)", lid)
	defer log.Printf("LaunchDB: InsertLaunch exited (%s)", lid)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := ldb.timeNow().UTC().Truncate(time.Microsecond)
	record.CreatedAt, record.UpdatedAt = now, now
	err := ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		err := lq.InsertLaunch(innerCtx, InsertLaunchParams{
			ID:                   record.ID,
			Mint:                 record.Mint.String(),
			Creator:              record.Creator.String(),
			Plan:                 record.Tier.String(),
			Name:                 record.Name,
			Symbol:               record.Symbol,
			MetadataUri:          record.MetadataURI,
			Status:               statusToSql(record.Status),
			LastValidBlockHeight: int64(record.LastValidBlockHeight),
			CreatedAt:            now,
		})
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: %s", ErrDuplicateLaunch, record.Mint)
		}
		return err
	})
	if err != nil {
		return common.LaunchRecord{}, err
	}
	return record, nil
}

func (ldb *LaunchDB) MarkSubmitted(ctx context.Context, mint common.SolanaAddress, signature string) error {
	lid := uuid.NewString()
	log.Printf("LaunchDB: MarkSubmitted started (%s)", lid)
	defer log.Printf("LaunchDB: MarkSubmitted exited (%s)", lid)
	return ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		affected, err := lq.UpdateSubmitted(innerCtx, UpdateSubmittedParams{
			Mint:      mint.String(),
			Status:    LaunchStatusSubmitted,
			Signature: signature,
			UpdatedAt: ldb.timeNow().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to update launch: %w", err)
		}
		return expectOneRow(affected, mint)
	})
}

func (ldb *LaunchDB) SetStatus(ctx context.Context, mint common.SolanaAddress, status common.LaunchStatus, errorKind string) error {
	lid := uuid.NewString()
	log.Printf("LaunchDB: SetStatus started (%s)", lid)
	defer log.Printf("LaunchDB: SetStatus exited (%s)", lid)
	return ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		affected, err := lq.UpdateStatus(innerCtx, UpdateStatusParams{
			Mint:      mint.String(),
			Status:    statusToSql(status),
			ErrorKind: errorKind,
			UpdatedAt: ldb.timeNow().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to update launch: %w", err)
		}
		return expectOneRow(affected, mint)
	})
}

// MarkRegistered flags the launch as reported to the registry. It returns
// false if an earlier call already did.
func (ldb *LaunchDB) MarkRegistered(ctx context.Context, mint common.SolanaAddress) (bool, error) {
	lid := uuid.NewString()
	log.Printf("LaunchDB: MarkRegistered started (%s)", lid)
	defer log.Printf("LaunchDB: MarkRegistered exited (%s)", lid)
	var marked bool
	err := ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		affected, err := lq.UpdateRegistered(innerCtx, mint.String(), ldb.timeNow().UTC())
		if err != nil {
			return fmt.Errorf("failed to update launch: %w", err)
		}
		marked = affected > 0
		return nil
	})
	return marked, err
}

func (ldb *LaunchDB) Launch(ctx context.Context, mint common.SolanaAddress) (common.LaunchRecord, error) {
	lid := uuid.NewString()
	log.Printf("LaunchDB: Launch started (%s)", lid)
	defer log.Printf("LaunchDB: Launch exited (%s)", lid)
	var record common.LaunchRecord
	err := ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		row, err := lq.SelectLaunch(innerCtx, mint.String())
		if err == sql.ErrNoRows {
			return fmt.Errorf("launch %s: %w", mint, common.ErrNotExists)
		} else if err != nil {
			return fmt.Errorf("failed to select launch: %w", err)
		}
		record, err = launchFromSql(row)
		return err
	})
	return record, err
}

// History returns the launches of creator, newest first.
func (ldb *LaunchDB) History(ctx context.Context, creator common.SolanaAddress, limit int) ([]common.LaunchRecord, error) {
	lid := uuid.NewString()
	log.Printf("LaunchDB: History started (%s)", lid)
	defer log.Printf("LaunchDB: History exited (%s)", lid)
	var records []common.LaunchRecord
	err := ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		rows, err := lq.SelectHistory(innerCtx, creator.String(), int32(limit))
		if err != nil {
			return fmt.Errorf("failed to select history: %w", err)
		}
		records, err = launchesFromSql(rows)
		return err
	})
	return records, err
}

// Pending returns the launches that were sent but whose outcome is unknown,
// oldest first.
func (ldb *LaunchDB) Pending(ctx context.Context) ([]common.LaunchRecord, error) {
	lid := uuid.NewString()
	log.Printf("LaunchDB: Pending started (%s)", lid)
	defer log.Printf("LaunchDB: Pending exited (%s)", lid)
	var records []common.LaunchRecord
	err := ldb.runRetryableTransaction(ctx, func(innerCtx context.Context, lq *Queries) error {
		rows, err := lq.SelectByStatus(innerCtx, []string{
			string(LaunchStatusSubmitted),
			string(LaunchStatusTimedOut),
		})
		if err != nil {
			return fmt.Errorf("failed to select pending launches: %w", err)
		}
		records, err = launchesFromSql(rows)
		return err
	})
	return records, err
}
