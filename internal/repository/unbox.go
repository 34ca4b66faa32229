package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const unboxColumns = `id, case_id, case_name, case_image, item_id, item_name, rarity, phase, item_image, unboxer_id, unboxed_at`

// insertColumns is the column order used by InsertBatch.
var insertColumns = []string{
	"case_id", "case_name", "case_image",
	"item_id", "item_name", "rarity", "phase", "item_image",
	"unboxer_id",
}

type UnboxRepository struct {
	pool *pgxpool.Pool
}

func NewUnboxRepository(pool *pgxpool.Pool) *UnboxRepository {
	return &UnboxRepository{pool: pool}
}

// Insert stores one event and returns it with the generated id and time.
func (r *UnboxRepository) Insert(ctx context.Context, e model.UnboxEvent) (*model.UnboxEvent, error) {
	stmt := `
		INSERT INTO unboxes (case_id, case_name, case_image, item_id, item_name, rarity, phase, item_image, unboxer_id)
		VALUES (@case_id, @case_name, @case_image, @item_id, @item_name, @rarity, @phase, @item_image, @unboxer_id)
		RETURNING ` + unboxColumns

	rows, err := r.pool.Query(ctx, stmt, pgx.NamedArgs{
		"case_id":    e.CaseID,
		"case_name":  e.CaseName,
		"case_image": e.CaseImage,
		"item_id":    e.ItemID,
		"item_name":  e.ItemName,
		"rarity":     e.Rarity,
		"phase":      e.Phase,
		"item_image": e.ItemImage,
		"unboxer_id": e.UnboxerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute insert unbox query for case_id=%s item_id=%s: %w", e.CaseID, e.ItemID, err)
	}

	inserted, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.UnboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to collect row from table:unboxes for case_id=%s item_id=%s: %w", e.CaseID, e.ItemID, err)
	}

	return inserted, nil
}

// InsertBatch stores every event with one COPY. It writes all rows or none.
func (r *UnboxRepository) InsertBatch(ctx context.Context, events []model.UnboxEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	n, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"unboxes"},
		insertColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{
				e.CaseID, e.CaseName, e.CaseImage,
				e.ItemID, e.ItemName, e.Rarity, e.Phase, e.ItemImage,
				e.UnboxerID,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy %d unboxes: %w", len(events), err)
	}

	return n, nil
}

// List returns up to limit of the most recent events matching f, newest first.
func (r *UnboxRepository) List(ctx context.Context, f model.UnboxFilter, limit int) ([]model.UnboxEvent, error) {
	where, args := buildFilter(f)
	args["limit"] = limit

	stmt := `SELECT ` + unboxColumns + ` FROM unboxes` + where + ` ORDER BY id DESC LIMIT @limit`

	rows, err := r.pool.Query(ctx, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("failed to execute list unboxes query: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.UnboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to collect rows from table:unboxes: %w", err)
	}

	return events, nil
}

// Count returns the number of events matching f.
//
// Without a filter it returns MAX(id), which is cheap on a large table but
// only an upper bound: sequence gaps from rolled back inserts are counted.
// The result says which of the two it is.
func (r *UnboxRepository) Count(ctx context.Context, f model.UnboxFilter) (model.UnboxCount, error) {
	if f.IsZero() {
		var total int64
		err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM unboxes`).Scan(&total)
		if err != nil {
			return model.UnboxCount{}, fmt.Errorf("failed to read max unbox id: %w", err)
		}
		return model.UnboxCount{Total: total, Exact: false}, nil
	}

	where, args := buildFilter(f)

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM unboxes`+where, args).Scan(&total)
	if err != nil {
		return model.UnboxCount{}, fmt.Errorf("failed to count unboxes: %w", err)
	}

	return model.UnboxCount{Total: total, Exact: true}, nil
}

// buildFilter returns the WHERE clause (with leading space, or empty) and
// its named arguments. Conditions are combined with AND.
func buildFilter(f model.UnboxFilter) (string, pgx.NamedArgs) {
	var conditions []string
	args := pgx.NamedArgs{}

	if f.OnlyCoverts {
		conditions = append(conditions, "rarity = ANY(@rarities)")
		args["rarities"] = model.HighRarities
	}

	if f.OnlyPersonal {
		conditions = append(conditions, "unboxer_id = @unboxer_id")
		args["unboxer_id"] = f.UnboxerID
	}

	if len(conditions) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}
