// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"meal-diary/internal/models"
)

// timeLayout keeps fixed-width fractions so stored stamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

// SQLiteStorage is the authoritative record store. Entries keep per-unit rates;
// absolute macros are rate × quantity.
type SQLiteStorage struct {
	db            *sql.DB
	defaultTarget models.DailyTarget
}

func NewSQLiteStorage(dbPath string, defaultTarget models.DailyTarget) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, defaultTarget: defaultTarget}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS entries (
        id TEXT PRIMARY KEY,
        day TEXT NOT NULL,
        meal_slot TEXT NOT NULL,
        food_name TEXT NOT NULL,
        unit TEXT NOT NULL,
        quantity REAL NOT NULL,
        kcal_rate REAL NOT NULL,
        protein_rate REAL NOT NULL,
        carbs_rate REAL NOT NULL,
        fats_rate REAL NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS daily_targets (
        day TEXT PRIMARY KEY,
        kcal REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fats REAL NOT NULL
    );

    CREATE TABLE IF NOT EXISTS slot_targets (
        day TEXT NOT NULL,
        meal_slot TEXT NOT NULL,
        kcal REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fats REAL NOT NULL,
        PRIMARY KEY (day, meal_slot)
    );

    CREATE INDEX IF NOT EXISTS idx_entries_day ON entries(day);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const entryColumns = `id, day, meal_slot, food_name, unit, quantity,
        kcal_rate, protein_rate, carbs_rate, fats_rate, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (models.DiaryEntry, error) {
	var (
		e         models.DiaryEntry
		rate      models.MacroSnapshot
		updatedAt string
	)
	err := row.Scan(&e.ID, &e.Date, &e.MealSlot, &e.FoodName, &e.Unit, &e.Quantity,
		&rate.Kcal, &rate.Protein, &rate.Carbs, &rate.Fats, &updatedAt)
	if err != nil {
		return e, err
	}
	e.Absolute = rate.Scale(e.Quantity)
	if e.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return e, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return e, nil
}

func validQuantity(q float64) bool {
	return q > 0 && !math.IsInf(q, 0)
}

// SaveEntry records a portion. Macros are absolute for the given quantity and are
// stored as per-unit rates.
func (s *SQLiteStorage) SaveEntry(ctx context.Context, in models.NewEntry) (models.DiaryEntry, error) {
	if in.Date == "" || in.MealSlot == "" {
		return models.DiaryEntry{}, fmt.Errorf("%w: date and meal slot are required", ErrInvalid)
	}
	if !validQuantity(in.Quantity) {
		return models.DiaryEntry{}, fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalid, in.Quantity)
	}
	if !in.Macros.Valid() {
		return models.DiaryEntry{}, fmt.Errorf("%w: macros must be finite", ErrInvalid)
	}
	if in.Unit == "" {
		in.Unit = models.UnitMass
	}

	id := uuid.New().String()
	rate := in.Macros.Clamped().Scale(1 / in.Quantity)

	query := `
        INSERT INTO entries (id, day, meal_slot, food_name, unit, quantity,
            kcal_rate, protein_rate, carbs_rate, fats_rate, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	stamp := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, query,
		id, in.Date, string(in.MealSlot), in.FoodName, string(in.Unit), in.Quantity,
		rate.Kcal, rate.Protein, rate.Carbs, rate.Fats, stamp, stamp)
	if err != nil {
		return models.DiaryEntry{}, fmt.Errorf("failed to insert entry: %w", err)
	}

	// read back so the caller sees the row exactly as later lists will
	return s.GetEntry(ctx, id)
}

// GetEntry loads one entry with its absolute snapshot computed from the stored rates.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (models.DiaryEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return e, fmt.Errorf("failed to load entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the day's entries in the order they were logged.
func (s *SQLiteStorage) ListEntries(ctx context.Context, day string) ([]models.DiaryEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE day = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []models.DiaryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// UpdateEntryQuantity rescales an entry and returns its authoritative state.
func (s *SQLiteStorage) UpdateEntryQuantity(ctx context.Context, id string, quantity float64) (*models.EntryUpdate, error) {
	if !validQuantity(quantity) {
		return nil, fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalid, quantity)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE entries SET quantity = ?, updated_at = ? WHERE id = ?`,
		quantity, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}

	e, err := scanEntry(tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reload entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return &models.EntryUpdate{
		ID:       e.ID,
		Quantity: e.Quantity,
		Absolute: e.Absolute,
		MealSlot: e.MealSlot,
		Unit:     e.Unit,
	}, nil
}

func (s *SQLiteStorage) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// DailyAggregate sums every entry of the day.
func (s *SQLiteStorage) DailyAggregate(ctx context.Context, day string) (models.MacroSnapshot, error) {
	query := `
        SELECT COALESCE(SUM(kcal_rate * quantity), 0),
               COALESCE(SUM(protein_rate * quantity), 0),
               COALESCE(SUM(carbs_rate * quantity), 0),
               COALESCE(SUM(fats_rate * quantity), 0)
        FROM entries
        WHERE day = ?
    `
	var agg models.MacroSnapshot
	err := s.db.QueryRowContext(ctx, query, day).Scan(&agg.Kcal, &agg.Protein, &agg.Carbs, &agg.Fats)
	if err != nil {
		return agg, fmt.Errorf("failed to aggregate day: %w", err)
	}
	return agg, nil
}

// SlotTotals sums the day's entries per meal slot.
func (s *SQLiteStorage) SlotTotals(ctx context.Context, day string) (models.SlotTargets, error) {
	query := `
        SELECT meal_slot,
               SUM(kcal_rate * quantity), SUM(protein_rate * quantity),
               SUM(carbs_rate * quantity), SUM(fats_rate * quantity)
        FROM entries
        WHERE day = ?
        GROUP BY meal_slot
    `
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot totals: %w", err)
	}
	defer rows.Close()

	return scanSlotSnapshots(rows)
}

func scanSlotSnapshots(rows *sql.Rows) (models.SlotTargets, error) {
	out := models.SlotTargets{}
	for rows.Next() {
		var (
			slot string
			snap models.MacroSnapshot
		)
		if err := rows.Scan(&slot, &snap.Kcal, &snap.Protein, &snap.Carbs, &snap.Fats); err != nil {
			return nil, fmt.Errorf("failed to scan slot row: %w", err)
		}
		out[models.MealSlot(slot)] = snap
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) SetDailyTarget(ctx context.Context, day string, t models.DailyTarget) error {
	if !t.Valid() || t != t.Clamped() {
		return fmt.Errorf("%w: target must be non-negative", ErrInvalid)
	}
	query := `
        INSERT INTO daily_targets (day, kcal, protein, carbs, fats)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(day) DO UPDATE SET
            kcal = excluded.kcal, protein = excluded.protein,
            carbs = excluded.carbs, fats = excluded.fats
    `
	if _, err := s.db.ExecContext(ctx, query, day, t.Kcal, t.Protein, t.Carbs, t.Fats); err != nil {
		return fmt.Errorf("failed to save daily target: %w", err)
	}
	return nil
}

// DailyTarget returns the day's goal, or the configured default when none is set.
func (s *SQLiteStorage) DailyTarget(ctx context.Context, day string) (models.DailyTarget, error) {
	var t models.DailyTarget
	err := s.db.QueryRowContext(ctx,
		`SELECT kcal, protein, carbs, fats FROM daily_targets WHERE day = ?`, day,
	).Scan(&t.Kcal, &t.Protein, &t.Carbs, &t.Fats)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultTarget, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to load daily target: %w", err)
	}
	return t, nil
}

// SetSlotTarget stores a dynamic per-slot target that overrides the weight split.
func (s *SQLiteStorage) SetSlotTarget(ctx context.Context, day string, slot models.MealSlot, t models.MacroSnapshot) error {
	if slot == "" {
		return fmt.Errorf("%w: meal slot is required", ErrInvalid)
	}
	if !t.Valid() || t != t.Clamped() {
		return fmt.Errorf("%w: target must be non-negative", ErrInvalid)
	}
	query := `
        INSERT INTO slot_targets (day, meal_slot, kcal, protein, carbs, fats)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(day, meal_slot) DO UPDATE SET
            kcal = excluded.kcal, protein = excluded.protein,
            carbs = excluded.carbs, fats = excluded.fats
    `
	if _, err := s.db.ExecContext(ctx, query, day, string(slot), t.Kcal, t.Protein, t.Carbs, t.Fats); err != nil {
		return fmt.Errorf("failed to save slot target: %w", err)
	}
	return nil
}

// SlotTargets returns the day's dynamic slot targets; empty when none are set.
func (s *SQLiteStorage) SlotTargets(ctx context.Context, day string) (models.SlotTargets, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT meal_slot, kcal, protein, carbs, fats FROM slot_targets WHERE day = ?`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot targets: %w", err)
	}
	defer rows.Close()

	return scanSlotSnapshots(rows)
}

// ClearSlotTargets removes the day's dynamic slot targets.
func (s *SQLiteStorage) ClearSlotTargets(ctx context.Context, day string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slot_targets WHERE day = ?`, day); err != nil {
		return fmt.Errorf("failed to clear slot targets: %w", err)
	}
	return nil
}
