// internal/diary/store.go
package diary

import (
	"context"
	"errors"
	"fmt"

	"meal-diary/internal/models"
)

var (
	// ErrInvalidQuantity rejects a quantity that is not a positive finite number.
	ErrInvalidQuantity = errors.New("quantity must be a positive number")

	// ErrRemote wraps any failure of a remote operation.
	ErrRemote = errors.New("remote operation failed")

	// ErrProtocol marks a success response missing the expected fields.
	ErrProtocol = errors.New("malformed remote response")

	ErrEntryNotFound = errors.New("entry not found")

	// ErrUnavailable is returned when the store does not offer an optional operation.
	ErrUnavailable = errors.New("operation not available")
)

// RecordStore is the remote record store the diary reconciles against.
type RecordStore interface {
	ListEntries(ctx context.Context, date string) ([]models.DiaryEntry, error)
	UpdateEntryQuantity(ctx context.Context, id string, quantity float64) (*models.EntryUpdate, error)
	DeleteEntry(ctx context.Context, id string) error
}

// AggregateSource is the optional authoritative daily aggregate.
type AggregateSource interface {
	FetchDailyAggregate(ctx context.Context, date string) (models.MacroSnapshot, error)
}

// TargetSource is the optional per-slot dynamic target override.
type TargetSource interface {
	FetchPerSlotDynamicTargets(ctx context.Context, date string) (models.SlotTargets, error)
}

// SlotTotalsSource is the optional authoritative per-slot aggregate. A slot missing
// from the result has no entries.
type SlotTotalsSource interface {
	FetchSlotTotals(ctx context.Context, date string) (models.SlotTargets, error)
}

// GoalSource is the optional per-day daily target. Without one the configured
// default applies.
type GoalSource interface {
	FetchDailyTarget(ctx context.Context, date string) (models.DailyTarget, error)
}

// CheckUpdate verifies that an update response carries the authoritative state.
func CheckUpdate(u *models.EntryUpdate) error {
	switch {
	case u == nil:
		return fmt.Errorf("%w: empty update", ErrProtocol)
	case !(u.Quantity > 0):
		return fmt.Errorf("%w: quantity %v", ErrProtocol, u.Quantity)
	case !u.Absolute.Valid():
		return fmt.Errorf("%w: absolute snapshot %+v", ErrProtocol, u.Absolute)
	case u.MealSlot == "":
		return fmt.Errorf("%w: missing meal slot", ErrProtocol)
	case u.Unit == "":
		return fmt.Errorf("%w: missing unit", ErrProtocol)
	}
	return nil
}
