// internal/mutator/edit.go
package mutator

import (
	"context"
	"errors"
	"fmt"

	"meal-diary/internal/diary"
	"meal-diary/internal/events"
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

// Edit applies a free-form quantity. The display is rescaled at once from the cached
// per-unit rates; the commit waits for the debounce window to close.
func (m *Mutator) Edit(id string, quantity float64) error {
	if err := validate(quantity); err != nil {
		return err
	}

	m.mu.Lock()
	st, err := m.lookupLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	ev := m.optimisticLocked(st, quantity)
	m.armTimerLocked(id, st)
	m.mu.Unlock()

	m.log.Debug().Str("entry_id", id).Float64("quantity", quantity).Msg("Edit debounced")
	m.bus.Emit(ev)
	return nil
}

// EditText parses raw input and applies it as a free-form edit.
func (m *Mutator) EditText(id, raw string) error {
	q, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	return m.Edit(id, q)
}

// Step moves the displayed quantity by one stepper click. Clicks commit immediately
// unless a commit for the entry is already in flight, in which case the value is
// queued behind it.
func (m *Mutator) Step(id string, dir Direction, mod Modifier) error {
	m.mu.Lock()
	st, err := m.lookupLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	size := StepSize(st.display.Unit, mod)
	next := st.display.Quantity + size
	if dir == Down {
		next = st.display.Quantity - size
	}
	if err := validate(next); err != nil {
		m.mu.Unlock()
		return err
	}

	ev := m.optimisticLocked(st, next)
	if st.inFlight {
		m.armTimerLocked(id, st)
		m.mu.Unlock()
		m.log.Debug().Str("entry_id", id).Float64("quantity", next).Msg("Step queued behind in-flight commit")
		m.bus.Emit(ev)
		return nil
	}
	m.stopTimerLocked(st)
	st.hasPending = false
	m.startCommitLocked(id, st, next)
	m.mu.Unlock()

	m.bus.Emit(ev)
	return nil
}

// Submit closes the debounce window early and commits the pending value.
func (m *Mutator) Submit(id string) error {
	m.mu.Lock()
	st, err := m.lookupLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if st.inFlight || !st.hasPending {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked(st)
	m.flushLocked(id, st)
	m.mu.Unlock()
	return nil
}

// Cancel discards the in-progress edit and restores the last confirmed state. An
// already dispatched commit is not aborted: its outcome is recorded as the confirmed
// state but the display keeps the restored value until the next resync.
func (m *Mutator) Cancel(id string) error {
	m.mu.Lock()
	st, err := m.lookupLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.stopTimerLocked(st)
	st.hasPending = false
	st.display = st.confirmed
	st.cancelled = st.inFlight
	if !st.inFlight {
		st.phase = PhaseIdle
	}
	ev := events.Event{Type: events.EntryCancelled, EntryID: id, Data: st.confirmed}
	resync := m.ctx.Err() == nil
	if resync {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	m.log.Debug().Str("entry_id", id).Msg("Edit cancelled")
	m.bus.Emit(ev)

	if resync {
		go func() {
			defer m.wg.Done()
			m.triggerResync()
		}()
	}
	return nil
}

// Delete removes the entry from the record store and stops tracking it.
func (m *Mutator) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	st, err := m.lookupLocked(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if st.inFlight {
		m.mu.Unlock()
		return fmt.Errorf("entry %s has a commit in flight", id)
	}
	m.mu.Unlock()

	if err := m.store.DeleteEntry(ctx, id); err != nil {
		m.log.Error().Err(err).Str("entry_id", id).Msg("Failed to delete entry")
		return wrapRemote(err)
	}

	m.mu.Lock()
	m.untrackLocked(id)
	m.epoch++
	m.deleted[id] = m.epoch
	m.mu.Unlock()

	m.log.Info().Str("entry_id", id).Msg("Entry deleted")
	m.bus.Emit(events.Event{Type: events.EntryDeleted, EntryID: id})
	if m.resync != nil {
		m.resync.Resync(ctx)
	}
	return nil
}

// LastError returns the failure of the most recent commit of the entry, if any.
func (m *Mutator) LastError(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.entries[id]; ok {
		return st.err
	}
	return nil
}

func (m *Mutator) optimisticLocked(st *entryState, quantity float64) events.Event {
	st.display.Quantity = quantity
	st.display.Absolute = nutrition.Apply(st.confirmed.PerUnit, quantity)
	st.pending = quantity
	st.hasPending = true
	st.cancelled = false
	st.err = nil
	if !st.inFlight {
		st.phase = PhaseEditing
	}
	return events.Event{Type: events.EntryOptimistic, EntryID: st.display.ID, Data: st.display}
}

func (m *Mutator) armTimerLocked(id string, st *entryState) {
	m.stopTimerLocked(st)
	st.timerSeq++
	seq := st.timerSeq
	st.timer = m.clock.AfterFunc(m.cfg.Debounce, func() { m.onTimer(id, seq) })
}

func (m *Mutator) stopTimerLocked(st *entryState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.timerSeq++
}

func (m *Mutator) onTimer(id string, seq int) {
	m.mu.Lock()
	st, ok := m.entries[id]
	if !ok || st.timerSeq != seq || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	st.timer = nil
	if st.inFlight {
		// the resolving commit picks the pending value up
		m.mu.Unlock()
		return
	}
	m.flushLocked(id, st)
	m.mu.Unlock()
}

// flushLocked dispatches the pending value, or settles the entry when the value
// equals what the remote already holds.
func (m *Mutator) flushLocked(id string, st *entryState) {
	if !st.hasPending {
		return
	}
	q := st.pending
	st.hasPending = false
	if q == st.lastSent {
		st.display = st.confirmed
		st.phase = PhaseIdle
		m.log.Debug().Str("entry_id", id).Float64("quantity", q).Msg("Value already sent, skipping commit")
		return
	}
	m.startCommitLocked(id, st, q)
}

func (m *Mutator) startCommitLocked(id string, st *entryState, quantity float64) {
	if m.ctx.Err() != nil {
		return
	}
	st.inFlight = true
	st.phase = PhaseCommitting
	st.lastSent = quantity

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.commit(id, quantity)
	}()
}

func (m *Mutator) commit(id string, quantity float64) {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CommitTimeout)
	defer cancel()

	m.log.Debug().Str("entry_id", id).Float64("quantity", quantity).Msg("Committing quantity")
	upd, err := m.store.UpdateEntryQuantity(ctx, id, quantity)
	if err != nil {
		err = wrapRemote(err)
	} else {
		err = diary.CheckUpdate(upd)
	}
	m.resolve(id, quantity, upd, err)
}

func (m *Mutator) resolve(id string, sent float64, upd *models.EntryUpdate, err error) {
	m.mu.Lock()
	st, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		m.log.Warn().Str("entry_id", id).Msg("Commit resolved for untracked entry")
		return
	}
	st.inFlight = false
	cancelled := st.cancelled
	st.cancelled = false
	m.epoch++
	st.epoch = m.epoch

	var ev events.Event
	if err != nil {
		m.stopTimerLocked(st)
		st.hasPending = false
		st.display = st.confirmed
		st.lastSent = st.confirmed.Quantity
		st.phase = PhaseIdle
		st.err = err
		ev = events.Event{Type: events.EntryRolledBack, EntryID: id, Data: st.confirmed, Err: err}
		m.mu.Unlock()

		m.log.Error().Err(err).Str("entry_id", id).Float64("quantity", sent).Msg("Commit failed, rolled back")
	} else {
		c := st.confirmed
		c.Quantity = upd.Quantity
		c.Absolute = upd.Absolute
		c.MealSlot = upd.MealSlot
		c.Unit = upd.Unit
		c.PerUnit = nutrition.Derive(upd.Absolute, upd.Quantity)
		st.confirmed = c
		st.lastSent = c.Quantity

		if st.hasPending {
			st.display = c
			st.display.Quantity = st.pending
			st.display.Absolute = nutrition.Apply(c.PerUnit, st.pending)
			st.phase = PhaseEditing
			m.armTimerLocked(id, st)
		} else {
			if !cancelled {
				st.display = c
			}
			st.phase = PhaseIdle
		}
		ev = events.Event{Type: events.EntryConfirmed, EntryID: id, Data: c}
		m.mu.Unlock()

		m.log.Info().Str("entry_id", id).Float64("quantity", c.Quantity).Float64("kcal", c.Absolute.Kcal).Msg("Commit confirmed")
	}

	m.bus.Emit(ev)
	m.triggerResync()
}

func wrapRemote(err error) error {
	if errors.Is(err, diary.ErrRemote) || errors.Is(err, diary.ErrProtocol) {
		return err
	}
	return fmt.Errorf("%w: %w", diary.ErrRemote, err)
}
