package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NewSlot allocates a slot in the trashed state. Revive it to make it
// visible.
func (s *Store) NewSlot(ctx context.Context, d SlotDetails) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO slots (owner_pkg, name, description, type, pos, cardinality, default_val, trashed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		d.OwnerPkg, d.Name, d.Description, d.Type, d.Pos, d.Cardinality, d.Default)
	if err != nil {
		return 0, fmt.Errorf("store: insert slot %q: %w", d.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: slot id: %w", err)
	}
	return int(id), nil
}

// Slot returns the details of slot id.
func (s *Store) Slot(ctx context.Context, id int) (SlotDetails, bool, error) {
	d := SlotDetails{ID: id}
	var trashed bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT owner_pkg, name, description, type, pos, cardinality, default_val, trashed
		 FROM slots WHERE id = ?`, id).
		Scan(&d.OwnerPkg, &d.Name, &d.Description, &d.Type, &d.Pos, &d.Cardinality, &d.Default, &trashed)
	if errors.Is(err, sql.ErrNoRows) {
		return SlotDetails{}, false, fmt.Errorf("store: slot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return SlotDetails{}, false, fmt.Errorf("store: slot %d: %w", id, err)
	}
	return d, trashed, nil
}

// SlotByName returns the ID of the live slot owned by pkg called name.
func (s *Store) SlotByName(ctx context.Context, pkg int, name string) (int, error) {
	var id int
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT id FROM slots WHERE owner_pkg = ? AND name = ? AND trashed = 0", pkg, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: slot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("store: slot %q: %w", name, err)
	}
	return id, nil
}

// ChangeSlot overwrites every field of slot d.ID with d.
func (s *Store) ChangeSlot(ctx context.Context, d SlotDetails) error {
	return s.exec(ctx, "change slot", d.ID,
		`UPDATE slots SET owner_pkg = ?, name = ?, description = ?, type = ?, pos = ?,
		 cardinality = ?, default_val = ? WHERE id = ?`,
		d.OwnerPkg, d.Name, d.Description, d.Type, d.Pos, d.Cardinality, d.Default, d.ID)
}

// TrashSlot marks slot id as trashed.
func (s *Store) TrashSlot(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "slots", id, true)
}

// ReviveSlot clears the trashed flag on slot id.
func (s *Store) ReviveSlot(ctx context.Context, id int) error {
	return s.setTrashed(ctx, "slots", id, false)
}

// SlotValue returns the value owner holds in slot, and whether it is set.
func (s *Store) SlotValue(ctx context.Context, owner, slot int) (string, bool, error) {
	var v string
	err := s.q(ctx).QueryRowContext(ctx,
		"SELECT value FROM slot_values WHERE owner_id = ? AND slot_id = ?", owner, slot).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: slot %d of %d: %w", slot, owner, err)
	}
	return v, true, nil
}

// SetSlotValue stores value for owner in slot, replacing any previous value.
func (s *Store) SetSlotValue(ctx context.Context, owner, slot int, value string) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO slot_values (owner_id, slot_id, value) VALUES (?, ?, ?)
		 ON CONFLICT(owner_id, slot_id) DO UPDATE SET value = excluded.value`, owner, slot, value)
	if err != nil {
		return fmt.Errorf("store: set slot %d of %d: %w", slot, owner, err)
	}
	return nil
}

// ClearSlotValue removes owner's value for slot. Clearing an unset slot is
// a no-op.
func (s *Store) ClearSlotValue(ctx context.Context, owner, slot int) error {
	_, err := s.q(ctx).ExecContext(ctx,
		"DELETE FROM slot_values WHERE owner_id = ? AND slot_id = ?", owner, slot)
	if err != nil {
		return fmt.Errorf("store: clear slot %d of %d: %w", slot, owner, err)
	}
	return nil
}
