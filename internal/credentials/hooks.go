package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/logging"
)

// Hooks keeps d in step with the users record type. A password change on
// update revokes the user's sessions.
func Hooks(d *Directory) core.Hooks {
	put := func(ctx context.Context, rec core.Record) (Credential, bool, error) {
		c, err := FromRecord(rec)
		if err != nil {
			return Credential{}, false, err
		}
		prev, found := d.Lookup(c.Email)
		changed := found && c.Password != "" && prev.Password != "" && c.Password != prev.Password
		if err := d.Put(c); err != nil {
			return Credential{}, false, err
		}
		logging.FromContext(ctx).Debug("credential synced", "user_id", c.ID)
		return c, changed, nil
	}
	return core.Hooks{
		OnCreate: func(ctx context.Context, rec core.Record) error {
			_, _, err := put(ctx, rec)
			return err
		},
		OnUpdate: func(ctx context.Context, rec core.Record) error {
			c, changed, err := put(ctx, rec)
			if err != nil || !changed {
				return err
			}
			logging.FromContext(ctx).Info("password changed, sessions revoked", "user_id", c.ID)
			return d.Revoke(c.Email)
		},
		OnDelete: func(ctx context.Context, ev core.DeleteEvent) error {
			ids := make([]int64, 0, len(ev.IDs))
			for _, id := range ev.IDs {
				n, err := core.ToInt64(id)
				if err != nil {
					return fmt.Errorf("credential id %v: %w", id, err)
				}
				ids = append(ids, n)
			}
			return d.Remove(ids...)
		},
	}
}

// Reconcile drops entries mirrored from users that no longer exist. Entries
// without an id were written by hand and are kept. It returns the number of
// entries removed.
func Reconcile(ctx context.Context, d *Directory, users []core.Record) (int, error) {
	live := make(map[int64]bool, len(users))
	for _, rec := range users {
		id, err := core.ToInt64(rec["id"])
		if err != nil {
			return 0, fmt.Errorf("credential id: %w", err)
		}
		live[id] = true
	}

	var stale []int64
	for _, c := range d.All() {
		if c.ID != 0 && !live[c.ID] {
			stale = append(stale, c.ID)
			logging.FromContext(ctx).Info("dropping stale credential", "user_id", c.ID, "email", c.Email)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return len(stale), d.Remove(stale...)
}

// FromRecord converts a stored users record.
func FromRecord(rec core.Record) (Credential, error) {
	id, err := core.ToInt64(rec["id"])
	if err != nil {
		return Credential{}, fmt.Errorf("credential id: %w", err)
	}
	c := Credential{ID: id}
	c.Email, _ = rec["email"].(string)
	c.FirstName, _ = rec["first_name"].(string)
	c.LastName, _ = rec["last_name"].(string)
	c.Password, _ = rec["password"].(string)

	if raw, ok := rec["roles"].(json.RawMessage); ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Roles); err != nil {
			return Credential{}, fmt.Errorf("credential roles: %w", err)
		}
	}
	return c, nil
}
