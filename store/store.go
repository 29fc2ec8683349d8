// Package store provides the shared persisted key-value state that every
// otfit surface reads and writes. It is the only coordination primitive
// between independent execution contexts (page picker, popup surface,
// background bridge): writes become visible to other contexts
// asynchronously through the change Watcher, with last-write-wins
// semantics per key and no multi-key atomicity promised to callers.
//
// A writer must not assume its own write is observable through the
// notification channel yet; it should use its local value instead.
// Read-modify-write sequences across contexts can race and lose a write;
// that relaxed model is preserved.
package store

import (
	"context"
	"encoding/json"
)

// Persisted keys. All values are JSON.
const (
	KeySelectedProduct = "selectedProduct"
	KeyCartItems       = "cartItems"
	KeyFittingResults  = "fittingResults"
	KeySelectedGarment = "selectedGarment"
	KeyTempUserImage   = "tempUserImage"
	KeyFitditCallCount = "fitditCallCount"
	KeyMoodboardSlots  = "moodboardSlots"
)

// Store is the key-value contract every component codes against. The
// SQLite implementation below is the production one; tests inject a
// :memory: instance via OpenMemory.
type Store interface {
	// Get returns the current values for keys. Absent keys are simply
	// missing from the result map.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set writes values (marshaled to JSON) under their keys. The batch is
	// applied atomically within this store instance, but callers must not
	// rely on that for cross-context coordination.
	Set(ctx context.Context, values map[string]any) error
	// Remove deletes keys. Removals are observable through the Watcher
	// like any other change.
	Remove(ctx context.Context, keys ...string) error
}

// GetJSON reads one key and unmarshals it into v. The boolean reports
// whether the key was present.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	m, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

// GetInt reads an integer key, returning 0 for an absent key.
func GetInt(ctx context.Context, s Store, key string) (int, error) {
	var n int
	if _, err := GetJSON(ctx, s, key, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// transientKeys are the fitting-session keys cleared by Reset. The cart
// and mood-board survive a reset.
var transientKeys = []string{
	KeyTempUserImage,
	KeySelectedProduct,
	KeyFittingResults,
	KeySelectedGarment,
}

// Reset clears the fitting-session state: temp user photo, selected
// product, result cache and selected garment. Nothing else is touched.
func Reset(ctx context.Context, s Store) error {
	return s.Remove(ctx, transientKeys...)
}
