package kv

import "strings"

// Index is an ordered list of member ids persisted under a single key, most
// recently touched first. It gives prefix scans a deterministic order that
// does not depend on how the backing store enumerates keys.
type Index struct {
	Key string
	// MemberPrefix is the key prefix of the records the index tracks. The
	// member id is the remainder of the record key.
	MemberPrefix string
}

func (ix Index) List(tx Tx) []string {
	var ids []string
	if !GetJSON(tx, ix.Key, &ids) {
		return nil
	}
	return ids
}

// Touch moves id to the front of the index, inserting it if needed.
func (ix Index) Touch(tx Tx, id string) error {
	ids := ix.List(tx)
	next := make([]string, 0, len(ids)+1)
	next = append(next, id)
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	return SetJSON(tx, ix.Key, next)
}

func (ix Index) Drop(tx Tx, id string) error {
	ids := ix.List(tx)
	next := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	if len(next) == len(ids) {
		return nil
	}
	if len(next) == 0 {
		return tx.Remove(ix.Key)
	}
	return SetJSON(tx, ix.Key, next)
}

// Reconcile returns the indexed ids followed by any member keys present in
// the store but missing from the index, in key order. Ids whose record is gone
// are left out. The repaired list is written back when it differs.
func (ix Index) Reconcile(tx Tx) ([]string, error) {
	keys, err := tx.Keys(ix.MemberPrefix)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[strings.TrimPrefix(k, ix.MemberPrefix)] = true
	}

	indexed := ix.List(tx)
	result := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		if present[id] && !seen[id] {
			result = append(result, id)
			seen[id] = true
		}
	}
	for _, k := range keys {
		id := strings.TrimPrefix(k, ix.MemberPrefix)
		if !seen[id] {
			result = append(result, id)
			seen[id] = true
		}
	}

	if !equalIDs(result, indexed) {
		if len(result) == 0 {
			err = tx.Remove(ix.Key)
		} else {
			err = SetJSON(tx, ix.Key, result)
		}
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
