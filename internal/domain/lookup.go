package domain

import "fmt"

// Bool returns a pointer to v, for the optional activated filters.
func Bool(v bool) *bool {
	return &v
}

// MatchesActivated reports whether the user passes an optional activated filter.
func (u *User) MatchesActivated(activated *bool) bool {
	return activated == nil || u.IsActivated == *activated
}

// Single returns the only element of items, nil when empty, or a
// data-integrity failure when the lookup key should have been unique.
func Single[T any](op, entity, key string, items []T) (*T, error) {
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		item := items[0]
		return &item, nil
	default:
		return nil, NewStorageError(ErrDataIntegrity, op, entity, key,
			fmt.Errorf("%d records share a unique key", len(items)))
	}
}

// DistinctUsers removes duplicate users by ID, keeping first-seen order.
func DistinctUsers(users []User) []User {
	seen := make(map[string]struct{}, len(users))
	distinct := make([]User, 0, len(users))
	for _, user := range users {
		id := user.ID.String()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, user)
	}
	return distinct
}
