// Package profile reads and writes member documents in the remote store and
// implements the profile, goal and progress screens on top of them.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence"
)

const (
	// MembersCollection holds one document per user, keyed by uid.
	MembersCollection = "members"
	// GoalsCollection holds append-only goal documents.
	GoalsCollection = "goals"

	activitiesField = "activities"

	defaultPageSize = 20
	maxPageSize     = 100
)

// Accessor is the remote profile store accessor.
type Accessor struct {
	store persistence.Store
}

// NewAccessor constructs an Accessor over store.
func NewAccessor(store persistence.Store) *Accessor {
	return &Accessor{store: store}
}

// Get reads the member document of uid.
func (a *Accessor) Get(ctx context.Context, uid string) (domain.UserProfile, error) {
	doc, err := a.store.Read(ctx, MembersCollection, uid)
	if err != nil {
		return domain.UserProfile{}, mapStoreError(err)
	}
	return domain.ProfileFromFields(uid, doc.Fields), nil
}

// Set writes fields to the member document. With merge only the given
// (possibly dotted) fields change.
func (a *Accessor) Set(ctx context.Context, uid string, fields map[string]any, merge bool) error {
	if err := a.store.Write(ctx, MembersCollection, uid, fields, merge); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// Append inserts value under key in the keyed map at path.
func (a *Accessor) Append(ctx context.Context, uid, path, key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return domain.NewValidationError("key", "key is required")
	}
	return a.Set(ctx, uid, map[string]any{path + "." + key: value}, true)
}

// AppendActivity stores record under activities.<key>. Records sharing a key overwrite each other.
func (a *Accessor) AppendActivity(ctx context.Context, uid, key string, record domain.ActivityRecord) error {
	return a.Append(ctx, uid, activitiesField, key, record.ToFields())
}

// ActivityEntry is one record of the activity history.
type ActivityEntry struct {
	Key    string                `json:"key"`
	Record domain.ActivityRecord `json:"record"`
}

// ActivityPage is a page of activity history, newest first.
type ActivityPage struct {
	Items      []ActivityEntry `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// ListActivities returns up to limit records older than the cursor position.
func (a *Accessor) ListActivities(ctx context.Context, uid, cursor string, limit int) (ActivityPage, error) {
	after, err := persistence.DecodeCursor(cursor)
	if err != nil {
		return ActivityPage{}, domain.NewValidationError("cursor", "invalid cursor")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	profile, err := a.Get(ctx, uid)
	if err != nil {
		return ActivityPage{}, err
	}

	keys := profile.ActivityKeysNewestFirst()
	start := 0
	if after != "" {
		start = len(keys)
		for i, key := range keys {
			if olderKey(key, after) {
				start = i
				break
			}
		}
	}

	page := ActivityPage{Items: make([]ActivityEntry, 0, limit)}
	for _, key := range keys[start:] {
		if len(page.Items) == limit {
			page.NextCursor = persistence.EncodeCursor(page.Items[len(page.Items)-1].Key)
			break
		}
		page.Items = append(page.Items, ActivityEntry{Key: key, Record: profile.Activities[key]})
	}
	return page, nil
}

// olderKey reports whether key sorts strictly before pivot in newest-first order.
func olderKey(key, pivot string) bool {
	if len(key) != len(pivot) {
		return len(key) < len(pivot)
	}
	return key < pivot
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: user not found", domain.ErrNotFound)
	case errors.Is(err, persistence.ErrInvalidPath):
		return domain.NewValidationError("fields", err.Error())
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrRemoteStore, err)
	}
}
