package domain

import "sort"

// UserIdentity is the authenticated user as reported by the auth provider.
type UserIdentity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// UserProfile is the member document owned by the remote store.
type UserProfile struct {
	UID          string                    `json:"uid"`
	FirstName    string                    `json:"firstName"`
	LastName     string                    `json:"lastName"`
	Email        string                    `json:"email"`
	Bio          string                    `json:"bio"`
	ProfileImage *string                   `json:"profileImage,omitempty"`
	Activities   map[string]ActivityRecord `json:"activities"`
	ProgressData map[string]any            `json:"progressData"`
}

// ProfileFromFields parses a member document.
func ProfileFromFields(uid string, fields map[string]any) UserProfile {
	profile := UserProfile{
		UID:          uid,
		FirstName:    stringField(fields, "firstName"),
		LastName:     stringField(fields, "lastName"),
		Email:        stringField(fields, "email"),
		Bio:          stringField(fields, "bio"),
		Activities:   make(map[string]ActivityRecord),
		ProgressData: make(map[string]any),
	}
	if image := stringField(fields, "profileImage"); image != "" {
		profile.ProfileImage = &image
	}
	if raw, ok := fields["activities"].(map[string]any); ok {
		for key, value := range raw {
			if rec, ok := value.(map[string]any); ok {
				profile.Activities[key] = ActivityRecordFromFields(rec)
			}
		}
	}
	if raw, ok := fields["progressData"].(map[string]any); ok {
		for key, value := range raw {
			profile.ProgressData[key] = value
		}
	}
	return profile
}

// ActivityKeysNewestFirst returns the activity keys ordered by descending timestamp key.
func (p UserProfile) ActivityKeysNewestFirst() []string {
	keys := make([]string, 0, len(p.Activities))
	for key := range p.Activities {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] > keys[j]
	})
	return keys
}
