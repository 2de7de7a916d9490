package authsession

import "sync"

// ProfileCache holds display fields fetched for the signed-in user.
type ProfileCache struct {
	mu           sync.RWMutex
	firstName    string
	bio          string
	profileImage string
}

// Store replaces the cached fields.
func (c *ProfileCache) Store(firstName, bio, profileImage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.firstName, c.bio, c.profileImage = firstName, bio, profileImage
}

// FirstName returns the cached first name.
func (c *ProfileCache) FirstName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.firstName
}

// Bio returns the cached bio.
func (c *ProfileCache) Bio() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bio
}

// ProfileImage returns the cached image URI.
func (c *ProfileCache) ProfileImage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profileImage
}

// Clear drops every cached field.
func (c *ProfileCache) Clear() {
	c.Store("", "", "")
}
