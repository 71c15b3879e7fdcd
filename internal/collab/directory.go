// Package collab holds the default in-process stand-ins for the platform
// subsystems the messaging core only talks to through interfaces.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/samber/lo"

	"travelmate/internal/domain"
)

type directoryEntry struct {
	domain.Profile
	Contacts []string `json:"contacts"`
}

type directoryFile struct {
	Users []directoryEntry `json:"users"`
}

// Directory is an in-memory profile and contact store.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
	contacts map[string][]string
}

var (
	_ domain.ProfileProvider = (*Directory)(nil)
	_ domain.ContactLister   = (*Directory)(nil)
)

func NewDirectory() *Directory {
	return &Directory{
		profiles: make(map[string]domain.Profile),
		contacts: make(map[string][]string),
	}
}

// LoadDirectory reads a JSON seed file of the form
//
//	{"users": [{"id": "...", "name": "...", "avatar_url": "...", "contacts": ["..."]}]}
//
// An empty path yields an empty directory.
func LoadDirectory(path string) (*Directory, error) {
	d := NewDirectory()
	if path == "" {
		return d, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	var f directoryFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse directory file: %w", err)
	}
	for _, u := range f.Users {
		if u.ID == "" {
			return nil, errors.New("directory file: user without id")
		}
		d.Put(u.Profile, u.Contacts...)
	}
	return d, nil
}

// Put stores p and makes every contact mutual.
func (d *Directory) Put(p domain.Profile, contacts ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
	for _, c := range contacts {
		if c == "" || c == p.ID {
			continue
		}
		d.link(p.ID, c)
		d.link(c, p.ID)
	}
}

func (d *Directory) link(a, b string) {
	if !slices.Contains(d.contacts[a], b) {
		d.contacts[a] = append(d.contacts[a], b)
	}
}

func (d *Directory) GetProfiles(_ context.Context, ids []string) (map[string]domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.PickByKeys(d.profiles, ids), nil
}

func (d *Directory) ListContacts(_ context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.contacts[userID]), nil
}
