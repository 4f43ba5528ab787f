// Package appstate holds the storefront's client-side session state: one
// principal slot per role plus a few UI flags, with an explicit JSON
// persistence boundary.
package appstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
)

const (
	// RootKey wraps the persisted role slots and UI flags.
	RootKey = "persist:root"
	// BannerDismissedKey is stored beside RootKey and shared by every
	// retailer using this state file.
	BannerDismissedKey = "registrationBannerDismissed"
)

// Store is the explicit application state. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	principals map[models.Role]*models.Principal
	ui         UIFlags
	dismissed  bool
}

// UIFlags are persisted view toggles.
type UIFlags struct {
	// IsSignUp selects the signup form over the login form on the customer page.
	IsSignUp bool `json:"isSignUp"`
}

func New() *Store {
	return &Store{
		principals: make(map[models.Role]*models.Principal),
		ui:         UIFlags{IsSignUp: true},
	}
}

// Slot is the view of a single role's principal.
type Slot struct {
	store *Store
	role  models.Role
}

// Slot returns the slot for role.
func (s *Store) Slot(role models.Role) *Slot {
	return &Slot{store: s, role: role}
}

func (s *Store) Customer() *Slot    { return s.Slot(models.RoleCustomer) }
func (s *Store) Retailer() *Slot    { return s.Slot(models.RoleRetailer) }
func (s *Store) DeliveryBoy() *Slot { return s.Slot(models.RoleDeliveryBoy) }
func (s *Store) Admin() *Slot       { return s.Slot(models.RoleAdmin) }

// Set replaces the role's principal. Other roles are untouched.
func (sl *Slot) Set(p models.Principal) {
	sl.store.mu.Lock()
	defer sl.store.mu.Unlock()
	sl.store.principals[sl.role] = &p
}

// Get returns a copy of the principal, or nil when logged out.
func (sl *Slot) Get() *models.Principal {
	sl.store.mu.RLock()
	defer sl.store.mu.RUnlock()
	p := sl.store.principals[sl.role]
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Logout clears the slot. Clearing an empty slot is a no-op.
func (sl *Slot) Logout() {
	sl.store.mu.Lock()
	defer sl.store.mu.Unlock()
	delete(sl.store.principals, sl.role)
}

// Principal is Slot(role).Get().
func (s *Store) Principal(role models.Role) *models.Principal {
	return s.Slot(role).Get()
}

func (s *Store) UI() UIFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

func (s *Store) SetSignUp(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.IsSignUp = v
}

// BannerDismissed reports the global registration banner flag.
func (s *Store) BannerDismissed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dismissed
}

func (s *Store) SetBannerDismissed(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = v
}

type persistedRoot struct {
	Customer    *models.Principal `json:"customer"`
	Retailer    *models.Principal `json:"retailer"`
	DeliveryBoy *models.Principal `json:"deliveryBoy"`
	Admin       *models.Principal `json:"admin"`
	UI          UIFlags           `json:"ui"`
}

type persistedFile struct {
	Root            persistedRoot `json:"persist:root"`
	BannerDismissed bool          `json:"registrationBannerDismissed"`
}

// Marshal serializes every slot and flag.
func (s *Store) Marshal() ([]byte, error) {
	s.mu.RLock()
	f := persistedFile{
		Root: persistedRoot{
			Customer:    s.principals[models.RoleCustomer],
			Retailer:    s.principals[models.RoleRetailer],
			DeliveryBoy: s.principals[models.RoleDeliveryBoy],
			Admin:       s.principals[models.RoleAdmin],
			UI:          s.ui,
		},
		BannerDismissed: s.dismissed,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	s.mu.RUnlock()
	return data, err
}

// Unmarshal replaces the state with data produced by Marshal.
func (s *Store) Unmarshal(data []byte) error {
	var f persistedFile
	f.Root.UI.IsSignUp = true
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals = make(map[models.Role]*models.Principal)
	for role, p := range map[models.Role]*models.Principal{
		models.RoleCustomer:    f.Root.Customer,
		models.RoleRetailer:    f.Root.Retailer,
		models.RoleDeliveryBoy: f.Root.DeliveryBoy,
		models.RoleAdmin:       f.Root.Admin,
	} {
		if p != nil {
			s.principals[role] = p
		}
	}
	s.ui = f.Root.UI
	s.dismissed = f.BannerDismissed
	return nil
}

// Load reads path into a new Store. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.Unmarshal(data); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the state to path atomically.
func (s *Store) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
