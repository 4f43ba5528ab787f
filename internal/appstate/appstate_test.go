package appstate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
)

func TestSlotSetGetLogoutForEveryRole(t *testing.T) {
	for _, role := range models.AllRoles {
		s := New()
		p := models.Principal{Email: "user@example.com", Name: "User", Role: role}

		// set then get returns the principal
		s.Slot(role).Set(p)
		got := s.Slot(role).Get()
		if got == nil || *got != p {
			t.Errorf("%s: get after set = %+v", role, got)
		}

		// logout then get returns nothing
		s.Slot(role).Logout()
		if got := s.Slot(role).Get(); got != nil {
			t.Errorf("%s: get after logout = %+v", role, got)
		}
	}
}

func TestSettingOneRoleLeavesOthersAlone(t *testing.T) {
	s := New()
	cust := models.Principal{Email: "ana@example.com", Name: "Ana", Role: models.RoleCustomer}
	s.Customer().Set(cust)

	s.Retailer().Set(models.Principal{Email: "shop@example.com", Role: models.RoleRetailer})
	s.Retailer().Logout()
	s.Admin().Logout()

	if got := s.Customer().Get(); got == nil || *got != cust {
		t.Errorf("customer slot changed by other roles: %+v", got)
	}
	if s.DeliveryBoy().Get() != nil {
		t.Error("delivery slot should still be empty")
	}
}

func TestDoubleLogoutIsIdempotent(t *testing.T) {
	s := New()
	s.DeliveryBoy().Set(models.Principal{Email: "rider@example.com", Role: models.RoleDeliveryBoy})

	s.DeliveryBoy().Logout()
	once, _ := s.Marshal()
	s.DeliveryBoy().Logout()
	twice, _ := s.Marshal()

	if string(once) != string(twice) {
		t.Errorf("second logout changed state:\n%s\n%s", once, twice)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	s.Customer().Set(models.Principal{Email: "ana@example.com", Name: "Ana", Role: models.RoleCustomer})
	p := s.Customer().Get()
	p.Name = "changed"
	if s.Customer().Get().Name != "Ana" {
		t.Error("mutating the returned principal must not change the store")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "storefront.json")

	// Given a store with two roles signed in and the banner dismissed
	s := New()
	s.Customer().Set(models.Principal{Email: "ana@example.com", Name: "Ana", Role: models.RoleCustomer})
	s.Retailer().Set(models.Principal{Email: "shop@example.com", Name: "Green Basket", Role: models.RoleRetailer})
	s.SetBannerDismissed(true)
	s.SetSignUp(false)

	// When it is saved and loaded again
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// Then every slot and flag survives
	if loaded.Customer().Get().Name != "Ana" || loaded.Retailer().Get().Name != "Green Basket" {
		t.Error("principals not restored")
	}
	if loaded.Admin().Get() != nil || loaded.DeliveryBoy().Get() != nil {
		t.Error("empty slots should stay empty")
	}
	if !loaded.BannerDismissed() || loaded.UI().IsSignUp {
		t.Error("flags not restored")
	}

	// And the file uses the expected root keys
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"persist:root"`) || !strings.Contains(string(raw), `"registrationBannerDismissed": true`) {
		t.Errorf("unexpected file layout:\n%s", raw)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Customer().Get() != nil || !s.UI().IsSignUp {
		t.Error("missing file should give a fresh store")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o600)
	if _, err := Load(path); err == nil {
		t.Error("corrupt state should be reported")
	}
}
