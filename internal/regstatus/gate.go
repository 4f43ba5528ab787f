package regstatus

import (
	"context"
	"sync"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
)

// StatusFetcher loads a retailer's status from the API.
type StatusFetcher interface {
	RegistrationStatus(ctx context.Context, email string) (models.RegistrationStatus, error)
}

// Dismissals stores the banner dismissal flag. The flag is global, not per
// retailer: dismissing it for one account hides it for every account using
// the same state.
type Dismissals interface {
	BannerDismissed() bool
	SetBannerDismissed(bool)
}

// Gate caches the status of the current retailer and refetches when the
// retailer email changes.
type Gate struct {
	fetcher    StatusFetcher
	dismissals Dismissals

	mu      sync.Mutex
	email   string
	status  *models.RegistrationStatus
	loading bool
	err     error
}

func NewGate(fetcher StatusFetcher, dismissals Dismissals) *Gate {
	return &Gate{fetcher: fetcher, dismissals: dismissals}
}

// Sync fetches the status on first use and whenever email differs from the
// last fetched email. It is a no-op otherwise.
func (g *Gate) Sync(ctx context.Context, email string) error {
	g.mu.Lock()
	if g.status != nil && g.email == email {
		g.mu.Unlock()
		return nil
	}
	g.email = email
	g.status = nil
	g.loading = true
	g.err = nil
	g.mu.Unlock()

	return g.fetch(ctx, email)
}

// Refresh refetches the current email's status unconditionally.
func (g *Gate) Refresh(ctx context.Context) error {
	g.mu.Lock()
	email := g.email
	g.loading = true
	g.mu.Unlock()
	return g.fetch(ctx, email)
}

func (g *Gate) fetch(ctx context.Context, email string) error {
	status, err := g.fetcher.RegistrationStatus(ctx, email)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.email != email {
		// a newer Sync superseded this fetch
		return err
	}
	g.loading = false
	g.err = err
	if err == nil {
		g.status = &status
	}
	return err
}

// Apply installs a status pushed by the server (live feed) for email.
func (g *Gate) Apply(email string, status models.RegistrationStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.email != email {
		return
	}
	g.status = &status
	g.loading = false
	g.err = nil
}

// Loading reports whether a fetch is in flight.
func (g *Gate) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loading
}

// View returns the current verdict. ok is false while loading or after a
// failed fetch; callers then show a loading or error state.
func (g *Gate) View() (View, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading || g.status == nil {
		return View{Restricted: true}, false
	}
	return Evaluate(*g.status), true
}

// Err is the last fetch error.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// ShowBanner hides a dismissible banner once dismissed.
func (g *Gate) ShowBanner(v View) bool {
	if v.Banner == nil {
		return false
	}
	if v.Banner.Dismissible && g.dismissals != nil && g.dismissals.BannerDismissed() {
		return false
	}
	return true
}

// Dismiss hides the approved banner.
func (g *Gate) Dismiss() {
	if g.dismissals != nil {
		g.dismissals.SetBannerDismissed(true)
	}
}
