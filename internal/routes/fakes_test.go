package routes

import (
	"context"
	"sync"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/services"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

type memAccounts struct {
	mu         sync.Mutex
	accounts   map[string]models.Account
	failUpdate error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]models.Account)}
}

func memKey(role models.Role, email string) string {
	return string(role) + "|" + utils.NormalizeEmail(email)
}

func (m *memAccounts) Exists(_ context.Context, role models.Role, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[memKey(role, email)]
	return ok, nil
}

func (m *memAccounts) Create(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(acc.Role, acc.Email)
	if _, ok := m.accounts[k]; ok {
		return services.ErrAccountExists
	}
	m.accounts[k] = *acc
	return nil
}

func (m *memAccounts) FindByEmail(_ context.Context, role models.Role, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[memKey(role, email)]
	if !ok {
		return nil, services.ErrAccountNotFound
	}
	return &acc, nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, role models.Role, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	k := memKey(role, email)
	acc, ok := m.accounts[k]
	if !ok {
		return services.ErrAccountNotFound
	}
	acc.PasswordHash = hash
	m.accounts[k] = acc
	return nil
}

type memRegistrations struct {
	mu   sync.Mutex
	regs map[string]models.RetailerRegistration
}

func newMemRegistrations() *memRegistrations {
	return &memRegistrations{regs: make(map[string]models.RetailerRegistration)}
}

func (m *memRegistrations) Find(_ context.Context, email string) (*models.RetailerRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[email]
	if !ok {
		return nil, services.ErrRegistrationNotFound
	}
	return &reg, nil
}

func (m *memRegistrations) Submit(_ context.Context, reg *models.RetailerRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg.RegistrationCompleted = true
	reg.VerificationStatus = models.VerificationPending
	reg.RejectionReason = ""
	m.regs[reg.Email] = *reg
	return nil
}

func (m *memRegistrations) Pending(_ context.Context, _ int64) ([]models.RetailerRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RetailerRegistration
	for _, r := range m.regs {
		if r.VerificationStatus == models.VerificationPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRegistrations) Review(_ context.Context, email string, status models.VerificationStatus, reason string) (*models.RetailerRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[email]
	if !ok {
		return nil, services.ErrRegistrationNotFound
	}
	reg.VerificationStatus = status
	reg.RejectionReason = ""
	if status == models.VerificationRejected {
		reg.RejectionReason = reason
	}
	m.regs[email] = reg
	return &reg, nil
}

type memDashboards struct{}

func (memDashboards) Dashboard(_ context.Context, email string) (*models.Dashboard, error) {
	return &models.Dashboard{
		Stats:    models.DashboardStats{TotalOrders: 3, PendingOrders: 1, TotalRevenue: 42.5, ProductCount: 7},
		Orders:   []models.OrderSummary{{ID: "o-1", CustomerEmail: "c@example.com", Status: "pending", Total: 12.5}},
		LowStock: []models.LowStockItem{{ProductID: "p-1", Name: "Milk", Stock: 2, Threshold: 5}},
	}, nil
}

// codeBox records issued codes by (action, email).
type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func newCodeBox() *codeBox {
	return &codeBox{codes: make(map[string]string)}
}

func (c *codeBox) PublishOTP(_ context.Context, ev models.OTPIssued) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[string(ev.Action)+"|"+ev.Email] = ev.Code
	return nil
}

func (c *codeBox) code(action models.OTPAction, email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[string(action)+"|"+email]
}
