package memory

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"hazelinvoice/backend/internal/domain"
)

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD.
// When unset, dev defaults are used and a warning is logged. The postgres
// store is used whenever DATABASE_URL is set, so these never reach production.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logrus.WithField("module", "memory-store").Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			logrus.WithField("module", "memory-store").WithError(err).Fatalf("failed to hash seed password for %s", u.username)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with the demo outlets and vegetable catalog.
// Outlet and product ids follow the order below, starting at 1.
func NewSeeded() *Store {
	s := New()

	outletNames := []string{
		"Autoliv", "NKC", "Teradyne", "Lear 5", "MITSUMI", "Global", "GMC", "JP Morgan",
		"Knowles", "Lexmark", "Mai", "M-land", "M-Polo", "Montage", "MPT", "Muramuto",
		"P-mactan", "QBE", "Radisson", "SCI", "Taiyo", "W-lahug", "Cebu Kitchen", "Feeder", "PHOKIM",
	}
	for _, name := range outletNames {
		s.SeedOutlet(domain.Outlet{Name: name, Active: true, GroupName: domain.DefaultOutletGroup})
	}

	for _, p := range []struct {
		name, unit        string
		cost, markup, fee int64
	}{
		{"Ampalaya", "kg", 80, 15, 5},
		{"Baguio Beans", "kg", 90, 15, 5},
		{"Cabbage", "kg", 60, 12, 3},
		{"Carrots", "kg", 70, 12, 3},
		{"Kamatis", "kg", 50, 10, 5},
		{"Kangkong", "bundle", 15, 5, 0},
		{"Luya", "kg", 120, 20, 5},
		{"Onion", "kg", 110, 20, 5},
		{"Pechay", "bundle", 20, 5, 0},
		{"Sili", "kg", 200, 40, 10},
		{"Talong", "kg", 65, 12, 3},
		{"Upo", "pcs", 35, 8, 2},
	} {
		s.SeedProduct(domain.Product{
			Name:        p.name,
			Category:    "Vegetables",
			Unit:        p.unit,
			UnitCost:    decimal.NewFromInt(p.cost),
			Markup:      decimal.NewFromInt(p.markup),
			DeliveryFee: decimal.NewFromInt(p.fee),
			Active:      true,
		})
	}
	return s
}

// SeedProduct inserts a catalog row outside any transaction.
func (s *Store) SeedProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.data.next("products")
	if p.SKU == "" {
		p.SKU = fmt.Sprintf("VEG-%03d", p.ID)
	}
	s.data.products[p.ID] = p
	return p
}

// SeedOutlet inserts an outlet outside any transaction.
func (s *Store) SeedOutlet(o domain.Outlet) domain.Outlet {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.data.next("outlets")
	s.data.outlets[o.ID] = o
	return o
}
