package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/store"
	"hazelinvoice/backend/internal/xid"
)

// Store keeps all state in process. Transactions run on a copy of the dataset
// that replaces the committed one when the callback succeeds.
type Store struct {
	mu   sync.RWMutex
	data *dataset
	session
}

type seqKey struct {
	kind string
	year int
}

type dataset struct {
	nextID           map[string]int64
	products         map[int64]domain.Product
	outlets          map[int64]domain.Outlet
	overrides        map[int64]domain.WeeklyPriceOverride
	receipts         map[int64]domain.Receipt
	receiptLines     map[int64]domain.ReceiptLine
	payments         map[int64]domain.Payment
	sequences        map[seqKey]int64
	suppliers        map[int64]domain.Supplier
	purchases        map[int64]domain.Purchase
	purchaseLines    map[int64]domain.PurchaseLine
	purchasePayments map[int64]domain.PurchasePayment
	stockMovements   []domain.StockMovement
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

func newDataset() *dataset {
	return &dataset{
		nextID:           make(map[string]int64),
		products:         make(map[int64]domain.Product),
		outlets:          make(map[int64]domain.Outlet),
		overrides:        make(map[int64]domain.WeeklyPriceOverride),
		receipts:         make(map[int64]domain.Receipt),
		receiptLines:     make(map[int64]domain.ReceiptLine),
		payments:         make(map[int64]domain.Payment),
		sequences:        make(map[seqKey]int64),
		suppliers:        make(map[int64]domain.Supplier),
		purchases:        make(map[int64]domain.Purchase),
		purchaseLines:    make(map[int64]domain.PurchaseLine),
		purchasePayments: make(map[int64]domain.PurchasePayment),
		stockMovements:   make([]domain.StockMovement, 0, 64),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// clone copies every table. Rows are values, so a shallow map copy isolates
// the transaction from committed state.
func (d *dataset) clone() *dataset {
	return &dataset{
		nextID:           maps.Clone(d.nextID),
		products:         maps.Clone(d.products),
		outlets:          maps.Clone(d.outlets),
		overrides:        maps.Clone(d.overrides),
		receipts:         maps.Clone(d.receipts),
		receiptLines:     maps.Clone(d.receiptLines),
		payments:         maps.Clone(d.payments),
		sequences:        maps.Clone(d.sequences),
		suppliers:        maps.Clone(d.suppliers),
		purchases:        maps.Clone(d.purchases),
		purchaseLines:    maps.Clone(d.purchaseLines),
		purchasePayments: maps.Clone(d.purchasePayments),
		stockMovements:   slices.Clone(d.stockMovements),
		auditLogs:        slices.Clone(d.auditLogs),
		usersByUsername:  maps.Clone(d.usersByUsername),
	}
}

func (d *dataset) next(table string) int64 {
	d.nextID[table]++
	return d.nextID[table]
}

// New returns an empty store with the seed users only.
func New() *Store {
	s := &Store{data: newDataset()}
	s.session = session{store: s}
	s.data.usersByUsername = seedUsers()
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	if err := fn(session{store: s, tx: tx}); err != nil {
		return err
	}
	s.data = tx
	return nil
}

// session implements store.Session. Outside a transaction each call takes the
// store lock; inside one it works on the transaction's dataset, whose lock is
// already held by WithinTx.
type session struct {
	store *Store
	tx    *dataset
}

func (s session) read() (*dataset, func()) {
	if s.tx != nil {
		return s.tx, func() {}
	}
	s.store.mu.RLock()
	return s.store.data, s.store.mu.RUnlock
}

func (s session) write() (*dataset, func()) {
	if s.tx != nil {
		return s.tx, func() {}
	}
	s.store.mu.Lock()
	return s.store.data, s.store.mu.Unlock
}

func (s session) ListProducts(_ context.Context) ([]domain.Product, error) {
	d, done := s.read()
	defer done()

	result := make([]domain.Product, 0, len(d.products))
	for _, p := range d.products {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
	return result, nil
}

func (s session) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	d, done := s.read()
	defer done()

	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := d.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s session) ListOutlets(_ context.Context, activeOnly bool) ([]domain.Outlet, error) {
	d, done := s.read()
	defer done()

	result := make([]domain.Outlet, 0, len(d.outlets))
	for _, o := range d.outlets {
		if activeOnly && !o.Active {
			continue
		}
		result = append(result, o)
	}
	sortOutlets(result)
	return result, nil
}

func (s session) ListOutletsInGroups(_ context.Context, groups []string) ([]domain.Outlet, error) {
	d, done := s.read()
	defer done()

	result := make([]domain.Outlet, 0, len(d.outlets))
	for _, o := range d.outlets {
		if o.Active && slices.Contains(groups, o.GroupName) {
			result = append(result, o)
		}
	}
	sortOutlets(result)
	return result, nil
}

func (s session) GetOutletsByIDs(_ context.Context, ids []int64) (map[int64]domain.Outlet, error) {
	d, done := s.read()
	defer done()

	result := make(map[int64]domain.Outlet, len(ids))
	for _, id := range ids {
		if o, ok := d.outlets[id]; ok {
			result[id] = o
		}
	}
	return result, nil
}

func (s session) AssignDefaultGroup(_ context.Context, group string) (int, error) {
	d, done := s.write()
	defer done()

	updated := 0
	for id, o := range d.outlets {
		if !o.Active || strings.TrimSpace(o.GroupName) != "" {
			continue
		}
		o.GroupName = group
		d.outlets[id] = o
		updated++
	}
	return updated, nil
}

func (s session) ListOverridesCovering(_ context.Context, day time.Time, productIDs []int64) ([]domain.WeeklyPriceOverride, error) {
	d, done := s.read()
	defer done()

	day = dayOf(day)
	result := make([]domain.WeeklyPriceOverride, 0, 16)
	for _, w := range d.overrides {
		if len(productIDs) > 0 && !slices.Contains(productIDs, w.ProductID) {
			continue
		}
		if w.Covers(day) {
			result = append(result, w)
		}
	}
	slices.SortFunc(result, func(a, b domain.WeeklyPriceOverride) int { return cmpInt64(a.ID, b.ID) })
	return result, nil
}

func (s session) ListOverridesStartingOn(_ context.Context, day time.Time) ([]domain.WeeklyPriceOverride, error) {
	d, done := s.read()
	defer done()

	day = dayOf(day)
	result := make([]domain.WeeklyPriceOverride, 0, 16)
	for _, w := range d.overrides {
		if w.EffectiveFrom.Equal(day) {
			result = append(result, w)
		}
	}
	slices.SortFunc(result, func(a, b domain.WeeklyPriceOverride) int { return cmpInt64(a.ID, b.ID) })
	return result, nil
}

func (s session) CreateOverride(_ context.Context, w domain.WeeklyPriceOverride) (*domain.WeeklyPriceOverride, error) {
	if w.ProductID <= 0 || w.EffectiveTo.Before(w.EffectiveFrom) {
		return nil, store.ErrInvalidInput
	}

	d, done := s.write()
	defer done()

	if _, ok := d.products[w.ProductID]; !ok {
		return nil, store.ErrNotFound
	}
	w.ID = d.next("overrides")
	w.EffectiveFrom = dayOf(w.EffectiveFrom)
	w.EffectiveTo = dayOf(w.EffectiveTo)
	d.overrides[w.ID] = w
	return &w, nil
}

func (s session) UpdateOverride(_ context.Context, w domain.WeeklyPriceOverride) error {
	d, done := s.write()
	defer done()

	if _, ok := d.overrides[w.ID]; !ok {
		return store.ErrNotFound
	}
	w.EffectiveFrom = dayOf(w.EffectiveFrom)
	w.EffectiveTo = dayOf(w.EffectiveTo)
	d.overrides[w.ID] = w
	return nil
}

func (s session) DeleteOverrides(_ context.Context, ids []int64) error {
	d, done := s.write()
	defer done()

	for _, id := range ids {
		delete(d.overrides, id)
	}
	return nil
}

func (s session) ListReceipts(_ context.Context, filter store.ReceiptFilter) ([]domain.Receipt, error) {
	d, done := s.read()
	defer done()

	day := dayOf(filter.Day)
	result := make([]domain.Receipt, 0, 32)
	for _, r := range d.receipts {
		if !r.Date.Equal(day) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Status != domain.StatusVoid && r.Status == domain.StatusVoid {
			continue
		}
		result = append(result, r)
	}

	linesByReceipt := d.linesByReceipt()
	for i := range result {
		result[i].Lines = linesByReceipt[result[i].ID]
	}
	slices.SortFunc(result, func(a, b domain.Receipt) int {
		if c := strings.Compare(strings.ToLower(a.OutletName), strings.ToLower(b.OutletName)); c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
	return result, nil
}

func (s session) GetReceipt(_ context.Context, id int64) (*domain.Receipt, error) {
	d, done := s.read()
	defer done()

	r, ok := d.receipts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.Lines = d.linesByReceipt()[id]
	r.Payments = make([]domain.Payment, 0, 2)
	for _, p := range d.payments {
		if p.ReceiptID == id {
			r.Payments = append(r.Payments, p)
		}
	}
	slices.SortFunc(r.Payments, func(a, b domain.Payment) int { return cmpInt64(a.ID, b.ID) })
	return &r, nil
}

func (s session) CreateReceipt(_ context.Context, r domain.Receipt) (*domain.Receipt, error) {
	if strings.TrimSpace(r.Number) == "" {
		return nil, store.ErrInvalidInput
	}

	d, done := s.write()
	defer done()

	r.Date = dayOf(r.Date)
	for _, existing := range d.receipts {
		if existing.Number == r.Number {
			return nil, store.ErrConflict
		}
		if r.Status == domain.StatusUnpaid && existing.Status == domain.StatusUnpaid &&
			r.OutletID != nil && existing.OutletID != nil && *r.OutletID == *existing.OutletID &&
			existing.Date.Equal(r.Date) {
			return nil, store.ErrConflict
		}
	}

	r.ID = d.next("receipts")
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Lines = nil
	r.Payments = nil
	d.receipts[r.ID] = r
	return &r, nil
}

func (s session) UpdateReceipt(_ context.Context, r domain.Receipt) error {
	d, done := s.write()
	defer done()

	existing, ok := d.receipts[r.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Status = r.Status
	existing.TotalAmount = r.TotalAmount
	existing.PaidAmount = r.PaidAmount
	d.receipts[r.ID] = existing
	return nil
}

func (s session) CreateReceiptLine(_ context.Context, line domain.ReceiptLine) (*domain.ReceiptLine, error) {
	d, done := s.write()
	defer done()

	if _, ok := d.receipts[line.ReceiptID]; !ok {
		return nil, store.ErrNotFound
	}
	line.ID = d.next("receipt_lines")
	d.receiptLines[line.ID] = line
	return &line, nil
}

func (s session) UpdateReceiptLine(_ context.Context, line domain.ReceiptLine) error {
	d, done := s.write()
	defer done()

	existing, ok := d.receiptLines[line.ID]
	if !ok {
		return store.ErrNotFound
	}
	line.ReceiptID = existing.ReceiptID
	d.receiptLines[line.ID] = line
	return nil
}

func (s session) DeleteReceiptLine(_ context.Context, id int64) error {
	d, done := s.write()
	defer done()

	if _, ok := d.receiptLines[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.receiptLines, id)
	return nil
}

func (s session) CreatePayment(_ context.Context, p domain.Payment) (*domain.Payment, error) {
	d, done := s.write()
	defer done()

	if _, ok := d.receipts[p.ReceiptID]; !ok {
		return nil, store.ErrNotFound
	}
	p.ID = d.next("payments")
	d.payments[p.ID] = p
	return &p, nil
}

func (s session) NextSequenceValue(_ context.Context, kind string, year int, floor int64) (int64, error) {
	if strings.TrimSpace(kind) == "" || year <= 0 {
		return 0, store.ErrInvalidInput
	}

	d, done := s.write()
	defer done()

	key := seqKey{kind: kind, year: year}
	current := d.sequences[key]
	if current < floor {
		current = floor
	}
	current++
	d.sequences[key] = current
	return current, nil
}

func (s session) GetSupplier(_ context.Context, id int64) (*domain.Supplier, error) {
	d, done := s.read()
	defer done()

	sup, ok := d.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sup, nil
}

func (s session) FindSupplierByName(_ context.Context, name string) (*domain.Supplier, error) {
	d, done := s.read()
	defer done()

	key := strings.ToLower(strings.TrimSpace(name))
	ids := make([]int64, 0, len(d.suppliers))
	for id := range d.suppliers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		sup := d.suppliers[id]
		if strings.ToLower(strings.TrimSpace(sup.Name)) == key {
			return &sup, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s session) CreateSupplier(_ context.Context, sup domain.Supplier) (*domain.Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return nil, store.ErrInvalidInput
	}

	d, done := s.write()
	defer done()

	for _, existing := range d.suppliers {
		if strings.EqualFold(strings.TrimSpace(existing.Name), sup.Name) {
			return nil, store.ErrConflict
		}
	}
	sup.ID = d.next("suppliers")
	d.suppliers[sup.ID] = sup
	return &sup, nil
}

func (s session) CreatePurchase(_ context.Context, p domain.Purchase) (*domain.Purchase, error) {
	if strings.TrimSpace(p.Number) == "" || len(p.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}

	d, done := s.write()
	defer done()

	for _, existing := range d.purchases {
		if existing.Number == p.Number {
			return nil, store.ErrConflict
		}
	}

	p.ID = d.next("purchases")
	p.Date = dayOf(p.Date)
	lines := make([]domain.PurchaseLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		line.ID = d.next("purchase_lines")
		line.PurchaseID = p.ID
		d.purchaseLines[line.ID] = line
		lines = append(lines, line)
	}

	header := p
	header.Lines = nil
	header.Payments = nil
	d.purchases[p.ID] = header

	p.Lines = lines
	p.Payments = []domain.PurchasePayment{}
	return &p, nil
}

func (s session) GetPurchase(_ context.Context, id int64) (*domain.Purchase, error) {
	d, done := s.read()
	defer done()

	p, ok := d.purchases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Lines = d.linesByPurchase()[id]
	p.Payments = make([]domain.PurchasePayment, 0, 2)
	for _, pay := range d.purchasePayments {
		if pay.PurchaseID == id {
			p.Payments = append(p.Payments, pay)
		}
	}
	slices.SortFunc(p.Payments, func(a, b domain.PurchasePayment) int { return cmpInt64(a.ID, b.ID) })
	return &p, nil
}

func (s session) ListPurchases(_ context.Context, filter store.PurchaseFilter) ([]domain.Purchase, error) {
	d, done := s.read()
	defer done()

	result := make([]domain.Purchase, 0, 32)
	for _, p := range d.purchases {
		if filter.Day != nil && !p.Date.Equal(dayOf(*filter.Day)) {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		result = append(result, p)
	}

	slices.SortFunc(result, func(a, b domain.Purchase) int {
		if !a.Date.Equal(b.Date) {
			if a.Date.After(b.Date) {
				return -1
			}
			return 1
		}
		return cmpInt64(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	linesByPurchase := d.linesByPurchase()
	for i := range result {
		result[i].Lines = linesByPurchase[result[i].ID]
	}
	return result, nil
}

func (s session) UpdatePurchase(_ context.Context, p domain.Purchase) error {
	d, done := s.write()
	defer done()

	existing, ok := d.purchases[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Status = p.Status
	existing.PaidAmount = p.PaidAmount
	existing.TotalAmount = p.TotalAmount
	d.purchases[p.ID] = existing
	return nil
}

func (s session) CreatePurchasePayment(_ context.Context, p domain.PurchasePayment) (*domain.PurchasePayment, error) {
	d, done := s.write()
	defer done()

	if _, ok := d.purchases[p.PurchaseID]; !ok {
		return nil, store.ErrNotFound
	}
	p.ID = d.next("purchase_payments")
	d.purchasePayments[p.ID] = p
	return &p, nil
}

func (s session) CreateStockMovement(_ context.Context, m domain.StockMovement) error {
	if m.ProductID <= 0 {
		return store.ErrInvalidInput
	}

	d, done := s.write()
	defer done()

	m.ID = d.next("stock_movements")
	d.stockMovements = append(d.stockMovements, m)
	return nil
}

// StockMovements returns recorded movements in insertion order.
func (s *Store) StockMovements() []domain.StockMovement {
	d, done := s.read()
	defer done()
	return slices.Clone(d.stockMovements)
}

func (s session) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	d, done := s.write()
	defer done()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	d.auditLogs = append(d.auditLogs, entry)
	return nil
}

func (s session) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	d, done := s.read()
	defer done()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range d.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s session) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	d, done := s.read()
	defer done()

	users := make([]domain.UserAccount, 0, len(d.usersByUsername))
	for _, user := range d.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s session) UpdateUserPassword(_ context.Context, username string, password string) error {
	d, done := s.write()
	defer done()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := d.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	d.usersByUsername[username] = user
	return nil
}

func (d *dataset) linesByReceipt() map[int64][]domain.ReceiptLine {
	grouped := make(map[int64][]domain.ReceiptLine)
	for _, line := range d.receiptLines {
		grouped[line.ReceiptID] = append(grouped[line.ReceiptID], line)
	}
	for id := range grouped {
		slices.SortFunc(grouped[id], func(a, b domain.ReceiptLine) int { return cmpInt64(a.ID, b.ID) })
	}
	return grouped
}

func (d *dataset) linesByPurchase() map[int64][]domain.PurchaseLine {
	grouped := make(map[int64][]domain.PurchaseLine)
	for _, line := range d.purchaseLines {
		grouped[line.PurchaseID] = append(grouped[line.PurchaseID], line)
	}
	for id := range grouped {
		slices.SortFunc(grouped[id], func(a, b domain.PurchaseLine) int { return cmpInt64(a.ID, b.ID) })
	}
	return grouped
}

func sortOutlets(outlets []domain.Outlet) {
	slices.SortFunc(outlets, func(a, b domain.Outlet) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
