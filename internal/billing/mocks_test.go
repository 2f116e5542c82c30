package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
	"github.com/wifibill/hotspot-server/internal/payment"
	"github.com/wifibill/hotspot-server/internal/router"
	"github.com/wifibill/hotspot-server/internal/storage"
)

// Common test errors
var (
	ErrMockGateway = errors.New("mock gateway error")
)

// ========== In-memory store ==========

// memStore implements storage.Store over maps for coordinator tests
type memStore struct {
	mu sync.Mutex

	users    map[uuid.UUID]*models.User
	zones    map[uuid.UUID]*models.Zone
	payments map[uuid.UUID]*models.Payment
	vouchers map[uuid.UUID]*models.Voucher
	sessions map[uuid.UUID]*models.RouterSession
	events   []*models.EventLog
	portal   *models.PortalConfig

	// FailVoucherCreates makes the next N CreateVoucher calls report a code
	// collision, for testing code regeneration.
	FailVoucherCreates int
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*models.User),
		zones:    make(map[uuid.UUID]*models.Zone),
		payments: make(map[uuid.UUID]*models.Payment),
		vouchers: make(map[uuid.UUID]*models.Voucher),
		sessions: make(map[uuid.UUID]*models.RouterSession),
	}
}

// Transactions are a no-op; the mock is already serialized by its mutex.
func (m *memStore) BeginTx(ctx context.Context) (storage.Store, error) { return m, nil }
func (m *memStore) Commit() error                                      { return nil }
func (m *memStore) Rollback() error                                    { return nil }
func (m *memStore) Close() error                                       { return nil }

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) UpdateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) CreateZone(ctx context.Context, zone *models.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}
	m.zones[zone.ID] = zone
	return nil
}

func (m *memStore) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return z, nil
}

func (m *memStore) UpdateZone(ctx context.Context, zone *models.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[zone.ID]; !ok {
		return storage.ErrNotFound
	}
	m.zones[zone.ID] = zone
	return nil
}

func (m *memStore) DeleteZone(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.zones, id)
	return nil
}

func (m *memStore) ListZones(ctx context.Context, limit, offset int) ([]*models.Zone, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Reference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListPayments(ctx context.Context, limit, offset int) ([]*models.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) MarkPaymentSucceeded(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.resolvePayment(id, models.PaymentStatusSucceeded)
}

func (m *memStore) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.resolvePayment(id, models.PaymentStatusFailed)
}

func (m *memStore) resolvePayment(id uuid.UUID, status models.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Status != models.PaymentStatusPending {
		return false, nil
	}
	now := time.Now()
	p.Status = status
	p.ResolvedAt = &now
	p.UpdatedAt = now
	return true, nil
}

func (m *memStore) SetPaymentVoucher(ctx context.Context, paymentID, voucherID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return storage.ErrNotFound
	}
	p.VoucherID = &voucherID
	return nil
}

func (m *memStore) SetProvisionState(ctx context.Context, paymentID uuid.UUID, state models.ProvisionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return storage.ErrNotFound
	}
	p.ProvisionState = state
	return nil
}

func (m *memStore) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.payments {
		if p.Status == models.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CreateVoucher(ctx context.Context, v *models.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailVoucherCreates > 0 {
		m.FailVoucherCreates--
		return storage.ErrDuplicateKey
	}
	for _, existing := range m.vouchers {
		if existing.Code == v.Code {
			return storage.ErrDuplicateKey
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	cp := *v
	m.vouchers[v.ID] = &cp
	return nil
}

func (m *memStore) GetVoucher(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vouchers {
		if v.Code == code {
			cp := *v
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) UpdateVoucher(ctx context.Context, v *models.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vouchers[v.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *v
	m.vouchers[v.ID] = &cp
	return nil
}

func (m *memStore) DeleteVoucher(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vouchers[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.vouchers, id)
	return nil
}

func (m *memStore) ListVouchers(ctx context.Context, limit, offset int) ([]*models.Voucher, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Voucher, 0, len(m.vouchers))
	for _, v := range m.vouchers {
		cp := *v
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListExpiredVouchers(ctx context.Context, now time.Time) ([]*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Voucher
	for _, v := range m.vouchers {
		if v.ExpiresAt.Before(now) &&
			(v.Status == models.VoucherStatusUnused || v.Status == models.VoucherStatusActive) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CreateSession(ctx context.Context, s *models.RouterSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) EndSession(ctx context.Context, zoneID uuid.UUID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	now := time.Now()
	for _, s := range m.sessions {
		if s.ZoneID == zoneID && s.Username == username && s.Status == models.SessionStatusActive {
			s.Status = models.SessionStatusEnded
			s.EndedAt = &now
			found = true
		}
	}
	if !found {
		return storage.ErrNotFound
	}
	return nil
}

func (m *memStore) ListActiveSessions(ctx context.Context, zoneID uuid.UUID) ([]*models.RouterSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RouterSession
	for _, s := range m.sessions {
		if s.ZoneID == zoneID && s.Status == models.SessionStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CountActiveSessions(ctx context.Context, zoneID uuid.UUID) (int, error) {
	sessions, _ := m.ListActiveSessions(ctx, zoneID)
	return len(sessions), nil
}

func (m *memStore) ReplaceActiveSessions(ctx context.Context, zoneID uuid.UUID, sessions []*models.RouterSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, s := range m.sessions {
		if s.ZoneID == zoneID && s.Status == models.SessionStatusActive {
			s.Status = models.SessionStatusEnded
			s.EndedAt = &now
		}
	}
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		m.sessions[s.ID] = s
	}
	return nil
}

func (m *memStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memStore) ListEventLogs(ctx context.Context, filters storage.EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.EventLog, len(m.events))
	copy(out, m.events)
	return out, int64(len(out)), nil
}

func (m *memStore) GetPortalConfig(ctx context.Context) (*models.PortalConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.portal == nil {
		return nil, storage.ErrNotFound
	}
	return m.portal, nil
}

func (m *memStore) SavePortalConfig(ctx context.Context, cfg *models.PortalConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portal = cfg
	return nil
}

func (m *memStore) eventTypes() []models.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]models.EventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// ========== Mock gateway ==========

// mockGateway implements payment.Gateway with injectable behavior
type mockGateway struct {
	mu           sync.Mutex
	provider     models.PaymentProvider
	RequestErr   error
	PollStatus   payment.Status
	PollErr      error
	RequestCalls int
	LastRequest  payment.Request
}

func newMockGateway(provider models.PaymentProvider) *mockGateway {
	return &mockGateway{provider: provider, PollStatus: payment.StatusPending}
}

func (g *mockGateway) Name() models.PaymentProvider { return g.provider }

func (g *mockGateway) RequestPayment(ctx context.Context, r payment.Request) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RequestCalls++
	g.LastRequest = r
	return g.RequestErr
}

func (g *mockGateway) CheckStatus(ctx context.Context, reference string) (payment.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.PollStatus, g.PollErr
}

// ========== Flaky provisioner ==========

// flakyProvisioner wraps the simulator and fails CreateLogin with a
// connection error while Broken is set
type flakyProvisioner struct {
	*router.SimulatedProvisioner
	mu     sync.Mutex
	broken bool
	calls  int
}

func newFlakyProvisioner() *flakyProvisioner {
	return &flakyProvisioner{SimulatedProvisioner: router.NewSimulatedProvisioner()}
}

func (p *flakyProvisioner) setBroken(broken bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broken = broken
}

func (p *flakyProvisioner) CreateLogin(ctx context.Context, target router.Target, login router.Login) error {
	p.mu.Lock()
	p.calls++
	broken := p.broken
	p.mu.Unlock()
	if broken {
		return router.ErrConnection
	}
	return p.SimulatedProvisioner.CreateLogin(ctx, target, login)
}

// ========== Recording publisher ==========

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{messages: make(map[string][][]byte)}
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[subject] = append(p.messages[subject], data)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[subject])
}
