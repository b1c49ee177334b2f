package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
	"github.com/socialimageapp/authentication-api-service/internal/keys"
	"github.com/socialimageapp/authentication-api-service/internal/mail"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[int64]domain.User{}}
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByID(_ context.Context, userID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = passwordHash
	m.users[userID] = u
	return nil
}

type memoryVerificationRepo struct {
	mu       sync.Mutex
	requests map[int64]domain.VerificationRequest
}

func newMemoryVerificationRepo() *memoryVerificationRepo {
	return &memoryVerificationRepo{requests: map[int64]domain.VerificationRequest{}}
}

func (m *memoryVerificationRepo) Create(_ context.Context, req domain.VerificationRequest) (domain.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.CreatedAt = time.Now()
	m.requests[req.ID] = req
	return req, nil
}

func (m *memoryVerificationRepo) GetByToken(_ context.Context, token string) (domain.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Token == token {
			return r, nil
		}
	}
	return domain.VerificationRequest{}, pgx.ErrNoRows
}

func (m *memoryVerificationRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

func (m *memoryVerificationRepo) DeleteByUserAndKind(_ context.Context, userID int64, kind domain.VerificationKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.requests {
		if r.UserID == userID && r.Kind == kind {
			delete(m.requests, id)
		}
	}
	return nil
}

func (m *memoryVerificationRepo) tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r.Token)
	}
	return out
}

type memoryOrgRepo struct {
	mu          sync.Mutex
	orgs        map[int64]domain.Organization
	memberships map[int64][]int64 // org id -> user ids
	keys        map[int64]domain.OrganizationKeys
}

func newMemoryOrgRepo() *memoryOrgRepo {
	return &memoryOrgRepo{
		orgs:        map[int64]domain.Organization{},
		memberships: map[int64][]int64{},
		keys:        map[int64]domain.OrganizationKeys{},
	}
}

func (m *memoryOrgRepo) ListByUser(_ context.Context, userID int64) ([]domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Organization
	for orgID, members := range m.memberships {
		for _, member := range members {
			if member == userID {
				out = append(out, m.orgs[orgID])
			}
		}
	}
	return out, nil
}

func (m *memoryOrgRepo) GetKeys(_ context.Context, orgID int64) (domain.OrganizationKeys, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[orgID]
	if !ok {
		return domain.OrganizationKeys{}, pgx.ErrNoRows
	}
	return k, nil
}

func (m *memoryOrgRepo) IsMember(_ context.Context, orgID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range m.memberships[orgID] {
		if member == userID {
			return true, nil
		}
	}
	return false, nil
}

// memoryProvisioner mirrors the transactional consume-then-provision
// semantics over the in-memory stores.
type memoryProvisioner struct {
	mu            sync.Mutex
	users         *memoryUserRepo
	verifications *memoryVerificationRepo
	orgs          *memoryOrgRepo
	nextID        atomic.Int64
	bootstraps    atomic.Int64
}

func newMemoryProvisioner(users *memoryUserRepo, verifications *memoryVerificationRepo, orgs *memoryOrgRepo) *memoryProvisioner {
	p := &memoryProvisioner{users: users, verifications: verifications, orgs: orgs}
	p.nextID.Store(100_000)
	return p
}

func (p *memoryProvisioner) newID() int64 {
	return p.nextID.Add(1)
}

func (p *memoryProvisioner) ConsumeAndProvision(ctx context.Context, req domain.VerificationRequest) (repository.ProvisionOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.verifications.mu.Lock()
	_, present := p.verifications.requests[req.ID]
	delete(p.verifications.requests, req.ID)
	p.verifications.mu.Unlock()
	if !present {
		return repository.ProvisionOutcome{}, repository.ErrRequestConsumed
	}

	user, err := p.users.GetByID(ctx, req.UserID)
	if err != nil {
		return repository.ProvisionOutcome{}, err
	}

	outcome := repository.ProvisionOutcome{User: user}
	if !user.Verified {
		user.Verified = true
		p.users.mu.Lock()
		p.users.users[user.ID] = user
		p.users.mu.Unlock()

		org, err := p.provision(user)
		if err != nil {
			return repository.ProvisionOutcome{}, err
		}
		outcome.User = user
		outcome.Bootstrapped = true
		outcome.Organization = org
		p.bootstraps.Add(1)
	}
	return outcome, nil
}

func (p *memoryProvisioner) CreateProvisionedUser(ctx context.Context, user domain.User) (domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user.Verified = true
	created, err := p.users.Create(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := p.provision(created); err != nil {
		return domain.User{}, err
	}
	p.bootstraps.Add(1)
	return created, nil
}

func (p *memoryProvisioner) provision(user domain.User) (domain.Organization, error) {
	pair, err := keys.NewRSAPair()
	if err != nil {
		return domain.Organization{}, err
	}
	boot := domain.NewBootstrap(user, pair, p.newID, time.Now().UTC())

	p.orgs.mu.Lock()
	p.orgs.orgs[boot.Organization.ID] = boot.Organization
	p.orgs.memberships[boot.Organization.ID] = append(p.orgs.memberships[boot.Organization.ID], user.ID)
	p.orgs.keys[boot.Organization.ID] = boot.Keys
	p.orgs.mu.Unlock()

	return boot.Organization, nil
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEnqueuer) messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mail.Message, len(f.sent))
	copy(out, f.sent)
	return out
}
