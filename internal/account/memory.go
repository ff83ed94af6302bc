package account

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same uniqueness semantics
// as the Postgres implementation. It backs tests of everything layered
// on top of the store, including the concurrent create race.
type MemoryStore struct {
	mu         sync.Mutex
	seq        int
	accounts   map[string]*Account        // by id
	byEmail    map[string]string          // lower(email) -> id
	identities map[string]*LinkedIdentity // provider + "\x00" + provider_user_id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]*Account),
		byEmail:    make(map[string]string),
		identities: make(map[string]*LinkedIdentity),
	}
}

func identityKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *m.accounts[id]
	return &cp, nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, na NewAccount) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.createLocked(na)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) CreateAccountWithIdentity(
	ctx context.Context,
	na NewAccount,
	ref IdentityRef,
) (*Account, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.identities[identityKey(ref.Provider, ref.ProviderUserID)]; exists {
		return nil, ErrIdentityTaken
	}

	a, err := m.createLocked(na)
	if err != nil {
		return nil, err
	}
	m.linkLocked(a.ID, ref)

	cp := *a
	return &cp, nil
}

func (m *MemoryStore) FindIdentity(
	ctx context.Context,
	provider string,
	providerUserID string,
) (*LinkedIdentity, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	li, ok := m.identities[identityKey(provider, providerUserID)]
	if !ok {
		return nil, nil
	}
	cp := *li
	return &cp, nil
}

func (m *MemoryStore) LinkIdentity(ctx context.Context, accountID string, ref IdentityRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.identities[identityKey(ref.Provider, ref.ProviderUserID)]; exists {
		return ErrIdentityTaken
	}
	m.linkLocked(accountID, ref)
	return nil
}

func (m *MemoryStore) SetPasswordHash(ctx context.Context, accountID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.PasswordHash = hash
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) BackfillProfile(
	ctx context.Context,
	accountID string,
	displayName string,
	avatarURL string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil
	}
	if a.DisplayName == "" {
		a.DisplayName = displayName
	}
	if a.AvatarURL == "" {
		a.AvatarURL = avatarURL
	}
	a.UpdatedAt = time.Now()
	return nil
}

// Counts returns the number of accounts and identities. Test helper.
func (m *MemoryStore) Counts() (accounts, identities int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), len(m.identities)
}

func (m *MemoryStore) createLocked(na NewAccount) (*Account, error) {
	lower := strings.ToLower(na.Email)
	if _, exists := m.byEmail[lower]; exists {
		return nil, ErrEmailTaken
	}

	m.seq++
	now := time.Now()
	a := &Account{
		ID:            "acct-" + strconv.Itoa(m.seq),
		Email:         na.Email,
		EmailVerified: na.EmailVerified,
		DisplayName:   na.DisplayName,
		AvatarURL:     na.AvatarURL,
		PasswordHash:  na.PasswordHash,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.accounts[a.ID] = a
	m.byEmail[lower] = a.ID
	return a, nil
}

func (m *MemoryStore) linkLocked(accountID string, ref IdentityRef) {
	m.seq++
	m.identities[identityKey(ref.Provider, ref.ProviderUserID)] = &LinkedIdentity{
		ID:             "ident-" + strconv.Itoa(m.seq),
		AccountID:      accountID,
		Provider:       ref.Provider,
		ProviderUserID: ref.ProviderUserID,
		RawProfile:     ref.RawProfile,
		CreatedAt:      time.Now(),
	}
}
