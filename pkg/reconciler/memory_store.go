package reconciler

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/entitlement"
)

// MemoryStore implements the reconciler stores and the entitlement read
// interfaces in memory, for tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[uuid.UUID]entitlement.SubscriptionRecord
	packages      map[uuid.UUID][]entitlement.OwnedPackage
	packageTxIDs  map[string]struct{}
	processed     map[string]struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[uuid.UUID]entitlement.SubscriptionRecord),
		packages:      make(map[uuid.UUID][]entitlement.OwnedPackage),
		packageTxIDs:  make(map[string]struct{}),
		processed:     make(map[string]struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, accountID uuid.UUID) (*entitlement.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.subscriptions[accountID]
	if !ok {
		return nil, entitlement.ErrSubscriptionNotFound
	}
	cp := record
	return &cp, nil
}

func (s *MemoryStore) GetByOriginalTransactionID(ctx context.Context, originalTransactionID string) (*entitlement.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.subscriptions {
		if record.OriginalTransactionID == originalTransactionID {
			cp := record
			return &cp, nil
		}
	}
	return nil, entitlement.ErrSubscriptionNotFound
}

func (s *MemoryStore) Save(ctx context.Context, record *entitlement.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[record.AccountID] = *record
	return nil
}

func (s *MemoryStore) InsertOwnedPackage(ctx context.Context, pkg entitlement.OwnedPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packageTxIDs[pkg.TransactionID]; ok {
		return ErrPackageAlreadyRecorded
	}
	s.packageTxIDs[pkg.TransactionID] = struct{}{}
	s.packages[pkg.AccountID] = append(s.packages[pkg.AccountID], pkg)
	return nil
}

func (s *MemoryStore) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[transactionID]
	return ok, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[transactionID]; ok {
		return ErrEventAlreadyProcessed
	}
	s.processed[transactionID] = struct{}{}
	return nil
}

// GetSubscriptionStatus satisfies entitlement.StatusProvider.
func (s *MemoryStore) GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) (*entitlement.SubscriptionRecord, error) {
	return s.Get(ctx, accountID)
}

// ListOwnedPackages satisfies entitlement.PackageStore.
func (s *MemoryStore) ListOwnedPackages(ctx context.Context, accountID uuid.UUID) ([]entitlement.OwnedPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.packages[accountID]), nil
}
