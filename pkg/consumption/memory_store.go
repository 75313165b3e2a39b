package consumption

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wanderaudio/guidekit/pkg/creditledger"
)

// memoryStore implements LedgerStore in memory for tests and local
// development. Production deployments use the postgres store in svc/access.
type memoryStore struct {
	mu           sync.Mutex
	ledgers      map[uuid.UUID]*VersionedLedger
	transactions map[uuid.UUID]map[string]Transaction
}

// NewMemoryStore returns an in-memory LedgerStore.
func NewMemoryStore() LedgerStore {
	return &memoryStore{
		ledgers:      make(map[uuid.UUID]*VersionedLedger),
		transactions: make(map[uuid.UUID]map[string]Transaction),
	}
}

func (s *memoryStore) Get(ctx context.Context, accountID uuid.UUID) (*VersionedLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vl, ok := s.ledgers[accountID]
	if !ok {
		return nil, ErrLedgerNotFound
	}
	cp := *vl
	return &cp, nil
}

func (s *memoryStore) Create(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledgers[accountID]; ok {
		return ErrLedgerAlreadyExists
	}
	s.ledgers[accountID] = &VersionedLedger{
		AccountID: accountID,
		Ledger:    ledger,
		Version:   1,
	}
	return nil
}

func (s *memoryStore) Save(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(accountID, ledger, expectedVersion)
}

func (s *memoryStore) SaveWithTransaction(ctx context.Context, accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64, txn Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[accountID][txn.IdempotencyKey]; ok {
		return ErrDuplicateTransaction
	}
	if err := s.saveLocked(accountID, ledger, expectedVersion); err != nil {
		return err
	}

	if s.transactions[accountID] == nil {
		s.transactions[accountID] = make(map[string]Transaction)
	}
	s.transactions[accountID][txn.IdempotencyKey] = txn
	return nil
}

func (s *memoryStore) GetTransaction(ctx context.Context, accountID uuid.UUID, idempotencyKey string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[accountID][idempotencyKey]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &txn, nil
}

func (s *memoryStore) saveLocked(accountID uuid.UUID, ledger creditledger.Ledger, expectedVersion int64) error {
	vl, ok := s.ledgers[accountID]
	if !ok {
		return ErrLedgerNotFound
	}
	if vl.Version != expectedVersion {
		return ErrVersionConflict
	}
	vl.Ledger = ledger
	vl.Version++
	return nil
}
