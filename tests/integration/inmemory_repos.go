package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Bank Connection Repo ---

type inMemoryBankConnectionRepo struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*domain.BankConnection
}

func newInMemoryBankConnectionRepo() *inMemoryBankConnectionRepo {
	return &inMemoryBankConnectionRepo{conns: make(map[uuid.UUID]*domain.BankConnection)}
}

func (r *inMemoryBankConnectionRepo) Create(ctx context.Context, conn *domain.BankConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *inMemoryBankConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryBankConnectionRepo) List(ctx context.Context, ownerID uuid.UUID) ([]domain.BankConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.BankConnection
	for _, c := range r.conns {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *inMemoryBankConnectionRepo) SetKeysConfirmed(ctx context.Context, id uuid.UUID, confirmed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("bank connection not found")
	}
	c.KeysConfirmed = confirmed
	return nil
}

// --- In-Memory EBICS Subscriber Repo ---

type inMemoryEbicsSubscriberRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*domain.EbicsSubscriber
}

func newInMemoryEbicsSubscriberRepo() *inMemoryEbicsSubscriberRepo {
	return &inMemoryEbicsSubscriberRepo{subs: make(map[uuid.UUID]*domain.EbicsSubscriber)}
}

func (r *inMemoryEbicsSubscriberRepo) Create(ctx context.Context, sub *domain.EbicsSubscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[sub.BankConnectionID] = &cp
	return nil
}

func (r *inMemoryEbicsSubscriberRepo) GetByConnectionID(ctx context.Context, connID uuid.UUID) (*domain.EbicsSubscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[connID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// GetForUpdate ignores tx: it behaves like GetByConnectionID. The
// in-memory repo has no real row-level locking, only its own mutex around
// each individual call.
func (r *inMemoryEbicsSubscriberRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, connID uuid.UUID) (*domain.EbicsSubscriber, error) {
	return r.GetByConnectionID(ctx, connID)
}

func (r *inMemoryEbicsSubscriberRepo) Update(ctx context.Context, tx pgx.Tx, sub *domain.EbicsSubscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[sub.BankConnectionID] = &cp
	return nil
}

// --- In-Memory Bank Account Repo ---

type inMemoryBankAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.BankAccount
}

func newInMemoryBankAccountRepo() *inMemoryBankAccountRepo {
	return &inMemoryBankAccountRepo{accounts: make(map[uuid.UUID]*domain.BankAccount)}
}

func (r *inMemoryBankAccountRepo) Create(ctx context.Context, acct *domain.BankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *acct
	r.accounts[acct.ID] = &cp
	return nil
}

func (r *inMemoryBankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryBankAccountRepo) GetByIBAN(ctx context.Context, iban string) (*domain.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.IBAN == iban {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryBankAccountRepo) List(ctx context.Context) ([]domain.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BankAccount, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (r *inMemoryBankAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BankAccount, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryBankAccountRepo) Update(ctx context.Context, tx pgx.Tx, acct *domain.BankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *acct
	r.accounts[acct.ID] = &cp
	return nil
}

// --- In-Memory Offered Bank Account Repo ---

type inMemoryOfferedBankAccountRepo struct {
	mu      sync.RWMutex
	offered map[uuid.UUID]*domain.OfferedBankAccount
}

func newInMemoryOfferedBankAccountRepo() *inMemoryOfferedBankAccountRepo {
	return &inMemoryOfferedBankAccountRepo{offered: make(map[uuid.UUID]*domain.OfferedBankAccount)}
}

func (r *inMemoryOfferedBankAccountRepo) Replace(ctx context.Context, connID uuid.UUID, offered []domain.OfferedBankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.offered {
		if o.BankConnectionID == connID {
			delete(r.offered, id)
		}
	}
	for _, o := range offered {
		cp := o
		r.offered[o.ID] = &cp
	}
	return nil
}

func (r *inMemoryOfferedBankAccountRepo) ListByConnection(ctx context.Context, connID uuid.UUID) ([]domain.OfferedBankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.OfferedBankAccount
	for _, o := range r.offered {
		if o.BankConnectionID == connID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *inMemoryOfferedBankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.OfferedBankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.offered[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOfferedBankAccountRepo) MarkImported(ctx context.Context, id uuid.UUID, bankAccountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offered[id]
	if !ok {
		return fmt.Errorf("offered bank account not found")
	}
	o.ImportedBankAccountID = &bankAccountID
	return nil
}

// --- In-Memory Bank Message Repo ---

type inMemoryBankMessageRepo struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]*domain.BankMessage
}

func newInMemoryBankMessageRepo() *inMemoryBankMessageRepo {
	return &inMemoryBankMessageRepo{messages: make(map[uuid.UUID]*domain.BankMessage)}
}

func (r *inMemoryBankMessageRepo) Create(ctx context.Context, msg *domain.BankMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *inMemoryBankMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *inMemoryBankMessageRepo) ListByConnection(ctx context.Context, connID uuid.UUID, limit int) ([]domain.BankMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.BankMessage
	for _, m := range r.messages {
		if m.BankConnectionID == connID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Bank Transaction Entry Repo ---

type inMemoryBankTransactionEntryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.BankTransactionEntry
	byDedup map[string]uuid.UUID // bankAccountID|transactionID -> entry ID
}

func newInMemoryBankTransactionEntryRepo() *inMemoryBankTransactionEntryRepo {
	return &inMemoryBankTransactionEntryRepo{
		entries: make(map[uuid.UUID]*domain.BankTransactionEntry),
		byDedup: make(map[string]uuid.UUID),
	}
}

func dedupKey(bankAccountID uuid.UUID, transactionID string) string {
	return bankAccountID.String() + "|" + transactionID
}

func (r *inMemoryBankTransactionEntryRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, entry *domain.BankTransactionEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dedupKey(entry.BankAccountID, entry.TransactionID)
	if _, exists := r.byDedup[key]; exists {
		return false, nil
	}
	cp := *entry
	r.entries[entry.ID] = &cp
	r.byDedup[key] = entry.ID
	return true, nil
}

func (r *inMemoryBankTransactionEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankTransactionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryBankTransactionEntryRepo) GetByTransactionID(ctx context.Context, bankAccountID uuid.UUID, transactionID string) (*domain.BankTransactionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byDedup[dedupKey(bankAccountID, transactionID)]
	if !ok {
		return nil, nil
	}
	cp := *r.entries[id]
	return &cp, nil
}

func (r *inMemoryBankTransactionEntryRepo) ListSince(ctx context.Context, bankAccountID uuid.UUID, afterID *uuid.UUID, limit int) ([]domain.BankTransactionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BankTransactionEntry
	for _, e := range r.entries {
		if e.BankAccountID == bankAccountID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if afterID != nil {
		for i, e := range out {
			if e.ID == *afterID {
				out = out[i+1:]
				break
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryBankTransactionEntryRepo) MarkSuperseded(ctx context.Context, tx pgx.Tx, id uuid.UUID, supersededBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("bank transaction entry not found")
	}
	e.UpdatedByID = &supersededBy
	return nil
}

// --- In-Memory Payment Initiation Repo ---

type inMemoryPaymentInitiationRepo struct {
	mu           sync.RWMutex
	initiations  map[uuid.UUID]*domain.PaymentInitiation
}

func newInMemoryPaymentInitiationRepo() *inMemoryPaymentInitiationRepo {
	return &inMemoryPaymentInitiationRepo{initiations: make(map[uuid.UUID]*domain.PaymentInitiation)}
}

func (r *inMemoryPaymentInitiationRepo) Create(ctx context.Context, p *domain.PaymentInitiation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.initiations[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentInitiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInitiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.initiations[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentInitiationRepo) GetByUID(ctx context.Context, bankAccountID uuid.UUID, uid string) (*domain.PaymentInitiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.initiations {
		if p.BankAccountID == bankAccountID && p.UID != nil && *p.UID == uid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentInitiationRepo) GetByPaymentInformationID(ctx context.Context, bankAccountID uuid.UUID, paymentInformationID string) (*domain.PaymentInitiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.initiations {
		if p.BankAccountID == bankAccountID && p.PaymentInformationID == paymentInformationID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentInitiationRepo) ListUnsubmitted(ctx context.Context, bankAccountID uuid.UUID) ([]domain.PaymentInitiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PaymentInitiation
	for _, p := range r.initiations {
		if p.BankAccountID == bankAccountID && !p.Submitted && !p.Invalid {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *inMemoryPaymentInitiationRepo) MarkSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.initiations[id]
	if !ok {
		return fmt.Errorf("payment initiation not found")
	}
	p.Submitted = true
	p.SubmittedAt = &submittedAt
	return nil
}

func (r *inMemoryPaymentInitiationRepo) MarkInvalid(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.initiations[id]
	if !ok {
		return fmt.Errorf("payment initiation not found")
	}
	p.Invalid = true
	return nil
}

func (r *inMemoryPaymentInitiationRepo) LinkConfirmation(ctx context.Context, id uuid.UUID, entryID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.initiations[id]
	if !ok {
		return fmt.Errorf("payment initiation not found")
	}
	p.ConfirmationTransactionID = &entryID
	return nil
}

// --- In-Memory Scheduled Task Repo ---

type inMemoryScheduledTaskRepo struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.ScheduledTask
}

func newInMemoryScheduledTaskRepo() *inMemoryScheduledTaskRepo {
	return &inMemoryScheduledTaskRepo{tasks: make(map[uuid.UUID]*domain.ScheduledTask)}
}

func (r *inMemoryScheduledTaskRepo) Create(ctx context.Context, t *domain.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *inMemoryScheduledTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryScheduledTaskRepo) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]domain.ScheduledTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ScheduledTask
	for _, t := range r.tasks {
		if t.ResourceType == resourceType && t.ResourceID == resourceID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *inMemoryScheduledTaskRepo) ListAll(ctx context.Context) ([]domain.ScheduledTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ScheduledTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (r *inMemoryScheduledTaskRepo) RecordExecution(ctx context.Context, id uuid.UUID, prevEpochSec int64, nextEpochSec int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("scheduled task not found")
	}
	t.PrevExecutionEpochSec = &prevEpochSec
	t.NextExecutionEpochSec = nextEpochSec
	return nil
}

// --- In-Memory API User Repo ---

type inMemoryAPIUserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.APIUser
}

func newInMemoryAPIUserRepo() *inMemoryAPIUserRepo {
	return &inMemoryAPIUserRepo{users: make(map[string]*domain.APIUser)}
}

func (r *inMemoryAPIUserRepo) Create(ctx context.Context, u *domain.APIUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.Username]; exists {
		return fmt.Errorf("username already exists")
	}
	cp := *u
	r.users[u.Username] = &cp
	return nil
}

func (r *inMemoryAPIUserRepo) GetByUsername(ctx context.Context, username string) (*domain.APIUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing; the
// in-memory repos above serialize access through their own mutexes instead
// of relying on real row locks.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
