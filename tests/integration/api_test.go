package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "github.com/leuf-systems/nexus/internal/adapter/http/handler"
	redisStorage "github.com/leuf-systems/nexus/internal/adapter/storage/redis"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/internal/crypto"
	"github.com/leuf-systems/nexus/internal/isoxml"
	"github.com/leuf-systems/nexus/internal/scheduler"
	"github.com/leuf-systems/nexus/internal/service"
	"github.com/leuf-systems/nexus/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack against in-memory repos and an
// in-memory Redis (miniredis), with a fake EBICS bank replacing the real
// network client. This exercises the real HTTP layer, middleware,
// handlers, and services end to end.

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis

	connRepo   *inMemoryBankConnectionRepo
	subRepo    *inMemoryEbicsSubscriberRepo
	acctRepo   *inMemoryBankAccountRepo
	apiUserRepo *inMemoryAPIUserRepo
	hashSvc    *service.Argon2HashService
	ebicsClient *fakeEbicsClient
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	log := logger.New("debug", false)
	clock := domain.SystemClock{}

	connRepo := newInMemoryBankConnectionRepo()
	subRepo := newInMemoryEbicsSubscriberRepo()
	offeredRepo := newInMemoryOfferedBankAccountRepo()
	acctRepo := newInMemoryBankAccountRepo()
	msgRepo := newInMemoryBankMessageRepo()
	entryRepo := newInMemoryBankTransactionEntryRepo()
	initRepo := newInMemoryPaymentInitiationRepo()
	taskRepo := newInMemoryScheduledTaskRepo()
	apiUserRepo := newInMemoryAPIUserRepo()
	transactor := newInMemoryTransactor()

	cryptoSvc := crypto.New()
	isoSvc := isoxml.NewService()
	ebicsClient := newFakeEbicsClient()
	bus := service.NewInProcessFacadeBus(log)
	notifier := redisStorage.NewNotifier(rdb)

	connSvc := service.NewConnectionService(connRepo, subRepo, offeredRepo, acctRepo, ebicsClient, cryptoSvc, transactor, clock, log)
	ledgerSvc := service.NewLedgerService(acctRepo, connRepo, subRepo, msgRepo, entryRepo, ebicsClient, isoSvc, transactor, bus, notifier, clock, log)
	initSvc := service.NewInitiationService(initRepo, acctRepo, connRepo, subRepo, ebicsClient, isoSvc, transactor, clock, log)
	bus.OnIngested(initSvc.HandleIngested)
	schedulerSvc := scheduler.New(taskRepo, ledgerSvc, initSvc, clock, log)

	hashSvc := service.NewArgon2HashService()
	auditSvc := service.NewAuditService(nil, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ConnectionSvc:  connSvc,
		LedgerSvc:      ledgerSvc,
		InitiationSvc:  initSvc,
		SchedulerSvc:   schedulerSvc,
		TaskRepo:       taskRepo,
		APIUserRepo:    apiUserRepo,
		HashSvc:        hashSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{redisHealth},
		AuditSvc:       auditSvc,
		Notifier:       notifier,
		Logger:         log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:      server,
		redis:       mr,
		connRepo:    connRepo,
		subRepo:     subRepo,
		acctRepo:    acctRepo,
		apiUserRepo: apiUserRepo,
		hashSvc:     hashSvc,
		ebicsClient: ebicsClient,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// createAPIUser registers an APIUser directly against the in-memory repo
// (there is no self-service registration endpoint; operators are
// provisioned via the `superuser` CLI subcommand).
func (a *testApp) createAPIUser(t *testing.T, username, password string, superuser bool) {
	t.Helper()
	hash, err := a.hashSvc.Hash(password)
	require.NoError(t, err)
	require.NoError(t, a.apiUserRepo.Create(context.Background(), &domain.APIUser{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Superuser:    superuser,
		CreatedAt:    time.Now().UTC(),
	}))
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_BasicAuth_MissingCredentials(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Post(app.server.URL+"/api/v1/bank-connections", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_RequireSuperuser_RejectsOperator(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	app.createAPIUser(t, "operator", "StrongPass123!", false)

	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections", bytes.NewReader([]byte("{}")))
	req.SetBasicAuth("operator", "StrongPass123!")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIntegration_FullConnectionAndPaymentLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	app.createAPIUser(t, "admin", "StrongPass123!", true)

	// 1. Create a bank connection.
	createBody, _ := json.Marshal(map[string]interface{}{
		"name": "Main Bank",
		"type": "ebics",
		"data": map[string]string{
			"ebicsURL":  "https://bank.example.com/ebics",
			"hostID":    "HOST1",
			"partnerID": "PARTNER1",
			"userID":    "USER1",
		},
	})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections", bytes.NewReader(createBody))
	req.SetBasicAuth("admin", "StrongPass123!")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var createResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&createResp))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	connData := createResp["data"].(map[string]interface{})
	connID := connData["id"].(string)
	assert.Equal(t, "H004", connData["dialect"])
	assert.False(t, connData["keysConfirmed"].(bool))

	// 2. Run key exchange (INI -> HIA -> HPB).
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections/"+connID+"/connect", nil)
	req.SetBasicAuth("admin", "StrongPass123!")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 3. Confirm bank keys.
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections/"+connID+"/confirm-bank-keys", nil)
	req.SetBasicAuth("admin", "StrongPass123!")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 4. Discover accounts offered by the bank.
	app.ebicsClient.offered = []domain.OfferedBankAccount{
		{ID: uuid.New(), BankConnectionID: uuid.MustParse(connID), RemoteAccountID: "REM1", IBAN: "DE89370400440532013000", BIC: "COBADEFFXXX", HolderName: "ACME GmbH"},
	}
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections/"+connID+"/fetch-accounts", nil)
	req.SetBasicAuth("admin", "StrongPass123!")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var fetchResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetchResp))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetchData := fetchResp["data"].(map[string]interface{})
	items := fetchData["items"].([]interface{})
	require.Len(t, items, 1)
	offeredID := items[0].(map[string]interface{})["id"].(string)

	// 5. Import the offered account.
	importBody, _ := json.Marshal(map[string]string{
		"offeredAccountId":  offeredID,
		"nexusBankAccountId": "main-account",
	})
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections/"+connID+"/import-account", bytes.NewReader(importBody))
	req.SetBasicAuth("admin", "StrongPass123!")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var importResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&importResp))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	acctData := importResp["data"].(map[string]interface{})
	bankAccountID := acctData["id"].(string)
	assert.Equal(t, "DE89370400440532013000", acctData["iban"])

	// 6. Create a payment initiation on the imported account.
	initBody, _ := json.Marshal(map[string]interface{}{
		"iban":    "FR1420041010050500013M02606",
		"name":    "Jane Supplier",
		"amount":  "125.50",
		"subject": "invoice 42",
	})
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-accounts/"+bankAccountID+"/payment-initiations", bytes.NewReader(initBody))
	req.SetBasicAuth("admin", "StrongPass123!")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var initResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&initResp))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "initiation response: %+v", initResp)
	initData := initResp["data"].(map[string]interface{})
	initiationID := initData["id"].(string)
	assert.Equal(t, "125.50", initData["amount"])
	assert.False(t, initData["submitted"].(bool))

	// 7. Submit all pending initiations on the account.
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-accounts/"+bankAccountID+"/submit-all-payment-initiations", nil)
	req.SetBasicAuth("admin", "StrongPass123!")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 8. Fetch the initiation again and verify it is now submitted.
	req, _ = http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/bank-accounts/"+bankAccountID+"/payment-initiations/"+initiationID, nil)
	req.SetBasicAuth("admin", "StrongPass123!")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var getResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&getResp))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	getData := getResp["data"].(map[string]interface{})
	assert.True(t, getData["submitted"].(bool))
}

func TestIntegration_PaymentInitiation_ConflictingUID(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	app.createAPIUser(t, "admin", "StrongPass123!", true)

	acct := &domain.BankAccount{ID: uuid.New(), Label: "acct", IBAN: "DE89370400440532013000", CreatedAt: time.Now().UTC()}
	require.NoError(t, app.acctRepo.Create(context.Background(), acct))

	uid := "order-001"
	body1, _ := json.Marshal(map[string]interface{}{
		"iban": "FR1420041010050500013M02606", "name": "A", "amount": "10.00", "subject": "first", "uid": uid,
	})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-accounts/"+acct.ID.String()+"/payment-initiations", bytes.NewReader(body1))
	req.SetBasicAuth("admin", "StrongPass123!")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same uid, different subject -> conflict.
	body2, _ := json.Marshal(map[string]interface{}{
		"iban": "FR1420041010050500013M02606", "name": "A", "amount": "10.00", "subject": "second", "uid": uid,
	})
	req, _ = http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-accounts/"+acct.ID.String()+"/payment-initiations", bytes.NewReader(body2))
	req.SetBasicAuth("admin", "StrongPass123!")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIntegration_ListTransactions_EmptyAccount(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	app.createAPIUser(t, "admin", "StrongPass123!", true)

	acct := &domain.BankAccount{ID: uuid.New(), Label: "acct", IBAN: "DE89370400440532013000", CreatedAt: time.Now().UTC()}
	require.NoError(t, app.acctRepo.Create(context.Background(), acct))

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/bank-accounts/"+acct.ID.String()+"/transactions", nil)
	req.SetBasicAuth("admin", "StrongPass123!")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	items, ok := data["items"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, items)
}

func TestIntegration_Schedule_Create(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	app.createAPIUser(t, "admin", "StrongPass123!", true)

	acct := &domain.BankAccount{ID: uuid.New(), Label: "acct", IBAN: "DE89370400440532013000", CreatedAt: time.Now().UTC()}
	require.NoError(t, app.acctRepo.Create(context.Background(), acct))

	body, _ := json.Marshal(map[string]interface{}{
		"name":     "nightly fetch",
		"cronspec": "0 0 2 * * *",
		"type":     "fetch",
		"params":   map[string]interface{}{"level": "statement", "rangeType": "since-last"},
	})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-accounts/"+acct.ID.String()+"/schedule", bytes.NewReader(body))
	req.SetBasicAuth("admin", "StrongPass123!")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	data := created["data"].(map[string]interface{})
	assert.Equal(t, "nightly fetch", data["name"])
}

func TestIntegration_RateLimit_BankConnectionsGroup(t *testing.T) {
	app := newTestApp(t)
	defer app.close()
	app.createAPIUser(t, "admin", "StrongPass123!", true)

	var last *http.Response
	for i := 0; i < 21; i++ {
		body, _ := json.Marshal(map[string]interface{}{
			"name": fmt.Sprintf("conn-%d", i),
			"type": "ebics",
			"data": map[string]string{"ebicsURL": "https://bank.example.com/ebics", "hostID": "H", "partnerID": "P", "userID": "U"},
		})
		req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/bank-connections", bytes.NewReader(body))
		req.SetBasicAuth("admin", "StrongPass123!")
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		last = resp
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
}
