package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/internal/balance"
	"github.com/ovlasenko/webshop-backend/internal/cart"
	"github.com/ovlasenko/webshop-backend/internal/catalog"
	"github.com/ovlasenko/webshop-backend/internal/checkout"
	"github.com/ovlasenko/webshop-backend/internal/inventory"
	"github.com/ovlasenko/webshop-backend/internal/notifications"
	"github.com/ovlasenko/webshop-backend/internal/orders"
	"github.com/ovlasenko/webshop-backend/pkg/config"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

type txRunner struct {
	db *gorm.DB
}

func (r *txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type testEnv struct {
	db      *gorm.DB
	handler http.Handler
	store   *fakeStore
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUserHeaderRequired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without X-User-Id, got %d", rec.Code)
	}
}

func TestCartAndCheckoutFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := uuid.New()
	product := seedProduct(t, env.db, "soldering iron", "25.00", 4)
	seedBalance(t, env.db, user, "100.00")

	body := fmt.Sprintf(`{"product_id":%q,"quantity":2}`, product)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("X-User-Id", user.String())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add to cart: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", user.String())
	req.Header.Set("Idempotency-Key", uuid.NewString())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data checkout.Result `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if !envelope.Data.TotalSum.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected total 50.00, got %s", envelope.Data.TotalSum)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", user.String())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), envelope.Data.OrderID.String()) {
		t.Fatalf("order list missing new order: %s", rec.Body.String())
	}
}

func TestRemoveCartLineRespondsNoContentWithoutBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := uuid.New()
	product := seedProduct(t, env.db, "heat gun", "55.00", 3)

	body := fmt.Sprintf(`{"product_id":%q,"quantity":1}`, product)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body))
	req.Header.Set("X-User-Id", user.String())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add to cart: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cart/"+product.String(), nil)
	req.Header.Set("X-User-Id", user.String())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove line: expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("204 must not carry a body, got %q", rec.Body.String())
	}
}

func TestCheckoutIdempotencyReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := uuid.New()
	product := seedProduct(t, env.db, "voltmeter", "30.00", 2)
	seedBalance(t, env.db, user, "100.00")
	seedCartLine(t, env.db, user, product, 1)

	key := uuid.NewString()
	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
		req.Header.Set("X-User-Id", user.String())
		req.Header.Set("Idempotency-Key", key)
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first checkout: expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected stored 201, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatal("replay must return the stored response body")
	}

	var count int64
	if err := env.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("replay must not create a second order, got %d", count)
	}
}

func TestCheckoutMissingIdempotencyKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := uuid.New()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", user.String())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
}

func TestDepositAndBalance(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := uuid.New()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/balance/deposit", strings.NewReader(`{"amount":"75.50"}`))
	req.Header.Set("X-User-Id", user.String())
	req.Header.Set("Idempotency-Key", uuid.NewString())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req.Header.Set("X-User-Id", user.String())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get balance: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "75.5") {
		t.Fatalf("balance response missing amount: %s", rec.Body.String())
	}
}

func TestProductLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body := `{"name":"oscilloscope","old_price":"200.00","discount":10,"available":true,"available_quantity":3}`
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"price":"180`) {
		t.Fatalf("expected derived price in response: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?name=oscilloscope", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "oscilloscope") {
		t.Fatalf("search: unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExternalStockReduction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	product := seedProduct(t, env.db, "multimeter", "15.00", 8)

	body := fmt.Sprintf(`{"product_id":%q,"quantity":5}`, product)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/external/stock-reduction", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", uuid.NewString())
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stock reduction: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var loaded models.Product
	if err := env.db.First(&loaded, "id = ?", product).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if loaded.AvailableQuantity != 3 {
		t.Fatalf("expected remaining stock 3, got %d", loaded.AvailableQuantity)
	}

	// Without an Idempotency-Key the endpoint refuses to run.
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/external/stock-reduction", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.ProductCategory{},
		&models.Product{},
		&models.ProductAttribute{},
		&models.CartItem{},
		&models.UserBalance{},
		&models.UserBalanceHistory{},
		&models.Order{},
		&models.OrderItem{},
		&models.OutboxEvent{},
		&models.Notification{},
		&models.ProcessedEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := &txRunner{db: db}
	events := outbox.NewService(outbox.NewRepository(db), nil)
	catalogRepo := catalog.NewRepository(db)

	catalogSvc, err := catalog.NewService(catalogRepo)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	cartSvc, err := cart.NewService(cart.NewRepository(db), catalogRepo)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	balanceSvc, err := balance.NewService(balance.NewRepository(db), runner, events, nil)
	if err != nil {
		t.Fatalf("balance service: %v", err)
	}
	ordersSvc, err := orders.NewService(orders.NewRepository(db))
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	inventorySvc, err := inventory.NewService(runner, events, nil)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	checkoutSvc, err := checkout.NewService(
		runner,
		cartSvc,
		balanceSvc,
		orders.NewRepository(db),
		events,
		config.CheckoutConfig{LockTimeout: 5 * time.Second, RetryOnceOnTx: true},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	store := newFakeStore()
	handler := NewRouter(Dependencies{
		DBPinger:      stubPinger{},
		RedisPinger:   stubPinger{},
		Idempotency:   store,
		Catalog:       catalogSvc,
		Cart:          cartSvc,
		Balance:       balanceSvc,
		Orders:        ordersSvc,
		Checkout:      checkoutSvc,
		Inventory:     inventorySvc,
		Notifications: notifications.NewRepository(db),
	})

	return &testEnv{db: db, handler: handler, store: store}
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, qty int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:                uuid.New(),
		Name:              name,
		OldPrice:          decimal.RequireFromString(price),
		Price:             decimal.RequireFromString(price),
		Available:         qty > 0,
		AvailableQuantity: qty,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func seedBalance(t *testing.T, db *gorm.DB, user uuid.UUID, amount string) {
	t.Helper()
	row := models.UserBalance{UserID: user, Amount: decimal.RequireFromString(amount)}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

func seedCartLine(t *testing.T, db *gorm.DB, user, product uuid.UUID, qty int) {
	t.Helper()
	line := models.CartItem{
		ID:        uuid.New(),
		UserID:    user,
		ProductID: product,
		Quantity:  qty,
		Price:     decimal.Zero,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
}
