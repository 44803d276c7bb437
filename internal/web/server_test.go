package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikkes174/VPNBot/internal/config"
	"github.com/nikkes174/VPNBot/internal/metrics"
	"github.com/nikkes174/VPNBot/internal/panel"
	"github.com/nikkes174/VPNBot/internal/payment"
	"github.com/nikkes174/VPNBot/internal/store"
)

type fakePayments struct {
	mu sync.Mutex

	createErr error
	free      bool
	created   *payment.CreatedPayment

	createdFor   []int64
	createdPlans []string
	polled       []string
	fulfilled    []string
}

func (f *fakePayments) CreatePayment(_ context.Context, userID int64, tariff string) (*payment.CreatedPayment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, false, f.createErr
	}
	f.createdFor = append(f.createdFor, userID)
	f.createdPlans = append(f.createdPlans, tariff)
	if f.free {
		return nil, true, nil
	}
	return f.created, false, nil
}

func (f *fakePayments) CheckPaymentLoop(_ context.Context, paymentID string, _ int64, _ string, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, paymentID)
}

func (f *fakePayments) GrantFree(_ context.Context, _ int64, _ string, tariff string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fulfilled = append(f.fulfilled, tariff)
	return nil
}

func (f *fakePayments) snapshotPolled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.polled...)
}

func (f *fakePayments) snapshotFulfilled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fulfilled...)
}

type fakePanel struct {
	createErr error
	created   []int64
}

func (f *fakePanel) CreateInbound(_ context.Context, userID int64, trial bool) (*panel.Credential, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, userID)
	return &panel.Credential{UUID: "11111111-2222-3333-4444-555555555555", Port: 50200}, nil
}

func (f *fakePanel) Link(clientUUID string, port int, tag string) string {
	return "vless://" + clientUUID + ":" + tag
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) SendMessage(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) SendHTML(_ int64, text string) error {
	return f.SendMessage(0, text)
}

func newTestServer(t *testing.T, st store.Store, payments *fakePayments, pn *fakePanel) (*Server, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	mc := metrics.NewCollectorWithRegistry(prometheus.NewRegistry())
	cfg := &config.Config{WebPort: "8000", BaseURL: "https://vpn.example.com"}
	srv, err := NewServer(cfg, st, payments, pn, notifier, mc)
	require.NoError(t, err)
	return srv, notifier
}

// waitFor polls until the condition holds; the payment loop runs in a goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTariffByKey(t *testing.T) {
	for key, want := range map[int]string{1: "solo", 2: "long", 3: "pair"} {
		got, ok := tariffByKey(key)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := tariffByKey(4)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, store.NewMemoryStore(), &fakePayments{}, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccountPageShowsSubscription(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{
		UserID:   42,
		Username: "peter",
		SubStart: time.Now().AddDate(0, 0, -5),
		SubEnd:   time.Now().AddDate(0, 0, 25),
		RefCount: 6,
	})

	srv, _ := newTestServer(t, st, &fakePayments{}, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/?user_id=42&username=peter")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, store.FormatDate(time.Now().AddDate(0, 0, 25)))
	assert.Contains(t, body, ">6<", "ref count shown")
	assert.Contains(t, body, "10%", "6 referrals earn the 10%% tier")
}

func TestCreateTrialGrantsAndNotifies(t *testing.T) {
	st := store.NewMemoryStore()
	pn := &fakePanel{}
	srv, notifier := newTestServer(t, st, &fakePayments{}, pn)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/create_trial?user_id=42&username=peter")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{42}, pn.created)

	rec, err := st.Get(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.TrialEnd.IsZero())

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "vless://")
}

func TestCreateTrialRefusedWithinCooldown(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{
		UserID:        42,
		LastTrialUsed: time.Now().AddDate(0, 0, -30),
	})

	pn := &fakePanel{}
	srv, notifier := newTestServer(t, st, &fakePayments{}, pn)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/create_trial?user_id=42&username=peter")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := readBody(t, resp)
	assert.Contains(t, body, "уже использован")
	assert.Empty(t, pn.created, "no inbound for a refused trial")
	assert.Empty(t, notifier.messages)
}

func TestCreateTrialRejectsMissingUser(t *testing.T) {
	srv, _ := newTestServer(t, store.NewMemoryStore(), &fakePayments{}, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/create_trial")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentStartsPoll(t *testing.T) {
	payments := &fakePayments{
		created: &payment.CreatedPayment{ID: "pay-1", ConfirmationURL: "https://kassa.example.com/confirm"},
	}
	srv, _ := newTestServer(t, store.NewMemoryStore(), payments, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/create_payment", "application/json",
		strings.NewReader(`{"user_id":42,"username":"peter","key":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out createPaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "https://kassa.example.com/confirm", out.ConfirmationURL)
	assert.False(t, out.Free)

	assert.Equal(t, []string{"long"}, payments.createdPlans)
	waitFor(t, func() bool { return len(payments.snapshotPolled()) == 1 })
}

func TestCreatePaymentFreeGrant(t *testing.T) {
	payments := &fakePayments{free: true}
	srv, _ := newTestServer(t, store.NewMemoryStore(), payments, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/create_payment", "application/json",
		strings.NewReader(`{"user_id":42,"username":"peter","key":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out createPaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Free)
	assert.Empty(t, out.ConfirmationURL)

	waitFor(t, func() bool { return len(payments.snapshotFulfilled()) == 1 })
	assert.Empty(t, payments.snapshotPolled())
}

func TestCreatePaymentRejectsUnknownKey(t *testing.T) {
	srv, _ := newTestServer(t, store.NewMemoryStore(), &fakePayments{}, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/create_payment", "application/json",
		strings.NewReader(`{"user_id":42,"username":"peter","key":9}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaymentRedirect(t *testing.T) {
	payments := &fakePayments{
		created: &payment.CreatedPayment{ID: "pay-2", ConfirmationURL: "https://kassa.example.com/confirm2"},
	}
	srv, _ := newTestServer(t, store.NewMemoryStore(), payments, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/payment_redirect?user_id=42&username=peter&tariff=solo")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := readBody(t, resp)
	assert.Contains(t, body, "https://kassa.example.com/confirm2")
	waitFor(t, func() bool { return len(payments.snapshotPolled()) == 1 })
}

func TestPaymentRedirectRejectsUnknownTariff(t *testing.T) {
	srv, _ := newTestServer(t, store.NewMemoryStore(), &fakePayments{}, &fakePanel{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/payment_redirect?user_id=42&tariff=ultra")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
