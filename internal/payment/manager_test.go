package payment

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/metrics"
	"github.com/nikkes174/VPNBot/internal/panel"
	"github.com/nikkes174/VPNBot/internal/store"
)

type fakeGateway struct {
	statuses []Status // consumed one per Find call
	meta     *Metadata
	created  []Charge
	finds    int
}

func (g *fakeGateway) Create(_ context.Context, charge Charge) (*CreatedPayment, error) {
	g.created = append(g.created, charge)
	return &CreatedPayment{ID: "pay-1", ConfirmationURL: "https://pay.example/1"}, nil
}

func (g *fakeGateway) Find(_ context.Context, _ string) (Status, *Metadata, error) {
	idx := g.finds
	g.finds++
	if idx >= len(g.statuses) {
		return StatusPending, g.meta, nil
	}
	return g.statuses[idx], g.meta, nil
}

type fakeProvisioner struct {
	nextPort  int
	created   []panel.Credential
	remarks   []string
	createErr error
	updated   []string
	updateErr error
}

func (p *fakeProvisioner) CreateInbound(_ context.Context, userID int64, trial bool) (*panel.Credential, error) {
	remark := fmt.Sprintf("user_%d", userID)
	if trial {
		remark = fmt.Sprintf("user_%d_prob", userID)
	}
	return p.add(remark)
}

func (p *fakeProvisioner) CreatePairInbound(_ context.Context, userID int64) (*panel.Credential, error) {
	return p.add(fmt.Sprintf("user_%d_pair", userID))
}

func (p *fakeProvisioner) add(remark string) (*panel.Credential, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.nextPort++
	cred := panel.Credential{UUID: fmt.Sprintf("uuid-%d", p.nextPort), Port: 50100 + p.nextPort}
	p.created = append(p.created, cred)
	p.remarks = append(p.remarks, remark)
	return &cred, nil
}

func (p *fakeProvisioner) UpdateClient(_ context.Context, clientUUID string, days int) error {
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updated = append(p.updated, clientUUID)
	return nil
}

func (p *fakeProvisioner) Link(clientUUID string, port int, tag string) string {
	return fmt.Sprintf("vless://%s@ip:%d#%s", clientUUID, port, tag)
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) SendMessage(_ int64, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) SendHTML(_ int64, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

func newTestManager(st store.Store, gw Gateway, prov Provisioner, n Notifier) *Manager {
	m := NewManager(st, gw, prov, n, metrics.NewCollectorWithRegistry(prometheus.NewRegistry()), "https://t.me/bot")
	m.pollInterval = time.Millisecond
	return m
}

func TestCreatePaymentAppliesDiscount(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{UserID: 1, RefCount: 10})
	gw := &fakeGateway{}
	m := newTestManager(st, gw, &fakeProvisioner{}, &fakeNotifier{})

	created, free, err := m.CreatePayment(context.Background(), 1, consts.TariffSolo)
	require.NoError(t, err)
	assert.False(t, free)
	require.NotNil(t, created)

	require.Len(t, gw.created, 1)
	charge := gw.created[0]
	assert.Equal(t, 90.0, charge.Amount, "120₽ minus the 25%% tier")
	assert.Equal(t, "RUB", charge.Currency)
	assert.Equal(t, int64(1), charge.Metadata.UserID)
	assert.Equal(t, 25, charge.Metadata.Discount)
}

func TestCreatePaymentFreeAtTopTier(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{UserID: 1, RefCount: 21})
	gw := &fakeGateway{}
	m := newTestManager(st, gw, &fakeProvisioner{}, &fakeNotifier{})

	created, free, err := m.CreatePayment(context.Background(), 1, consts.TariffSolo)
	require.NoError(t, err)
	assert.True(t, free)
	assert.Nil(t, created)
	assert.Empty(t, gw.created, "100%% discount must not create a gateway charge")
}

func TestCreatePaymentUnknownTariff(t *testing.T) {
	m := newTestManager(store.NewMemoryStore(), &fakeGateway{}, &fakeProvisioner{}, &fakeNotifier{})
	_, _, err := m.CreatePayment(context.Background(), 1, "platinum")
	require.ErrorIs(t, err, ErrUnknownTariff)
}

func TestCheckPaymentLoopRenewsExistingCredential(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{UserID: 1, Username: "alice", ClientUUID: "uuid-old"})
	gw := &fakeGateway{
		statuses: []Status{StatusPending, StatusSucceeded},
		meta:     &Metadata{UserID: 1, Tariff: consts.TariffSolo},
	}
	prov := &fakeProvisioner{}
	n := &fakeNotifier{}
	m := newTestManager(st, gw, prov, n)

	m.CheckPaymentLoop(context.Background(), "pay-1", 1, "alice", 30)

	assert.Equal(t, []string{"uuid-old"}, prov.updated, "existing credential is renewed, not recreated")
	assert.Empty(t, prov.created)

	rec, err := st.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, rec.SubEnd.IsZero(), "subscription window must be persisted")

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "Подписка продлена")
}

func TestCheckPaymentLoopProvisionsNewCredential(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &fakeGateway{
		statuses: []Status{StatusSucceeded},
		meta:     &Metadata{UserID: 2, Tariff: consts.TariffSolo},
	}
	prov := &fakeProvisioner{}
	n := &fakeNotifier{}
	m := newTestManager(st, gw, prov, n)

	m.CheckPaymentLoop(context.Background(), "pay-1", 2, "bob", 30)

	require.Len(t, prov.created, 1)
	uuid, err := st.UUIDByUser(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, prov.created[0].UUID, uuid)

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "Подписка активирована")
	assert.Contains(t, n.messages[0], prov.created[0].UUID)
}

func TestCheckPaymentLoopTimeout(t *testing.T) {
	st := store.NewMemoryStore()
	gw := &fakeGateway{} // never succeeds
	prov := &fakeProvisioner{}
	n := &fakeNotifier{}
	m := newTestManager(st, gw, prov, n)

	m.CheckPaymentLoop(context.Background(), "pay-1", 3, "carol", 30)

	assert.Equal(t, consts.PaymentPollTries, gw.finds)
	assert.Empty(t, prov.created)
	assert.Empty(t, prov.updated)
	require.Len(t, n.messages, 1)
	assert.Equal(t, consts.MsgPaymentTimeout, n.messages[0])
}

func TestFulfillPairProvisionsTwoCredentials(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{UserID: 4, Username: "dave"})
	prov := &fakeProvisioner{}
	n := &fakeNotifier{}
	m := newTestManager(st, &fakeGateway{}, prov, n)

	m.Fulfill(context.Background(), 4, "dave", consts.TariffPair, 30)

	require.Len(t, prov.created, 2)
	assert.NotEqual(t, prov.created[0].UUID, prov.created[1].UUID)
	assert.NotEqual(t, prov.created[0].Port, prov.created[1].Port)

	// The second credential carries its own panel identity, since the
	// panel rejects duplicate client emails.
	assert.Equal(t, []string{"user_4", "user_4_pair"}, prov.remarks)

	rec, err := st.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, prov.created[0].UUID, rec.ClientUUID)
	assert.Equal(t, prov.created[1].UUID, rec.PairUUID)

	// Both links arrive in a single message.
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], prov.created[0].UUID)
	assert.Contains(t, n.messages[0], prov.created[1].UUID)
	assert.Equal(t, 2, strings.Count(n.messages[0], "vless://"))
}

func TestFulfillPairFailureSendsNotice(t *testing.T) {
	st := store.NewMemoryStore()
	prov := &fakeProvisioner{createErr: fmt.Errorf("panel down")}
	n := &fakeNotifier{}
	m := newTestManager(st, &fakeGateway{}, prov, n)

	m.Fulfill(context.Background(), 4, "dave", consts.TariffPair, 30)

	require.Len(t, n.messages, 1)
	assert.Equal(t, consts.MsgPairFailed, n.messages[0])
}

func TestReferralBonusBoundary(t *testing.T) {
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		subEnd     time.Time
		wantDays   int
		wantCredit bool
	}{
		{"referrer expired yesterday", today.AddDate(0, 0, -1), 0, false},
		{"referrer ends today", today, consts.ReferralBonusDays, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			st.Seed(
				store.Record{UserID: 100, SubEnd: tt.subEnd, RefCount: 2},
				store.Record{UserID: 1, ReferrerID: 100},
			)
			m := newTestManager(st, &fakeGateway{}, &fakeProvisioner{}, &fakeNotifier{})
			m.now = func() time.Time { return today }

			m.applyReferralBonus(context.Background(), 1)

			referrer, err := st.Get(context.Background(), 100)
			require.NoError(t, err)
			if tt.wantCredit {
				assert.Equal(t, tt.subEnd.AddDate(0, 0, consts.ReferralBonusDays), referrer.SubEnd)
				assert.Equal(t, 3, referrer.RefCount)
			} else {
				assert.Equal(t, tt.subEnd, referrer.SubEnd, "inactive referrer row must stay untouched")
				assert.Equal(t, 2, referrer.RefCount)
			}
		})
	}
}

func TestReferralBonusNoReferrer(t *testing.T) {
	st := store.NewMemoryStore()
	st.Seed(store.Record{UserID: 1})
	m := newTestManager(st, &fakeGateway{}, &fakeProvisioner{}, &fakeNotifier{})

	// No referrer set: nothing to do, nothing to crash on.
	m.applyReferralBonus(context.Background(), 1)
	m.applyReferralBonus(context.Background(), 999)
}
