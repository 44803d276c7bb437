package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYooKassaCreate(t *testing.T) {
	var gotReq yooCreateRequest
	var gotAuth, gotIdempotence string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotIdempotence = r.Header.Get("Idempotence-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(yooPaymentResponse{
			ID:     "pay-abc",
			Status: "pending",
			Confirmation: yooConfirmation{
				Type:            "redirect",
				ConfirmationURL: "https://yookassa.example/confirm",
			},
		})
	}))
	defer srv.Close()

	g := NewYooKassaGateway("shop-1", "secret-1")
	g.apiURL = srv.URL

	created, err := g.Create(context.Background(), Charge{
		Amount:      90,
		Currency:    "RUB",
		Description: "Обычная подписка",
		ReturnURL:   "https://t.me/bot",
		Metadata:    Metadata{UserID: 42, Tariff: "solo", RefCount: 10, Discount: 25},
	})
	require.NoError(t, err)

	assert.Equal(t, "pay-abc", created.ID)
	assert.Equal(t, "https://yookassa.example/confirm", created.ConfirmationURL)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("shop-1:secret-1"))
	assert.Equal(t, wantAuth, gotAuth)
	assert.NotEmpty(t, gotIdempotence)

	assert.Equal(t, "90.00", gotReq.Amount.Value)
	assert.Equal(t, "RUB", gotReq.Amount.Currency)
	assert.True(t, gotReq.Capture)
	assert.Equal(t, "redirect", gotReq.Confirmation.Type)
	assert.Equal(t, "https://t.me/bot", gotReq.Confirmation.ReturnURL)
	assert.Equal(t, "42", gotReq.Metadata["user_id"])
	assert.Equal(t, "solo", gotReq.Metadata["tariff"])
	assert.Equal(t, "25", gotReq.Metadata["discount"])
	require.NotNil(t, gotReq.Receipt)
	require.Len(t, gotReq.Receipt.Items, 1)
	assert.Equal(t, 1, gotReq.Receipt.Items[0].VatCode)
	assert.Equal(t, "full_payment", gotReq.Receipt.Items[0].PaymentMode)
}

func TestYooKassaFindStatusMapping(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		want          Status
	}{
		{"succeeded", StatusSucceeded},
		{"pending", StatusPending},
		{"waiting_for_capture", StatusPending},
		{"canceled", StatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodGet, r.Method)
				require.Equal(t, "/payments/pay-abc", r.URL.Path)
				json.NewEncoder(w).Encode(yooPaymentResponse{
					ID:     "pay-abc",
					Status: tt.gatewayStatus,
					Metadata: map[string]string{
						"user_id": "42", "tariff": "pair", "ref_count": "3", "discount": "0",
					},
				})
			}))
			defer srv.Close()

			g := NewYooKassaGateway("shop-1", "secret-1")
			g.apiURL = srv.URL

			status, meta, err := g.Find(context.Background(), "pay-abc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			require.NotNil(t, meta)
			assert.Equal(t, int64(42), meta.UserID)
			assert.Equal(t, "pair", meta.Tariff)
		})
	}
}

func TestYooKassaAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","code":"invalid_credentials"}`))
	}))
	defer srv.Close()

	g := NewYooKassaGateway("shop-1", "bad")
	g.apiURL = srv.URL

	_, _, err := g.Find(context.Background(), "pay-abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_credentials")
}
