package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const yooKassaAPIURL = "https://api.yookassa.ru/v3"

// YooKassaGateway talks to the YooKassa payments API with shop credentials.
type YooKassaGateway struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

func NewYooKassaGateway(shopID, secretKey string) *YooKassaGateway {
	return &YooKassaGateway{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     yooKassaAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type yooReceiptItem struct {
	Description    string    `json:"description"`
	Quantity       string    `json:"quantity"`
	Amount         yooAmount `json:"amount"`
	VatCode        int       `json:"vat_code"`
	PaymentMode    string    `json:"payment_mode"`
	PaymentSubject string    `json:"payment_subject"`
}

type yooReceipt struct {
	Customer struct {
		FullName string `json:"full_name,omitempty"`
		Email    string `json:"email"`
	} `json:"customer"`
	Items []yooReceiptItem `json:"items"`
}

type yooCreateRequest struct {
	Amount       yooAmount         `json:"amount"`
	Confirmation yooConfirmation   `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
	Receipt      *yooReceipt       `json:"receipt,omitempty"`
}

type yooPaymentResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Description  string            `json:"description"`
	Confirmation yooConfirmation   `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
}

func (g *YooKassaGateway) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, g.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(g.shopID + ":" + g.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}
	return req, nil
}

func (g *YooKassaGateway) do(req *http.Request) (*yooPaymentResponse, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read yookassa response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("yookassa API error: %s, body: %s", resp.Status, string(body))
	}

	var payment yooPaymentResponse
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("failed to decode yookassa response: %w", err)
	}
	return &payment, nil
}

func (g *YooKassaGateway) Create(ctx context.Context, charge Charge) (*CreatedPayment, error) {
	amount := yooAmount{
		Value:    fmt.Sprintf("%.2f", charge.Amount),
		Currency: charge.Currency,
	}

	reqBody := yooCreateRequest{
		Amount: amount,
		Confirmation: yooConfirmation{
			Type:      "redirect",
			ReturnURL: charge.ReturnURL,
		},
		Capture:     true,
		Description: charge.Description,
		Metadata:    metadataToMap(charge.Metadata),
	}

	receipt := &yooReceipt{
		Items: []yooReceiptItem{{
			Description:    charge.Description,
			Quantity:       "1.00",
			Amount:         amount,
			VatCode:        1,
			PaymentMode:    "full_payment",
			PaymentSubject: "service",
		}},
	}
	receipt.Customer.FullName = strconv.FormatInt(charge.Metadata.UserID, 10)
	receipt.Customer.Email = fmt.Sprintf("user%d@yourvpn.com", charge.Metadata.UserID)
	reqBody.Receipt = receipt

	req, err := g.newRequest(ctx, http.MethodPost, "/payments", reqBody)
	if err != nil {
		return nil, err
	}

	payment, err := g.do(req)
	if err != nil {
		return nil, err
	}

	return &CreatedPayment{
		ID:              payment.ID,
		ConfirmationURL: payment.Confirmation.ConfirmationURL,
	}, nil
}

func (g *YooKassaGateway) Find(ctx context.Context, paymentID string) (Status, *Metadata, error) {
	req, err := g.newRequest(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return "", nil, err
	}

	payment, err := g.do(req)
	if err != nil {
		return "", nil, err
	}

	return mapYooStatus(payment.Status), metadataFromMap(payment.Metadata), nil
}

func mapYooStatus(s string) Status {
	switch s {
	case "succeeded":
		return StatusSucceeded
	case "pending", "waiting_for_capture":
		return StatusPending
	default:
		return StatusCanceled
	}
}

func metadataToMap(m Metadata) map[string]string {
	return map[string]string{
		"user_id":   strconv.FormatInt(m.UserID, 10),
		"tariff":    m.Tariff,
		"ref_count": strconv.Itoa(m.RefCount),
		"discount":  strconv.Itoa(m.Discount),
	}
}

func metadataFromMap(m map[string]string) *Metadata {
	if m == nil {
		return nil
	}
	userID, _ := strconv.ParseInt(m["user_id"], 10, 64)
	refCount, _ := strconv.Atoi(m["ref_count"])
	discount, _ := strconv.Atoi(m["discount"])
	return &Metadata{
		UserID:   userID,
		Tariff:   m["tariff"],
		RefCount: refCount,
		Discount: discount,
	}
}
