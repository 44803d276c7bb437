package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikkes174/VPNBot/internal/consts"
	"github.com/nikkes174/VPNBot/internal/logger"
)

// Reality routing profile shared by every inbound this bot creates. These are
// server-wide constants, not per-user state.
const (
	realityDest       = "yahoo.com:443"
	realityPrivateKey = "wIc7zBUiTXBGxM7S7wl0nCZ663OAvzTDNqS7-bsxV3A"
	realityPublicKey  = "2UqLjQFhlvLcY7VzaKRotIDQFOgAJe1dYD1njigp9wk"
	realitySNI        = "yahoo.com"
	realityShortID    = "47595474"
	fingerprint       = "chrome"
)

var realityServerNames = []string{"yahoo.com", "www.yahoo.com"}

var realityShortIDs = []string{
	"47595474", "7a5e30", "810c1efd750030e8", "99",
	"9c19c134b8", "35fd", "2409c639a707b4", "c98fc6b39f45",
}

// Client talks to the 3x-ui panel HTTP API. The login token is cached for the
// process lifetime; there is no refresh, a stale token surfaces as failed
// provisioning calls.
type Client struct {
	host     string
	login    string
	password string
	serverIP string

	httpClient *http.Client

	mu    sync.Mutex
	token string
}

func NewClient(host, login, password, serverIP string) *Client {
	return &Client{
		host:       strings.TrimRight(host, "/"),
		login:      login,
		password:   password,
		serverIP:   serverIP,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, &buf)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode panel response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Login authenticates and caches the token.
func (c *Client) Login(ctx context.Context) error {
	var res loginResponse
	status, err := c.postJSON(ctx, "/login", loginRequest{Username: c.login, Password: c.password}, &res)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !res.Success {
		return fmt.Errorf("panel login rejected: status=%d msg=%q", status, res.Msg)
	}

	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()

	logger.InfoMsg("Panel login successful")
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	haveToken := c.token != ""
	c.mu.Unlock()
	if haveToken {
		return nil
	}
	return c.Login(ctx)
}

// ListInbounds returns every provisioned connection.
func (c *Client) ListInbounds(ctx context.Context) ([]Inbound, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	var res listResponse
	status, err := c.postJSON(ctx, "/panel/inbound/list", struct{}{}, &res)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !res.Success {
		return nil, fmt.Errorf("inbound list failed: status=%d msg=%q", status, res.Msg)
	}
	return res.Obj, nil
}

// pickFreePort samples the port range until it finds one no existing inbound
// uses. The list is read once; nothing reserves the port, so two concurrent
// calls can still collide.
func pickFreePort(used map[int]bool) (int, error) {
	span := consts.PortRangeHigh - consts.PortRangeLow + 1
	for i := 0; i < consts.PortPickRetries; i++ {
		port := consts.PortRangeLow + rand.Intn(span)
		if !used[port] {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port found after %d attempts", consts.PortPickRetries)
}

const subIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func newSubID() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = subIDAlphabet[rand.Intn(len(subIDAlphabet))]
	}
	return string(b)
}

// CreateInbound provisions a fresh connection for a user: a new client UUID on
// a free port with the fixed reality profile.
func (c *Client) CreateInbound(ctx context.Context, userID int64, trial bool) (*Credential, error) {
	remark := fmt.Sprintf("user_%d", userID)
	email := fmt.Sprintf("%d", userID)
	if trial {
		remark = fmt.Sprintf("user_%d_prob", userID)
		email = fmt.Sprintf("trial_%d", userID)
	}
	return c.addInbound(ctx, remark, email)
}

// CreatePairInbound provisions the second connection of a pair subscription.
// The panel requires client emails to be unique, so the pair credential
// carries its own identity.
func (c *Client) CreatePairInbound(ctx context.Context, userID int64) (*Credential, error) {
	remark := fmt.Sprintf("user_%d_pair", userID)
	email := fmt.Sprintf("%d_pair", userID)
	return c.addInbound(ctx, remark, email)
}

func (c *Client) addInbound(ctx context.Context, remark, email string) (*Credential, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	existing, err := c.ListInbounds(ctx)
	if err != nil {
		return nil, err
	}
	used := make(map[int]bool, len(existing))
	for _, inb := range existing {
		used[inb.Port] = true
	}

	port, err := pickFreePort(used)
	if err != nil {
		return nil, err
	}

	clientUUID := uuid.NewString()

	settings, _ := json.Marshal(inboundSettings{
		Clients: []clientConfig{{
			ID:     clientUUID,
			Email:  email,
			Enable: true,
			SubID:  newSubID(),
		}},
		Decryption: "none",
		Fallbacks:  []interface{}{},
	})

	stream, _ := json.Marshal(streamSettings{
		Network:       "tcp",
		Security:      "reality",
		ExternalProxy: []interface{}{},
		RealitySettings: realitySettings{
			Dest:        realityDest,
			ServerNames: realityServerNames,
			PrivateKey:  realityPrivateKey,
			ShortIDs:    realityShortIDs,
			Settings: map[string]interface{}{
				"publicKey":   realityPublicKey,
				"fingerprint": fingerprint,
				"serverName":  "",
				"spiderX":     "/",
			},
		},
		TCPSettings: tcpSettings{
			Header: map[string]string{"type": "none"},
		},
	})

	sniffing, _ := json.Marshal(sniffingSettings{
		DestOverride: []string{"http", "tls", "quic", "fakedns"},
	})

	allocate, _ := json.Marshal(allocateSettings{
		Strategy:    "always",
		Refresh:     5,
		Concurrency: 3,
	})

	reqBody := addInboundRequest{
		Remark:         remark,
		Enable:         true,
		Port:           port,
		Protocol:       "vless",
		Settings:       string(settings),
		StreamSettings: string(stream),
		Sniffing:       string(sniffing),
		Allocate:       string(allocate),
	}

	var res apiResponse
	status, err := c.postJSON(ctx, "/panel/api/inbounds/add", reqBody, &res)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !res.Success {
		return nil, fmt.Errorf("inbound creation failed: status=%d msg=%q", status, res.Msg)
	}

	logger.Info("Inbound created", map[string]interface{}{
		"remark": remark,
		"port":   port,
	})
	return &Credential{UUID: clientUUID, Port: port}, nil
}

// UpdateClient extends the expiry of an existing credential by days from now.
func (c *Client) UpdateClient(ctx context.Context, clientUUID string, days int) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}

	expiry := time.Now().UTC().AddDate(0, 0, days).UnixMilli()
	body := updateClientRequest{
		UUID:       clientUUID,
		ExpiryTime: expiry,
		Enable:     true,
	}

	var res apiResponse
	status, err := c.postJSON(ctx, "/panel/api/client/update", body, &res)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("client update failed: status=%d msg=%q", status, res.Msg)
	}

	logger.Info("Client extended", map[string]interface{}{
		"uuid": clientUUID,
		"days": days,
	})
	return nil
}

// Link builds the vless:// connection URL for a credential.
func (c *Client) Link(clientUUID string, port int, tag string) string {
	return fmt.Sprintf(
		"vless://%s@%s:%d?type=tcp&security=reality&pbk=%s&fp=%s&sni=%s&sid=%s&spx=%%2F#%s",
		clientUUID, c.serverIP, port, realityPublicKey, fingerprint, realitySNI, realityShortID, tag,
	)
}
