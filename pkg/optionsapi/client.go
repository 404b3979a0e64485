// Package optionsapi is the REST + websocket client for the options broker
// gateway. It handles TOTP login, session tokens, order placement and the
// order-update stream. All prices on the wire are integer cents.
package optionsapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

const defaultRoot = "https://api.optionsgw.example.com"

var routes = map[string]string{
	"auth.login":       "/rest/auth/v1/login",
	"auth.logout":      "/rest/auth/v1/logout",
	"order.place":      "/rest/secure/order/v1/place",
	"order.cancel.tag": "/rest/secure/order/v1/cancelByTag",
	"account.balances": "/rest/secure/account/v1/balances",
	"market.chain":     "/rest/secure/market/v1/optionChain",
}

// Config configures the REST client.
type Config struct {
	APIKey  string
	RootURL string        // default: defaultRoot
	Timeout time.Duration // default: 7s
	Debug   bool          // log every request/response
}

// Client is the authenticated REST client. Not safe for concurrent use
// during Login; safe afterwards (token fields are written only by Login).
type Client struct {
	apiKey      string
	accessToken string
	feedToken   string
	clientCode  string

	rootURL    string
	debug      bool
	httpClient *http.Client

	// Called when the gateway rejects a request with 403 token-expired,
	// so the caller can schedule a re-login.
	SessionExpiryHook func()
}

// NewClient initializes the REST client.
func NewClient(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		rootURL:    strings.TrimRight(cfg.RootURL, "/"),
		debug:      cfg.Debug,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FeedToken returns the websocket feed token issued at login.
func (c *Client) FeedToken() string { return c.feedToken }

// AccessToken returns the session JWT issued at login.
func (c *Client) AccessToken() string { return c.accessToken }

// apiResponse is the gateway's uniform envelope.
type apiResponse struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-PrivateKey", c.apiKey)
	if c.accessToken != "" {
		h.Set("Authorization", "Bearer "+c.accessToken)
	}
	return h
}

func (c *Client) doRequest(method, route string, params any) (json.RawMessage, error) {
	uri, ok := routes[route]
	if !ok {
		return nil, fmt.Errorf("unknown route: %s", route)
	}
	reqURL := c.rootURL + uri

	var body io.Reader
	if method == http.MethodGet {
		if q, ok := params.(url.Values); ok && len(q) > 0 {
			reqURL += "?" + q.Encode()
		}
	} else if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = c.headers()

	if c.debug {
		log.Printf("[optionsapi] %s %s", method, reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if c.debug {
		log.Printf("[optionsapi] response code=%d body=%s", resp.StatusCode, string(raw))
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("couldn't parse response: %w", err)
	}
	if env.ErrorType != "" {
		if c.SessionExpiryHook != nil && resp.StatusCode == http.StatusForbidden && env.ErrorType == "TokenException" {
			c.SessionExpiryHook()
		}
		return env.Data, fmt.Errorf("%s: %s", env.ErrorType, env.Message)
	}
	if !env.Status {
		return env.Data, fmt.Errorf("request failed: %s", env.Message)
	}
	return env.Data, nil
}

func (c *Client) get(route string, q url.Values) (json.RawMessage, error) {
	return c.doRequest(http.MethodGet, route, q)
}

func (c *Client) post(route string, params any) (json.RawMessage, error) {
	return c.doRequest(http.MethodPost, route, params)
}

// sessionData is the login payload.
type sessionData struct {
	JWTToken  string `json:"jwtToken"`
	FeedToken string `json:"feedToken"`
}

// Login generates a fresh TOTP code from the shared secret and opens a
// session. Tokens are stored on the client for subsequent calls.
func (c *Client) Login(clientCode, password, totpSecret string) error {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("totp generation: %w", err)
	}
	raw, err := c.post("auth.login", map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       code,
	})
	if err != nil {
		return err
	}
	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("unexpected login response: %w", err)
	}
	if data.JWTToken == "" || data.FeedToken == "" {
		return errors.New("login returned empty tokens")
	}
	c.accessToken = data.JWTToken
	c.feedToken = data.FeedToken
	c.clientCode = clientCode
	return nil
}

// Logout terminates the session.
func (c *Client) Logout() error {
	_, err := c.post("auth.logout", map[string]string{"clientcode": c.clientCode})
	return err
}

// OrderRequest is a single-leg order. Price 0 with type MARKET.
type OrderRequest struct {
	Symbol     string `json:"symbol"`
	Token      string `json:"symboltoken"`
	Side       string `json:"side"`      // BUY / SELL
	OrderType  string `json:"ordertype"` // LIMIT / MARKET
	PriceCents int64  `json:"price_cents,omitempty"`
	Qty        int64  `json:"quantity"`
	TIF        string `json:"duration"` // DAY / GTC
	Tag        string `json:"ordertag"`
}

// PlaceOrder submits an order and returns the gateway order ID.
func (c *Client) PlaceOrder(req OrderRequest) (string, error) {
	raw, err := c.post("order.place", req)
	if err != nil {
		return "", err
	}
	var data struct {
		OrderID string `json:"orderid"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.OrderID == "" {
		return "", fmt.Errorf("invalid place response: %s", string(raw))
	}
	return data.OrderID, nil
}

// CancelByTag cancels every working order carrying the tag. The gateway
// treats an unknown tag as a no-op, so callers may cancel blindly.
func (c *Client) CancelByTag(tag string) error {
	_, err := c.post("order.cancel.tag", map[string]string{"ordertag": tag})
	return err
}

// Balances returns the account net liquidation value in cents.
func (c *Client) Balances() (int64, error) {
	raw, err := c.get("account.balances", nil)
	if err != nil {
		return 0, err
	}
	var data struct {
		NetLiqCents int64 `json:"net_liq_cents"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, fmt.Errorf("unexpected balances response: %w", err)
	}
	return data.NetLiqCents, nil
}

// ChainContract is one option in a chain response.
type ChainContract struct {
	Symbol   string  `json:"symbol"`
	Token    string  `json:"symboltoken"`
	Right    string  `json:"right"`  // P / C
	Strike   int64   `json:"strike"` // cents
	Expiry   string  `json:"expiry"` // YYYY-MM-DD
	BidCents int64   `json:"bid_cents"`
	AskCents int64   `json:"ask_cents"`
	Delta    float64 `json:"delta"`
}

// ChainResponse is a full option chain snapshot for one underlying.
type ChainResponse struct {
	Underlying string          `json:"underlying"`
	SpotCents  int64           `json:"spot_cents"`
	AsOf       time.Time       `json:"as_of"`
	Contracts  []ChainContract `json:"contracts"`
}

// OptionChain fetches the current chain for an underlying.
func (c *Client) OptionChain(underlying string) (*ChainResponse, error) {
	q := url.Values{}
	q.Set("underlying", underlying)
	raw, err := c.get("market.chain", q)
	if err != nil {
		return nil, err
	}
	var data ChainResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unexpected chain response: %w", err)
	}
	return &data, nil
}
