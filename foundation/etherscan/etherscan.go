// Package etherscan submits contract source code to the Etherscan
// verification API and reports the outcome.
package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultBaseURL is the multichain endpoint. The chain is selected with the
// chainid parameter.
const DefaultBaseURL = "https://api.etherscan.io/v2/api"

// Set of source code formats accepted by the verification API.
const (
	FormatSingleFile   = "solidity-single-file"
	FormatStandardJSON = "solidity-standard-json-input"
)

// VerifyRequest describes the source code to verify against a deployed
// contract.
type VerifyRequest struct {
	Address          common.Address
	SourceCode       string
	CodeFormat       string
	ContractName     string
	CompilerVersion  string
	OptimizationUsed bool
	Runs             int
	ConstructorArgs  []byte
	LicenseType      int
}

// Status is the state of a submitted verification.
type Status struct {
	GUID    string
	Pending bool
	Passed  bool
	Message string
}

// response is the envelope every endpoint returns.
type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the http client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithChainID selects the chain the contract is deployed on.
func WithChainID(chainID *big.Int) Option {
	return func(c *Client) {
		if chainID != nil {
			c.chainID = chainID.String()
		}
	}
}

// WithPollInterval sets how often VerifyAndWait checks the status.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// =============================================================================

// Client provides access to the verification API.
type Client struct {
	apiKey       string
	baseURL      string
	chainID      string
	http         *http.Client
	pollInterval time.Duration
}

// New constructs a client using the specified API key.
func New(apiKey string, opts ...Option) *Client {
	c := Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		chainID:      "1",
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return &c
}

// Verify submits the source code and returns the guid used to track the
// verification.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: InvalidAPIKey, Message: "missing api key"}
	}

	format := req.CodeFormat
	if format == "" {
		format = FormatSingleFile
	}

	optimization := "0"
	if req.OptimizationUsed {
		optimization = "1"
	}

	license := req.LicenseType
	if license == 0 {
		license = 1
	}

	form := url.Values{
		"apikey":           {c.apiKey},
		"module":           {"contract"},
		"action":           {"verifysourcecode"},
		"contractaddress":  {req.Address.Hex()},
		"sourceCode":       {req.SourceCode},
		"codeformat":       {format},
		"contractname":     {req.ContractName},
		"compilerversion":  {req.CompilerVersion},
		"optimizationUsed": {optimization},
		"runs":             {strconv.Itoa(req.Runs)},
		"licenseType":      {strconv.Itoa(license)},

		// The misspelling is part of the API.
		"constructorArguements": {common.Bytes2Hex(req.ConstructorArgs)},
	}

	endpoint := c.baseURL + "?chainid=" + url.QueryEscape(c.chainID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var guid string
	if err := c.do(httpReq, &guid); err != nil {
		return "", fmt.Errorf("verify %s: %w", req.Address, err)
	}

	return guid, nil
}

// CheckStatus returns the state of the verification for the guid. A
// failed verification is returned as an error of kind Failed or
// AlreadyVerified.
func (c *Client) CheckStatus(ctx context.Context, guid string) (Status, error) {
	q := url.Values{
		"apikey":  {c.apiKey},
		"chainid": {c.chainID},
		"module":  {"contract"},
		"action":  {"checkverifystatus"},
		"guid":    {guid},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Status{}, fmt.Errorf("create request: %w", err)
	}

	var msg string
	if err := c.do(httpReq, &msg); err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind == Pending {
			return Status{GUID: guid, Pending: true, Message: e.Message}, nil
		}
		return Status{GUID: guid}, err
	}

	return Status{GUID: guid, Passed: true, Message: msg}, nil
}

// VerifyAndWait submits the source code and polls until the verification
// passes or fails.
func (c *Client) VerifyAndWait(ctx context.Context, req VerifyRequest) (Status, error) {
	guid, err := c.Verify(ctx, req)
	if err != nil {
		return Status{}, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Status{GUID: guid, Pending: true}, ctx.Err()
		case <-ticker.C:
		}

		status, err := c.CheckStatus(ctx, guid)
		if err != nil || !status.Pending {
			return status, err
		}
	}
}

// do executes the request and decodes the result string from the envelope.
func (c *Client) do(req *http.Request, result *string) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &Error{Kind: RateLimited, Message: resp.Status}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: Unknown, Message: resp.Status}
	}

	var env response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	var text string
	if err := json.Unmarshal(env.Result, &text); err != nil {
		text = string(env.Result)
	}

	if env.Status != "1" {
		return classify(text, env.Message)
	}

	// The status endpoint reports an already verified contract as a success.
	if kind := kindOf(text); kind == AlreadyVerified {
		return &Error{Kind: kind, Message: text}
	}

	*result = text
	return nil
}
