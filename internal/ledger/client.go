package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "tipjar-backend/internal/common/errors"
	"tipjar-backend/internal/features/wallet/models"
)

// decimals is the precision of the native token: balances and amounts travel
// over the wire as integer counts of 1e-8 units.
const decimals = 8

// Client talks to a ledger node over HTTP and holds the local key handling
// for custodial wallets. All network calls run under the bounded client
// timeout; a timeout is a retryable failure, never a success.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(nodeURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(nodeURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateWallet generates a fresh secp256k1 keypair and derives its address.
// Purely local, no node round trip.
func (c *Client) CreateWallet() (*models.Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, apperrors.NewLedgerError("createWallet", err)
	}

	publicKeyHex := hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey))
	return &models.Wallet{
		Address:    DeriveAddress(publicKeyHex),
		PublicKey:  publicKeyHex,
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

// ValidateAddress checks shape and check digit locally.
func (c *Client) ValidateAddress(address string) bool {
	return ValidateAddress(address)
}

// GetBalance fetches the live balance for the wallet's address.
func (c *Client) GetBalance(ctx context.Context, wallet *models.Wallet) (decimal.Decimal, error) {
	var out struct {
		Data struct {
			Balance int64 `json:"balance"`
		} `json:"data"`
	}

	url := c.baseURL + "/addresses/" + wallet.Address + "/balance"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, apperrors.NewLedgerError("getBalance", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, apperrors.NewLedgerError("getBalance", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, apperrors.NewLedgerError("getBalance", fmt.Errorf("node http %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, apperrors.NewLedgerError("getBalance", err)
	}

	return decimal.New(out.Data.Balance, -decimals), nil
}

type transferPayload struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Salt        string `json:"salt"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"public_key"`
}

// Transfer signs a transfer with the custodial key and submits it. Returns
// the node's transaction hash as the reference.
func (c *Client) Transfer(ctx context.Context, wallet *models.Wallet, destination string, amount decimal.Decimal) (string, error) {
	units := amount.Shift(decimals)
	if !units.IsInteger() || !units.IsPositive() {
		return "", apperrors.New(apperrors.ErrCodeValidation, "transfer amount must be a positive multiple of 1e-8")
	}

	key, err := crypto.HexToECDSA(wallet.PrivateKey)
	if err != nil {
		return "", apperrors.NewLedgerError("transfer", err)
	}

	payload := transferPayload{
		Source:      wallet.Address,
		Destination: destination,
		Amount:      units.IntPart(),
		Fee:         0,
		Salt:        uuid.NewString(),
		PublicKey:   wallet.PublicKey,
	}

	digest := crypto.Keccak256([]byte(fmt.Sprintf("%s|%s|%d|%d|%s",
		payload.Source, payload.Destination, payload.Amount, payload.Fee, payload.Salt)))
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return "", apperrors.NewLedgerError("transfer", err)
	}
	payload.Signature = hex.EncodeToString(signature)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewLedgerError("transfer", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewLedgerError("transfer", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewLedgerError("transfer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apperrors.NewLedgerError("transfer", fmt.Errorf("node http %d", resp.StatusCode))
	}

	var out struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.NewLedgerError("transfer", err)
	}
	if out.Hash == "" {
		return "", apperrors.NewLedgerError("transfer", fmt.Errorf("node returned no transaction hash"))
	}
	return out.Hash, nil
}
