package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/config"
	"github.com/wifibill/hotspot-server/internal/models"
)

// MTNGateway implements Gateway against the MTN MoMo collection API
type MTNGateway struct {
	cfg    config.MTNConfig
	client *http.Client
}

// NewMTNGateway creates a new MTN MoMo gateway
func NewMTNGateway(cfg config.MTNConfig) *MTNGateway {
	return &MTNGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the provider identifier
func (g *MTNGateway) Name() models.PaymentProvider {
	return models.ProviderMTN
}

type mtnTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// getAccessToken exchanges API credentials for a bearer token
func (g *MTNGateway) getAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.APIURL+"/collection/token/", nil)
	if err != nil {
		return "", err
	}

	req.SetBasicAuth(g.cfg.APIUserID, g.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token exchange returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var token mtnTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrProviderUnavailable, err)
	}

	return token.AccessToken, nil
}

type mtnPaymentRequest struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnPayer `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

type mtnPayer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// RequestPayment initiates a requesttopay charge. The caller-supplied
// reference becomes the X-Reference-Id, which MTN treats as idempotent.
func (g *MTNGateway) RequestPayment(ctx context.Context, r Request) error {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return err
	}

	payload := mtnPaymentRequest{
		Amount:     strconv.FormatInt(r.Amount, 10),
		Currency:   r.Currency,
		ExternalID: r.ExternalID,
		Payer: mtnPayer{
			PartyIDType: "MSISDN",
			PartyID:     normalizeMSISDN(r.PhoneNumber),
		},
		PayerMessage: r.Message,
		PayeeNote:    fmt.Sprintf("WiFi access - %d %s", r.Amount, r.Currency),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.APIURL+"/collection/v1_0/requesttopay", bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Reference-Id", r.Reference)
	req.Header.Set("X-Target-Environment", g.cfg.TargetEnv)
	req.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.CallbackURL != "" {
		req.Header.Set("X-Callback-Url", g.cfg.CallbackURL)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: requesttopay: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		log.Info().
			Str("reference", r.Reference).
			Str("phone", r.PhoneNumber).
			Msg("MTN payment request accepted")
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		errText, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s", ErrInvalidRequest, errText)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: requesttopay returned %d", ErrTransient, resp.StatusCode)
	default:
		errText, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: requesttopay returned %d: %s", ErrProviderUnavailable, resp.StatusCode, errText)
	}
}

type mtnStatusResponse struct {
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	FinancialTransactionID string `json:"financialTransactionId"`
	Reason                 string `json:"reason"`
}

// CheckStatus polls the charge status. Polling never mutates provider state.
func (g *MTNGateway) CheckStatus(ctx context.Context, reference string) (Status, error) {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.APIURL+"/collection/v1_0/requesttopay/"+reference, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Target-Environment", g.cfg.TargetEnv)
	req.Header.Set("Ocp-Apim-Subscription-Key", g.cfg.SubscriptionKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: status poll: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status poll returned %d", ErrTransient, resp.StatusCode)
	}

	var status mtnStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("%w: decode status: %v", ErrTransient, err)
	}

	switch status.Status {
	case "SUCCESSFUL":
		return StatusSuccessful, nil
	case "FAILED", "REJECTED", "TIMEOUT":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// normalizeMSISDN strips the leading + expected by local dialing formats
func normalizeMSISDN(phone string) string {
	if len(phone) > 0 && phone[0] == '+' {
		return phone[1:]
	}
	return phone
}
