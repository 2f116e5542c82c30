package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wifibill/hotspot-server/internal/config"
	"github.com/wifibill/hotspot-server/internal/models"
)

// AirtelGateway implements Gateway against the Airtel Money merchant API
type AirtelGateway struct {
	cfg    config.AirtelConfig
	client *http.Client
}

// NewAirtelGateway creates a new Airtel Money gateway
func NewAirtelGateway(cfg config.AirtelConfig) *AirtelGateway {
	return &AirtelGateway{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the provider identifier
func (g *AirtelGateway) Name() models.PaymentProvider {
	return models.ProviderAirtel
}

func (g *AirtelGateway) getAccessToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     g.cfg.ClientID,
		"client_secret": g.cfg.ClientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.APIURL+"/auth/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token exchange returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrProviderUnavailable, err)
	}

	return token.AccessToken, nil
}

// RequestPayment initiates a merchant collection request
func (g *AirtelGateway) RequestPayment(ctx context.Context, r Request) error {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"reference": r.Reference,
		"subscriber": map[string]string{
			"country":  g.cfg.Country,
			"currency": r.Currency,
			"msisdn":   normalizeMSISDN(r.PhoneNumber),
		},
		"transaction": map[string]interface{}{
			"amount":   r.Amount,
			"country":  g.cfg.Country,
			"currency": r.Currency,
			"id":       r.Reference,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.APIURL+"/merchant/v1/payments/", bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Country", g.cfg.Country)
	req.Header.Set("X-Currency", r.Currency)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: payment request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		log.Info().
			Str("reference", r.Reference).
			Str("phone", r.PhoneNumber).
			Msg("Airtel payment request accepted")
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		errText, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s", ErrInvalidRequest, errText)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: payment request returned %d", ErrTransient, resp.StatusCode)
	default:
		errText, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: payment request returned %d: %s", ErrProviderUnavailable, resp.StatusCode, errText)
	}
}

// CheckStatus polls the transaction status
func (g *AirtelGateway) CheckStatus(ctx context.Context, reference string) (Status, error) {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.APIURL+"/standard/v1/payments/"+reference, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Country", g.cfg.Country)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: status poll: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status poll returned %d", ErrTransient, resp.StatusCode)
	}

	var status struct {
		Data struct {
			Transaction struct {
				Status string `json:"status"`
			} `json:"transaction"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("%w: decode status: %v", ErrTransient, err)
	}

	switch status.Data.Transaction.Status {
	case "TS", "SUCCESS":
		return StatusSuccessful, nil
	case "TF", "FAILED":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}
