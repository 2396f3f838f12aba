package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultBulkSMSBaseURL = "https://api.bulksms.com/v1"

// BulkSMSClient sends messages through the BulkSMS JSON REST API.
type BulkSMSClient struct {
	baseURL     string
	tokenID     string
	tokenSecret string
	client      *http.Client
}

func NewBulkSMSClient(baseURL, tokenID, tokenSecret string) *BulkSMSClient {
	if baseURL == "" {
		baseURL = DefaultBulkSMSBaseURL
	}
	return &BulkSMSClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenID:     strings.TrimSpace(tokenID),
		tokenSecret: strings.TrimSpace(tokenSecret),
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type bulkSMSMessage struct {
	To       string `json:"to"`
	Body     string `json:"body"`
	Encoding string `json:"encoding"`
}

func (b *BulkSMSClient) Send(ctx context.Context, to, body string) (SendResult, error) {
	payload, err := json.Marshal(bulkSMSMessage{To: to, Body: body, Encoding: "TEXT"})
	if err != nil {
		return SendResult{}, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(b.tokenID, b.tokenSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("bulksms request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("bulksms returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var accepted []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &accepted); err != nil {
		return SendResult{}, fmt.Errorf("decode bulksms response: %w", err)
	}
	if len(accepted) == 0 {
		return SendResult{}, fmt.Errorf("bulksms accepted no messages")
	}
	return SendResult{MessageID: accepted[0].ID}, nil
}

// LogOnlyGateway stands in for BulkSMS when no credentials are configured.
type LogOnlyGateway struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogOnlyGateway(logger zerolog.Logger) *LogOnlyGateway {
	return &LogOnlyGateway{logger: logger, now: time.Now}
}

func (g *LogOnlyGateway) Send(_ context.Context, to, body string) (SendResult, error) {
	id := fmt.Sprintf("mock_%d", g.now().UnixMilli())
	g.logger.Info().Str("to", to).Str("body", body).Str("message_id", id).Msg("sms not sent, gateway not configured")
	return SendResult{MessageID: id}, nil
}

// NewGateway returns a BulkSMS client when both credentials are set, and a
// log-only gateway otherwise.
func NewGateway(baseURL, tokenID, tokenSecret string, logger zerolog.Logger) Gateway {
	if strings.TrimSpace(tokenID) == "" || strings.TrimSpace(tokenSecret) == "" {
		logger.Warn().Msg("BulkSMS credentials missing, reminders will be logged only")
		return NewLogOnlyGateway(logger)
	}
	return NewBulkSMSClient(baseURL, tokenID, tokenSecret)
}
