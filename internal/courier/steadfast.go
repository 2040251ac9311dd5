package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// DefaultSteadfastURL задаёт адрес публичного API Steadfast.
const DefaultSteadfastURL = "https://portal.packzy.com/api/v1"

const steadfastFailed = "Steadfast connection failed"

// SteadfastClient инкапсулирует HTTP-взаимодействие с API Steadfast.
type SteadfastClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSteadfastClient создаёт HTTP-клиент Steadfast по указанному адресу.
func NewSteadfastClient(baseURL string) *SteadfastClient {
	if baseURL == "" {
		baseURL = DefaultSteadfastURL
	}
	return &SteadfastClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createOrderRequest struct {
	Invoice          string      `json:"invoice"`
	RecipientName    string      `json:"recipient_name"`
	RecipientPhone   string      `json:"recipient_phone"`
	RecipientAddress string      `json:"recipient_address"`
	CODAmount        json.Number `json:"cod_amount"`
	Note             string      `json:"note,omitempty"`
}

type consignment struct {
	ConsignmentID json.Number `json:"consignment_id"`
	TrackingCode  string      `json:"tracking_code"`
	Status        string      `json:"status"`
}

type steadfastResponse struct {
	Status         int                 `json:"status"`
	Message        string              `json:"message"`
	Errors         map[string][]string `json:"errors,omitempty"`
	Consignment    *consignment        `json:"consignment,omitempty"`
	DeliveryStatus string              `json:"delivery_status,omitempty"`
}

// CreateShipment создаёт отправление для заказа и возвращает идентификаторы курьера.
func (c *SteadfastClient) CreateShipment(ctx context.Context, order *model.Order, apiKey, storeID string) (*Shipment, error) {
	payload := createOrderRequest{
		Invoice:          order.ID,
		RecipientName:    order.CustomerName,
		RecipientPhone:   order.Phone,
		RecipientAddress: joinAddress(order),
		CODAmount:        json.Number(order.CODAmount.String()),
		Note:             order.Note,
	}

	resp, code, err := c.do(ctx, http.MethodPost, "/create_order", payload, apiKey, storeID)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK || resp.Status != http.StatusOK {
		return nil, newIntegrationError(resp.errorMessage(), steadfastFailed)
	}
	if resp.Consignment == nil || resp.Consignment.TrackingCode == "" {
		return nil, newIntegrationError("", "Steadfast returned no consignment")
	}

	return &Shipment{
		CourierID:  resp.Consignment.ConsignmentID.String(),
		TrackingID: resp.Consignment.TrackingCode,
	}, nil
}

// QueryStatus возвращает статус отправления в верхнем регистре.
func (c *SteadfastClient) QueryStatus(ctx context.Context, trackingID, apiKey, storeID string) (string, error) {
	path := "/status_by_trackingcode/" + url.PathEscape(trackingID)

	resp, code, err := c.do(ctx, http.MethodGet, path, nil, apiKey, storeID)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK || resp.Status != http.StatusOK {
		return "", newIntegrationError(resp.errorMessage(), steadfastFailed)
	}

	return strings.ToUpper(strings.TrimSpace(resp.DeliveryStatus)), nil
}

// VerifyCredentials проверяет ключи запросом баланса. Отклонённые ключи дают false без ошибки.
func (c *SteadfastClient) VerifyCredentials(ctx context.Context, apiKey, storeID string) (bool, error) {
	resp, code, err := c.do(ctx, http.MethodGet, "/get_balance", nil, apiKey, storeID)
	if err != nil {
		return false, err
	}

	switch code {
	case http.StatusOK:
		return resp.Status == http.StatusOK, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, nil
	default:
		return false, newIntegrationError(resp.errorMessage(), fmt.Sprintf("unexpected status: %d", code))
	}
}

func (c *SteadfastClient) do(ctx context.Context, method, path string, body any, apiKey, storeID string) (*steadfastResponse, int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", apiKey)
	req.Header.Set("Secret-Key", storeID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrIntegration, err)
	}
	defer resp.Body.Close()

	var result steadfastResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		if resp.StatusCode == http.StatusOK {
			return nil, resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrIntegration, err)
		}
	}

	return &result, resp.StatusCode, nil
}

func (r *steadfastResponse) errorMessage() string {
	if r == nil {
		return ""
	}
	if len(r.Errors) > 0 {
		parts := make([]string, 0, len(r.Errors))
		for _, msgs := range r.Errors {
			parts = append(parts, strings.Join(msgs, ", "))
		}
		return strings.Join(parts, "; ")
	}
	return r.Message
}

func joinAddress(o *model.Order) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{o.Address, o.Thana, o.District} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
