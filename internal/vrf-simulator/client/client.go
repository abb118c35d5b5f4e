package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type fulfillmentRequest struct {
	RequestID  string `json:"request_id"`
	RandomWord uint64 `json:"random_word"`
}

// Client entrega fulfillments no endpoint de callback do ubiroll-service
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(base, token string) *Client {
	return &Client{
		BaseURL: base,
		Token:   token,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Fulfill(ctx context.Context, requestID string, randomWord uint64) error {
	body, _ := json.Marshal(fulfillmentRequest{RequestID: requestID, RandomWord: randomWord})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/oracle/fulfillments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusConflict:
		// pedido já satisfeito: replay do consumer group, não é erro
		return nil
	default:
		return fmt.Errorf("fulfill http %d", res.StatusCode)
	}
}
