package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"nexus-go/internal/nexus"
)

// GatewayLedger anchors records through an external ledger gateway over
// HTTP. The gateway owns the actual chain or timestamping backend; from our
// side it behaves like a slightly laggy append-only index, which is why
// verification retries on misses instead of treating them as fatal.
type GatewayLedger struct {
	client *resty.Client
}

var _ nexus.Ledger = (*GatewayLedger)(nil)

// NewGatewayLedger points at a gateway base URL. The token is optional;
// when set it is sent as a bearer token on every request.
func NewGatewayLedger(baseURL, token string) *GatewayLedger {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &GatewayLedger{client: client}
}

func (l *GatewayLedger) Append(ctx context.Context, rec *nexus.HashRecord) error {
	resp, err := l.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rec).
		Post("/v1/records")
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "appending to ledger gateway", err)
	}
	if resp.IsError() {
		return nexus.E(nexus.ErrStorageUnavailable,
			fmt.Sprintf("ledger gateway append returned status %d", resp.StatusCode()), nil)
	}
	return nil
}

func (l *GatewayLedger) Query(ctx context.Context, filter nexus.LedgerFilter) ([]*nexus.HashRecord, error) {
	req := l.client.R().SetContext(ctx)
	if filter.Kind != "" {
		req.SetQueryParam("kind", string(filter.Kind))
	}
	if filter.Owner != "" {
		req.SetQueryParam("owner", filter.Owner)
	}
	if filter.OriginalID != "" {
		req.SetQueryParam("original_id", filter.OriginalID)
	}

	resp, err := req.Get("/v1/records")
	if err != nil {
		return nil, nexus.E(nexus.ErrStorageUnavailable, "querying ledger gateway", err)
	}
	if resp.IsError() {
		return nil, nexus.E(nexus.ErrStorageUnavailable,
			fmt.Sprintf("ledger gateway query returned status %d", resp.StatusCode()), nil)
	}

	var records []*nexus.HashRecord
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("decoding ledger gateway response: %w", err)
	}
	return records, nil
}

func (l *GatewayLedger) Ping(ctx context.Context) error {
	resp, err := l.client.R().SetContext(ctx).Get("/v1/health")
	if err != nil {
		return nexus.E(nexus.ErrStorageUnavailable, "ledger gateway unreachable", err)
	}
	if resp.IsError() {
		return nexus.E(nexus.ErrStorageUnavailable,
			fmt.Sprintf("ledger gateway health returned status %d", resp.StatusCode()), nil)
	}
	return nil
}
