package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/adapter/provider"
	"github.com/chiwei-platform/site-provisioner/internal/domain"
	"github.com/chiwei-platform/site-provisioner/internal/port"
)

var _ port.DNSProvider = (*Client)(nil)

const (
	providerName   = "cloudflare"
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	recordTypeA = "A"
	// ttl=1 在 Cloudflare 中表示 automatic
	autoTTL = 1
)

// Cloudflare 表示记录已存在的错误码。
var alreadyExistsCodes = map[int]bool{
	81057: true, // Record already exists.
	81058: true, // An identical record already exists.
}

type Config struct {
	BaseURL    string
	APIToken   string
	ZoneID     string
	BaseDomain string
	Proxied    bool
	Timeout    time.Duration
}

// Client 通过 Cloudflare v4 API 管理租户子域名的 A 记录。
type Client struct {
	http       *resty.Client
	zoneID     string
	baseDomain string
	proxied    bool
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		http:       provider.NewRestClient(cfg.BaseURL, cfg.APIToken, cfg.Timeout),
		zoneID:     cfg.ZoneID,
		baseDomain: cfg.BaseDomain,
		proxied:    cfg.Proxied,
		logger:     logger.With(zap.String("provider", providerName)),
	}
}

// Cloudflare API 响应信封（只建模需要的字段）。

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
}

type listResponse struct {
	envelope
	Result []domain.DNSRecord `json:"result"`
}

type createRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

func (c *Client) fqdn(name string) string {
	return domain.FQDN(name, c.baseDomain)
}

func (c *Client) IsAvailable(ctx context.Context, name string) (bool, error) {
	records, err := c.listRecords(ctx, c.fqdn(name))
	if err != nil {
		return false, err
	}
	return len(records) == 0, nil
}

func (c *Client) Create(ctx context.Context, name, target string) error {
	fqdn := c.fqdn(name)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("zone", c.zoneID).
		SetBody(createRequest{
			Type:    recordTypeA,
			Name:    fqdn,
			Content: target,
			Proxied: c.proxied,
			TTL:     autoTTL,
		}).
		Post("/zones/{zone}/dns_records")
	if err == nil && resp.IsError() && isAlreadyExists(resp.Body()) {
		return fmt.Errorf("dns record %s: %w", fqdn, domain.ErrAlreadyExists)
	}
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return err
	}
	if err := checkEnvelope(resp.Body()); err != nil {
		return err
	}
	c.logger.Info("dns record created", zap.String("name", fqdn), zap.String("content", target))
	return nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	fqdn := c.fqdn(name)
	records, err := c.listRecords(ctx, fqdn)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		c.logger.Debug("dns record already absent", zap.String("name", fqdn))
		return nil
	}
	for _, r := range records {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"zone": c.zoneID, "id": r.ID}).
			Delete("/zones/{zone}/dns_records/{id}")
		if err := provider.CheckResponse(providerName, resp, err); err != nil {
			return fmt.Errorf("delete dns record %s: %w", r.ID, err)
		}
		c.logger.Info("dns record deleted", zap.String("name", fqdn), zap.String("record_id", r.ID))
	}
	return nil
}

func (c *Client) listRecords(ctx context.Context, fqdn string) ([]domain.DNSRecord, error) {
	var result listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("zone", c.zoneID).
		SetQueryParams(map[string]string{"name": fqdn, "type": recordTypeA}).
		Get("/zones/{zone}/dns_records")
	if err := provider.CheckResponse(providerName, resp, err); err != nil {
		return nil, err
	}
	if err := provider.DecodeJSON(providerName, resp, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, envelopeError(result.Errors)
	}
	// provider 过滤之外再做一次名称校验，防止大小写或尾点差异
	matched := make([]domain.DNSRecord, 0, len(result.Result))
	for _, r := range result.Result {
		if r.Name == fqdn && r.Type == recordTypeA {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func isAlreadyExists(body []byte) bool {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	for _, e := range env.Errors {
		if alreadyExistsCodes[e.Code] {
			return true
		}
	}
	return false
}

func checkEnvelope(body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &domain.ProviderError{Provider: providerName, Kind: domain.ErrTransport, Message: "decode response: " + err.Error()}
	}
	if !env.Success {
		return envelopeError(env.Errors)
	}
	return nil
}

func envelopeError(errs []apiError) error {
	msg := "request unsuccessful"
	if len(errs) > 0 {
		msg = fmt.Sprintf("%d: %s", errs[0].Code, errs[0].Message)
	}
	return &domain.ProviderError{Provider: providerName, Kind: domain.ErrProvider, Message: msg}
}
