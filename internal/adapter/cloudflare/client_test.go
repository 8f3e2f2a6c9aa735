package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chiwei-platform/site-provisioner/internal/domain"
)

// fakeZone 模拟一个 Cloudflare zone 的 dns_records 接口。
type fakeZone struct {
	mu       sync.Mutex
	records  []domain.DNSRecord
	nextID   int
	failWith int // 非 0 时所有请求返回该状态码
	deletes  []string
	creates  []createRequest
}

func (z *fakeZone) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	z.mu.Lock()
	defer z.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if z.failWith != 0 {
		w.WriteHeader(z.failWith)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":10000,"message":"Authentication error"}]}`))
		return
	}

	const prefix = "/zones/zone-1/dns_records"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == prefix:
		name := r.URL.Query().Get("name")
		typ := r.URL.Query().Get("type")
		result := []domain.DNSRecord{}
		for _, rec := range z.records {
			if rec.Name == name && rec.Type == typ {
				result = append(result, rec)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "errors": []any{}, "result": result})
	case r.Method == http.MethodPost && r.URL.Path == prefix:
		var req createRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		z.creates = append(z.creates, req)
		for _, rec := range z.records {
			if rec.Name == req.Name {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":81057,"message":"Record already exists."}]}`))
				return
			}
		}
		z.nextID++
		rec := domain.DNSRecord{ID: "rec-" + strconv.Itoa(z.nextID), Name: req.Name, Type: req.Type, Content: req.Content, Proxied: req.Proxied}
		z.records = append(z.records, rec)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "errors": []any{}, "result": rec})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, prefix+"/"):
		id := strings.TrimPrefix(r.URL.Path, prefix+"/")
		z.deletes = append(z.deletes, id)
		for i, rec := range z.records {
			if rec.ID == id {
				z.records = append(z.records[:i], z.records[i+1:]...)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "errors": []any{}, "result": map[string]string{"id": id}})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":81044,"message":"Record does not exist."}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, zone *fakeZone) *Client {
	t.Helper()
	srv := httptest.NewServer(zone)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		APIToken:   "cf-token",
		ZoneID:     "zone-1",
		BaseDomain: "example.com",
		Proxied:    true,
	}, zap.NewNop())
}

func TestIsAvailable(t *testing.T) {
	zone := &fakeZone{records: []domain.DNSRecord{
		{ID: "a", Name: "taken.example.com", Type: "A"},
		{ID: "b", Name: "dup.example.com", Type: "A"},
		{ID: "c", Name: "dup.example.com", Type: "A"},
	}}
	c := newTestClient(t, zone)
	ctx := context.Background()

	ok, err := c.IsAvailable(ctx, "free")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsAvailable(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IsAvailable(ctx, "dup")
	require.NoError(t, err)
	assert.False(t, ok, "multiple records must count as unavailable")
}

func TestCreate(t *testing.T) {
	zone := &fakeZone{}
	c := newTestClient(t, zone)

	require.NoError(t, c.Create(context.Background(), "acme", "203.0.113.10"))
	require.Len(t, zone.creates, 1)
	assert.Equal(t, createRequest{Type: "A", Name: "acme.example.com", Content: "203.0.113.10", Proxied: true, TTL: 1}, zone.creates[0])

	ok, err := c.IsAvailable(context.Background(), "acme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreate_AlreadyExists(t *testing.T) {
	zone := &fakeZone{records: []domain.DNSRecord{{ID: "a", Name: "acme.example.com", Type: "A"}}}
	c := newTestClient(t, zone)

	err := c.Create(context.Background(), "acme", "203.0.113.10")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestDelete(t *testing.T) {
	zone := &fakeZone{records: []domain.DNSRecord{
		{ID: "a", Name: "acme.example.com", Type: "A"},
		{ID: "b", Name: "acme.example.com", Type: "A"},
		{ID: "c", Name: "other.example.com", Type: "A"},
	}}
	c := newTestClient(t, zone)

	require.NoError(t, c.Delete(context.Background(), "acme"))
	assert.ElementsMatch(t, []string{"a", "b"}, zone.deletes)
	assert.Len(t, zone.records, 1)
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	zone := &fakeZone{}
	c := newTestClient(t, zone)

	require.NoError(t, c.Delete(context.Background(), "ghost"))
	assert.Empty(t, zone.deletes)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusInternalServerError, domain.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, &fakeZone{failWith: tt.status})
			_, err := c.IsAvailable(context.Background(), "acme")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
