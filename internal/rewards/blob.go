// Package rewards tracks reward epochs announced by distributor contracts and the
// per-user allocations published alongside them on IPFS.
package rewards

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BlobStore fetches content-addressed blobs. ok is false when the blob could not
// be retrieved for any reason.
type BlobStore interface {
	Fetch(ctx context.Context, cid string) (data []byte, ok bool)
}

const maxBlobSize = 64 << 20

// ValidCID reports whether cid looks like a v0 or base32 v1 IPFS identifier.
func ValidCID(cid string) bool {
	return strings.HasPrefix(cid, "Qm") || strings.HasPrefix(cid, "bafy")
}

// Gateway reads blobs from an IPFS HTTP gateway.
type Gateway struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (g *Gateway) Fetch(ctx context.Context, cid string) ([]byte, bool) {
	if !ValidCID(cid) {
		g.logger.Warn("unsupported cid", zap.String("cid", cid))
		return nil, false
	}
	data, err := g.get(ctx, g.baseURL+"/ipfs/"+cid)
	if err != nil {
		g.logger.Warn("ipfs fetch failed", zap.String("cid", cid), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (g *Gateway) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBlobSize))
}
