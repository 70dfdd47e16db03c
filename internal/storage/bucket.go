package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const fetchTimeout = 30 * time.Second

// Object key namespaces: user uploads vs mirrored generation results.
const (
	uploadPrefix = "cache"
	resultPrefix = "result/hairstyle"
)

// Bucket wraps an ObjectStore with the key layout and CDN addressing the
// task lifecycle needs: upload a user photo once, and mirror provider
// result artifacts under a deterministic per-task key.
type Bucket struct {
	store      ObjectStore
	httpClient *http.Client
	cdnURL     *url.URL
}

func NewBucket(store ObjectStore, cdnURL *url.URL) *Bucket {
	return &Bucket{
		store:      store,
		httpClient: &http.Client{Timeout: fetchTimeout},
		cdnURL:     cdnURL,
	}
}

// UploadPhoto stores the photo under a fresh cache key and returns its
// CDN URL. The URL is shared by reference across every task in a batch.
func (b *Bucket) UploadPhoto(ctx context.Context, data []byte, ext string) (string, error) {
	key := fmt.Sprintf("%s/%s.%s", uploadPrefix, uuid.NewString(), ext)
	if err := b.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("put photo: %w", err)
	}
	return b.cdnURLFor(key), nil
}

// MirrorResult downloads the provider-hosted artifact and re-hosts it
// under result/hairstyle/<task_no>.png, returning the CDN URL. Callers
// treat any error as informational: mirroring is best-effort and must
// never decide task success.
func (b *Bucket) MirrorResult(ctx context.Context, srcURL, taskNo string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch result: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read result body: %w", err)
	}

	key := fmt.Sprintf("%s/%s.png", resultPrefix, taskNo)
	if err := b.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("put result: %w", err)
	}
	return b.cdnURLFor(key), nil
}

func (b *Bucket) cdnURLFor(key string) string {
	return b.cdnURL.JoinPath(key).String()
}
