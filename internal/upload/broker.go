// Package upload turns base64 attachment payloads into hosted blobs.
package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/user/casewatch/internal/types"
)

// DefaultConcurrency bounds parallel blob writes.
const DefaultConcurrency = 4

// Broker uploads a batch of items. Items are independent: one failure
// yields a nil URL for that item and nothing else.
type Broker struct {
	blobs types.BlobStore
	sem   *semaphore.Weighted
	now   func() time.Time
}

func NewBroker(blobs types.BlobStore, concurrency int) *Broker {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Broker{
		blobs: blobs,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		now:   time.Now,
	}
}

// Upload returns one entry per item key: the hosted URL, or nil when the
// item could not be decoded or stored.
func (b *Broker) Upload(ctx context.Context, items []types.UploadItem) map[string]*string {
	results := make(map[string]*string, len(items))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, item := range items {
		key := item.Key()
		if key == "" {
			slog.Warn("upload item without id skipped", "file", item.FileName)
			continue
		}
		mu.Lock()
		results[key] = nil
		mu.Unlock()

		if err := b.sem.Acquire(ctx, 1); err != nil {
			slog.Warn("upload cancelled", "temp_id", key, "error", err)
			continue
		}
		wg.Add(1)
		go func(item types.UploadItem) {
			defer wg.Done()
			defer b.sem.Release(1)

			url, err := b.put(ctx, item)
			if err != nil {
				slog.Warn("upload failed", "temp_id", item.Key(), "file", item.FileName, "error", err)
				return
			}
			mu.Lock()
			results[item.Key()] = &url
			mu.Unlock()
		}(item)
	}
	wg.Wait()
	return results
}

func (b *Broker) put(ctx context.Context, item types.UploadItem) (string, error) {
	data, err := decodePayload(item.Base64)
	if err != nil {
		return "", err
	}
	id, err := ulid.New(ulid.Timestamp(b.now()), ulid.DefaultEntropy())
	if err != nil {
		return "", fmt.Errorf("generate object id: %w", err)
	}
	key := path.Join(id.String(), SanitizeFileName(item.FileName))
	return b.blobs.Put(ctx, key, item.MimeType, data)
}

// decodePayload accepts raw base64 or a data URL.
func decodePayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, fmt.Errorf("decode payload: empty")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return data, nil
		}
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return data, nil
}

// SanitizeFileName keeps letters (any script), digits, dot, dash and
// underscore, replacing everything else with an underscore.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
