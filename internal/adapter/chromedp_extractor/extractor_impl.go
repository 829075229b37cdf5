package chromedp_extractor

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/entity"
)

// ChromedpExtractor renders ad snapshot pages in headless Chrome and picks
// the main media asset from the resulting DOM.
type ChromedpExtractor struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
	log           *zap.Logger
}

// NewChromedpExtractor creates a new extractor implementation using chromedp.
func NewChromedpExtractor(maxConcurrency int, navTimeout time.Duration, log *zap.Logger) *ChromedpExtractor {
	pool := &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
			)
			allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}

	// Pre-warm the pool
	for i := 0; i < maxConcurrency; i++ {
		allocCtx := pool.Get().(context.Context)
		pool.Put(allocCtx)
	}

	return &ChromedpExtractor{
		allocatorPool: pool,
		timeout:       navTimeout,
		log:           log,
	}
}

// Extract navigates to a snapshot URL and returns the main media it finds.
// An empty result without error means the snapshot holds no usable media.
func (e *ChromedpExtractor) Extract(ctx context.Context, snapshotURL string) (entity.MediaKind, string, error) {
	allocCtx := e.allocatorPool.Get().(context.Context)
	defer e.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancel = context.WithTimeout(taskCtx, e.timeout)
	defer cancel()

	var htmlContent string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(snapshotURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		e.log.Warn("snapshot render failed", zap.String("url", snapshotURL), zap.Error(err))
		return "", "", err
	}

	kind, mediaURL, ok := PickMedia(htmlContent)
	if !ok {
		return "", "", nil
	}
	return kind, mediaURL, nil
}
