package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// The share pages render telemetry client-side, so readiness means the
// label text has been painted, not that the document loaded.
const telemetryReadyExpr = `document.body && document.body.innerText.includes("Name")`

const pageTextExpr = `document.body ? document.body.innerText : ""`

// PageFetcher reads ELD share pages with headless Chrome. The pages
// are JavaScript applications that serve an empty shell to plain HTTP
// clients, so the only way to see the telemetry text is to render
// them. Every Fetch launches its own browser and tears it down when
// done; concurrency is bounded upstream by the telemetry gate.
type PageFetcher struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	renderWait  time.Duration
	logger      *zap.Logger
}

// NewPageFetcher prepares the browser launcher. renderWait bounds how
// long a fetch waits for the telemetry labels to appear before reading
// whatever the page has painted so far.
func NewPageFetcher(renderWait time.Duration, logger *zap.Logger) *PageFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1024, 768),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	return &PageFetcher{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		renderWait:  renderWait,
		logger:      logger,
	}
}

// Fetch navigates to sourceURL and returns the page's visible text.
// The caller's context bounds the whole render.
func (f *PageFetcher) Fetch(ctx context.Context, sourceURL string) (string, error) {
	browserCtx, closeBrowser := chromedp.NewContext(f.allocCtx)
	defer closeBrowser()

	// Browser contexts must descend from the allocator, so the
	// caller's cancellation and deadline are relayed by hand.
	runCtx, cancelRun := context.WithCancel(browserCtx)
	defer cancelRun()
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	start := time.Now()
	if err := chromedp.Run(runCtx, chromedp.Navigate(sourceURL)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", sourceURL, err)
	}

	// A page that never paints its labels still gets read; the parser
	// treats the missing fields as unavailable.
	var ready bool
	err := chromedp.Run(runCtx, chromedp.Poll(telemetryReadyExpr, &ready,
		chromedp.WithPollingInterval(200*time.Millisecond),
		chromedp.WithPollingTimeout(f.renderWait),
	))
	if err != nil && !errors.Is(err, chromedp.ErrPollingTimeout) {
		return "", fmt.Errorf("wait for telemetry render: %w", err)
	}

	var pageText string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(pageTextExpr, &pageText)); err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}

	f.logger.Debug("telemetry page rendered",
		zap.String("source_url", sourceURL),
		zap.Bool("labels_rendered", ready),
		zap.Duration("elapsed", time.Since(start)),
	)

	return pageText, nil
}

// Close shuts the browser launcher down. In-flight fetches are
// interrupted.
func (f *PageFetcher) Close() {
	f.cancelAlloc()
}
