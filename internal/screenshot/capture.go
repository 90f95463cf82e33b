// Package screenshot renders pages in headless Chrome and stores
// full-page captures as comparison artifacts.
package screenshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/artifact"
)

// Capturer drives a pool of headless-Chrome allocator contexts and
// writes PNG captures through the artifact store.
type Capturer struct {
	artifacts *artifact.Store
	timeout   time.Duration
	width     int
	height    int
	logger    *zap.Logger
	ctxPool   sync.Pool
}

// New configures the allocator pool. Viewport dimensions fix the
// rendered width so captures stay comparable between runs.
func New(artifacts *artifact.Store, timeout time.Duration, width, height int, logger *zap.Logger) *Capturer {
	c := &Capturer{
		artifacts: artifacts,
		timeout:   timeout,
		width:     width,
		height:    height,
		logger:    logger,
	}
	c.ctxPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("hide-scrollbars", true),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return c
}

// Capture renders rawURL and writes a full-page PNG to the artifact
// store, returning the stored path. Callers pass the run's timestamped
// label so every capture of the same URL lands on a distinct path.
func (c *Capturer) Capture(ctx context.Context, websiteID, rawURL, label string) (string, error) {
	allocCtx := c.ctxPool.Get().(context.Context)
	defer c.ctxPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.timeout)
	defer cancelTimeout()

	// Follow the caller's cancellation as well as our own timeout.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(c.width), int64(c.height)),
		chromedp.Navigate(rawURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond), // settle animations and lazy images
		// Quality 100 selects lossless PNG rather than JPEG.
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", rawURL, err)
	}

	path := c.artifacts.Path(websiteID, rawURL, label, artifact.KindScreenshot)
	if err := c.artifacts.Write(path, buf); err != nil {
		return "", err
	}

	c.logger.Debug("captured screenshot",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.Int("bytes", len(buf)))
	return path, nil
}
