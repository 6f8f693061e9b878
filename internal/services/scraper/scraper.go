package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Scraper fetches article pages and extracts title plus markdown body.
// Outbound requests share a rate limiter so bursts of queued tasks do not
// hammer origins.
type Scraper struct {
	config     common.ScraperConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewScraper creates a new Scraper instance
func NewScraper(config common.ScraperConfig, rateInterval time.Duration, burst int, logger arbor.ILogger) *Scraper {
	if rateInterval <= 0 {
		rateInterval = 500 * time.Millisecond
	}
	if burst <= 0 {
		burst = 1
	}

	return &Scraper{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(rateInterval), burst),
		logger:  logger,
	}
}

var _ interfaces.Fetcher = (*Scraper)(nil)

// Fetch retrieves the URL and extracts article content.
// All failures come back as *models.FetchError.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*models.FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, &models.FetchError{
			Kind:   models.KindInvalidURL,
			Detail: fmt.Sprintf("unparseable url %q", rawURL),
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &models.FetchError{
			Kind:   models.KindInvalidURL,
			Detail: fmt.Sprintf("unsupported scheme %q", parsed.Scheme),
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.FetchError{
			Kind:   models.KindTimeout,
			Detail: fmt.Sprintf("rate limiter wait: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &models.FetchError{
			Kind:   models.KindInvalidURL,
			Detail: err.Error(),
		}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.FetchError{
			Kind:       models.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Detail:     resp.Status,
		}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return nil, &models.FetchError{
			Kind:   models.KindEmptyContent,
			Detail: fmt.Sprintf("unsupported content type %q", ct),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.config.MaxBodySize)))
	if err != nil {
		return nil, &models.FetchError{
			Kind:   models.KindUnreachable,
			Detail: fmt.Sprintf("reading body: %v", err),
		}
	}

	result, ferr := s.extract(rawURL, string(body))
	if ferr != nil {
		return nil, ferr
	}

	s.logger.Debug().
		Str("url", rawURL).
		Int("content_bytes", len(result.ContentMarkdown)).
		Msg("Fetched article")

	return result, nil
}

// extract pulls the title and converts the main content to markdown
func (s *Scraper) extract(sourceURL, html string) (*models.FetchResult, *models.FetchError) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &models.FetchError{
			Kind:   models.KindEmptyContent,
			Detail: fmt.Sprintf("parsing html: %v", err),
		}
	}

	title := extractTitle(doc)
	if title == "" {
		return nil, &models.FetchError{
			Kind:   models.KindEmptyContent,
			Detail: "no title found",
		}
	}

	// Strip navigation chrome before conversion
	doc.Find("script, style, nav, header, footer, aside, form, iframe").Remove()

	content := doc.Find("article")
	if content.Length() == 0 {
		content = doc.Find("main")
	}
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	contentHTML, err := content.Html()
	if err != nil || strings.TrimSpace(contentHTML) == "" {
		return nil, &models.FetchError{
			Kind:   models.KindEmptyContent,
			Detail: "no content element found",
		}
	}

	converter := md.NewConverter(sourceURL, true, nil)
	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		return nil, &models.FetchError{
			Kind:   models.KindEmptyContent,
			Detail: fmt.Sprintf("converting to markdown: %v", err),
		}
	}

	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, &models.FetchError{
			Kind:   models.KindEmptyContent,
			Detail: "conversion produced empty markdown",
		}
	}

	return &models.FetchResult{
		Title:           title,
		ContentMarkdown: markdown,
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").Text())
}

func classifyTransportError(err error) *models.FetchError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &models.FetchError{Kind: models.KindTimeout, Detail: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.FetchError{Kind: models.KindTimeout, Detail: err.Error()}
	}
	return &models.FetchError{Kind: models.KindUnreachable, Detail: err.Error()}
}
