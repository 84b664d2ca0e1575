package historical

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/edubigdata/stocketl/internal/config"
)

// Fetch failure classes. Every fetch error wraps ErrFetchFailed and one of the others.
var (
	ErrFetchFailed = errors.New("fetch failed")
	ErrTransport   = errors.New("transport failure")
	ErrHTTPStatus  = errors.New("unexpected status code")
	ErrChallenge   = errors.New("anti-bot challenge detected")
	ErrNoTable     = errors.New("no table found")
	ErrColumnCount = errors.New("unexpected column count")
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// pageLayout is the column order of the source page: close comes before open.
// Cells are assigned to fields by position only; the page header is ignored.
var pageLayout = [...]string{
	ColDate,
	ColClosePrice,
	ColOpenPrice,
	ColHighPrice,
	ColLowPrice,
	ColVolume,
	ColChangePercent,
}

// Fetcher downloads the historical data page and extracts its table.
type Fetcher struct {
	config *config.SourceConfig
	client *resty.Client
}

// NewFetcher creates a fetcher with browser-like default headers.
func NewFetcher(cfg *config.SourceConfig) (*Fetcher, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source url: %w", err)
	}

	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSec) * time.Second).
		SetHeaders(map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         siteRoot(target),
		})

	return &Fetcher{
		config: cfg,
		client: client,
	}, nil
}

// Fetch returns the scraped rows, or an error wrapping ErrFetchFailed.
// No request is retried.
func (f *Fetcher) Fetch(ctx context.Context) ([]RawRow, error) {
	if f.config.Warmup {
		f.warmup(ctx)
	}

	// challenge pages usually come back as 403 or 503, so the body is
	// checked before the status
	body, err := f.get(ctx, f.config.URL)
	if keyword, found := DetectChallenge(body, f.config.ChallengeKeywords); found {
		return nil, fmt.Errorf("%w: %w: matched %q", ErrFetchFailed, ErrChallenge, keyword)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	rows, err := ParseTable(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	log.Info().Str("url", f.config.URL).Int("rows", len(rows)).Msg("fetched historical table")
	return rows, nil
}

// warmup visits the site root so the cookie jar holds a session.
func (f *Fetcher) warmup(ctx context.Context) {
	target, err := url.Parse(f.config.URL)
	if err != nil {
		return
	}

	root := siteRoot(target)
	if _, err := f.get(ctx, root); err != nil {
		log.Warn().Str("url", root).Err(err).Msg("warm-up request failed, continuing")
	}
}

// get returns the response body, also alongside an ErrHTTPStatus error.
func (f *Fetcher) get(ctx context.Context, link string) ([]byte, error) {
	if err := f.pause(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	log.Debug().Str("url", link).Msg("GET")
	res, err := f.client.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if !res.IsSuccess() {
		return res.Body(), fmt.Errorf("%w: %d", ErrHTTPStatus, res.StatusCode())
	}

	return res.Body(), nil
}

// pause waits the configured courtesy delay before a request.
func (f *Fetcher) pause(ctx context.Context) error {
	if f.config.RequestDelay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(f.config.RequestDelay) * time.Millisecond):
		return nil
	}
}

// DetectChallenge reports the first keyword found in body, case-insensitively.
func DetectChallenge(body []byte, keywords []string) (string, bool) {
	lower := bytes.ToLower(body)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if bytes.Contains(lower, []byte(strings.ToLower(keyword))) {
			return keyword, true
		}
	}
	return "", false
}

// ParseTable extracts the rows of the first <table> in an HTML document.
// Header rows without <td> cells are skipped.
func ParseTable(body []byte) ([]RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	rows := []RawRow{}
	var parseErr error
	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true
		}

		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(td.Text()))
		})

		row, err := remap(texts)
		if err != nil {
			parseErr = fmt.Errorf("row %d: %w", i, err)
			return false
		}
		rows = append(rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return rows, nil
}

// remap assigns page-ordered cells to their named fields.
func remap(cells []string) (RawRow, error) {
	if len(cells) != len(pageLayout) {
		return RawRow{}, fmt.Errorf("%w: got %d, want %d", ErrColumnCount, len(cells), len(pageLayout))
	}

	byColumn := make(map[string]string, len(pageLayout))
	for i, column := range pageLayout {
		byColumn[column] = cells[i]
	}

	return RawRow{
		Date:          byColumn[ColDate],
		OpenPrice:     byColumn[ColOpenPrice],
		HighPrice:     byColumn[ColHighPrice],
		LowPrice:      byColumn[ColLowPrice],
		ClosePrice:    byColumn[ColClosePrice],
		Volume:        byColumn[ColVolume],
		ChangePercent: byColumn[ColChangePercent],
	}, nil
}

func siteRoot(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}
