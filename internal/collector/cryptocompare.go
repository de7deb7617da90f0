package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"pricebands/internal/model"
)

const defaultCryptoCompareURL = "https://min-api.cryptocompare.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=collector_test -destination=mock_http_client_test.go -source=cryptocompare.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CryptoCompareFetcher implements Fetcher against the CryptoCompare histoday
// API. The endpoint serves at most one page of daily bars per request, ending
// at a cursor timestamp, so the fetcher pages backward from the end date
// until the requested start date is covered.
type CryptoCompareFetcher struct {
	baseURL    string
	quote      string
	pageSize   int
	httpClient HTTPClient
}

// CryptoCompareOption is a configuration option for the CryptoCompare fetcher.
type CryptoCompareOption func(*CryptoCompareFetcher)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) CryptoCompareOption {
	return func(f *CryptoCompareFetcher) {
		f.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) CryptoCompareOption {
	return func(f *CryptoCompareFetcher) {
		f.httpClient = httpClient
	}
}

// WithQuote sets the default quote currency for symbols that do not carry one.
func WithQuote(quote string) CryptoCompareOption {
	return func(f *CryptoCompareFetcher) {
		f.quote = quote
	}
}

// WithPageSize sets how many daily bars are requested per page.
func WithPageSize(n int) CryptoCompareOption {
	return func(f *CryptoCompareFetcher) {
		f.pageSize = n
	}
}

// WithProxy routes requests through an HTTP proxy. An empty URL keeps the
// direct default client.
func WithProxy(proxyURL string) CryptoCompareOption {
	return func(f *CryptoCompareFetcher) {
		if proxyURL == "" {
			return
		}
		transport := &http.Transport{}
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
		f.httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		}
	}
}

// NewCryptoCompareFetcher creates a CryptoCompare fetcher with defaults
// matching the public API: 2000-bar pages, USD quote.
func NewCryptoCompareFetcher(options ...CryptoCompareOption) *CryptoCompareFetcher {
	f := &CryptoCompareFetcher{
		baseURL:    defaultCryptoCompareURL,
		quote:      "USD",
		pageSize:   2000,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *CryptoCompareFetcher) Name() string { return "cryptocompare" }

// histoDayResponse is the envelope returned by /data/v2/histoday.
type histoDayResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		TimeFrom int64         `json:"TimeFrom"`
		TimeTo   int64         `json:"TimeTo"`
		Data     []histoDayBar `json:"Data"`
	} `json:"Data"`
}

type histoDayBar struct {
	Time  int64   `json:"time"`
	Close float64 `json:"close"`
}

// FetchDailySeries pages backward from end until the oldest bar returned is
// at or before start. Pages ascend internally and adjacent pages overlap at
// the cursor bar; duplicates are left for the series preparation step. Any
// transport error, non-success payload, or empty overall result aborts the
// fetch with ErrDataUnavailable. There are no retries.
func (f *CryptoCompareFetcher) FetchDailySeries(symbol string, start, end time.Time) ([]model.PricePoint, error) {
	fsym, tsym := f.splitSymbol(symbol)
	startTs := start.Unix()
	cursor := end.Unix()

	var points []model.PricePoint
	for {
		page, err := f.fetchPage(fsym, tsym, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break // provider history exhausted
		}
		oldest := page[0].Time
		for _, bar := range page {
			points = append(points, model.PricePoint{
				Time:  time.Unix(bar.Time, 0).UTC(),
				Price: bar.Close,
			})
		}
		if oldest <= startTs || oldest >= cursor {
			break
		}
		cursor = oldest
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: cryptocompare returned no bars for %s", ErrDataUnavailable, symbol)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

func (f *CryptoCompareFetcher) fetchPage(fsym, tsym string, toTs int64) ([]histoDayBar, error) {
	u := fmt.Sprintf("%s/data/v2/histoday?fsym=%s&tsym=%s&limit=%d&toTs=%d",
		f.baseURL, url.QueryEscape(fsym), url.QueryEscape(tsym), f.pageSize, toTs)

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cryptocompare request: %v", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: cryptocompare read body: %v", ErrDataUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cryptocompare status %d, body: %s", ErrDataUnavailable, resp.StatusCode, string(body))
	}

	var payload histoDayResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: cryptocompare decode: %v", ErrDataUnavailable, err)
	}
	if payload.Response != "Success" {
		msg := payload.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: cryptocompare api error: %s", ErrDataUnavailable, msg)
	}
	return payload.Data.Data, nil
}

// splitSymbol resolves "BTC" or "BTC/EUR" into base and quote currencies.
func (f *CryptoCompareFetcher) splitSymbol(symbol string) (fsym, tsym string) {
	if base, quote, ok := strings.Cut(symbol, "/"); ok && quote != "" {
		return base, quote
	}
	return symbol, f.quote
}
