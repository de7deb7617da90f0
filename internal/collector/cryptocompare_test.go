package collector_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pricebands/internal/collector"
)

type wireBar struct {
	Time  int64   `json:"time"`
	Close float64 `json:"close"`
}

func histodayResponse(t *testing.T, response, message string, bars []wireBar) *http.Response {
	t.Helper()
	payload := map[string]any{
		"Response": response,
		"Message":  message,
		"Data":     map[string]any{"Data": bars},
	}
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(payload))
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(buffer),
	}
}

func unixDate(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func TestFetchDailySeries_PagesBackwardUntilStartCovered(t *testing.T) {
	t.Parallel()

	// Arrange: a mock transport serving two pages keyed by the toTs cursor.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 11, 0, 0, 0, 0, time.UTC)

	pageRecent := []wireBar{ // ascending, oldest 2020-01-07 still after start
		{Time: unixDate(2020, 1, 7), Close: 107},
		{Time: unixDate(2020, 1, 8), Close: 108},
		{Time: unixDate(2020, 1, 9), Close: 109},
		{Time: unixDate(2020, 1, 10), Close: 110},
		{Time: unixDate(2020, 1, 11), Close: 111},
	}
	pageOlder := []wireBar{ // oldest 2019-12-30 covers the start date
		{Time: unixDate(2019, 12, 30), Close: 99},
		{Time: unixDate(2019, 12, 31), Close: 100},
		{Time: unixDate(2020, 1, 1), Close: 101},
		{Time: unixDate(2020, 1, 7), Close: 107}, // cursor bar repeats at the page boundary
	}

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), "http://localhost:9999"),
				"expected url to start with the overridden base url, received: %s", req.URL.String())
			require.Equal(t, "BTC", req.URL.Query().Get("fsym"))
			require.Equal(t, "USD", req.URL.Query().Get("tsym"))
			require.Equal(t, "5", req.URL.Query().Get("limit"))

			switch req.URL.Query().Get("toTs") {
			case "1578700800": // end cursor
				return histodayResponse(t, "Success", "", pageRecent), nil
			case "1578355200": // moved to the oldest bar of the first page
				return histodayResponse(t, "Success", "", pageOlder), nil
			default:
				t.Fatalf("unexpected toTs cursor: %s", req.URL.Query().Get("toTs"))
				return nil, nil
			}
		}).
		Times(2)

	fetcher := collector.NewCryptoCompareFetcher(
		collector.WithHTTPClient(httpClient),
		collector.WithBaseURL("http://localhost:9999"),
		collector.WithPageSize(5),
	)

	// Act: fetch the series covering [start, end].
	points, err := fetcher.FetchDailySeries("BTC", start, end)

	// Assert: both pages accumulated, sorted ascending, boundary duplicate kept.
	require.NoError(t, err)
	require.Len(t, points, 9)
	require.Equal(t, time.Date(2019, 12, 30, 0, 0, 0, 0, time.UTC), points[0].Time)
	require.Equal(t, time.Date(2020, 1, 11, 0, 0, 0, 0, time.UTC), points[len(points)-1].Time)
	for i := 1; i < len(points); i++ {
		require.False(t, points[i].Time.Before(points[i-1].Time), "points must ascend")
	}
}

func TestFetchDailySeries_StopsWhenCursorStalls(t *testing.T) {
	t.Parallel()

	// Arrange: the provider keeps answering with a single bar at the cursor,
	// so paging can make no progress and must stop after one round.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	end := time.Date(2020, 1, 11, 0, 0, 0, 0, time.UTC)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(*http.Request) (*http.Response, error) {
			return histodayResponse(t, "Success", "", []wireBar{{Time: end.Unix(), Close: 111}}), nil
		}).
		Times(1)

	fetcher := collector.NewCryptoCompareFetcher(collector.WithHTTPClient(httpClient))

	// Act
	points, err := fetcher.FetchDailySeries("BTC", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), end)

	// Assert
	require.NoError(t, err)
	require.Len(t, points, 1)
}

func TestFetchDailySeries_APIErrorPayload(t *testing.T) {
	t.Parallel()

	// Arrange: a well-formed envelope carrying a provider-side error.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(*http.Request) (*http.Response, error) {
			return histodayResponse(t, "Error", "fsym param is invalid", nil), nil
		}).
		Times(1)

	fetcher := collector.NewCryptoCompareFetcher(collector.WithHTTPClient(httpClient))

	// Act
	_, err := fetcher.FetchDailySeries("NOPE", time.Now().AddDate(-1, 0, 0), time.Now())

	// Assert
	require.ErrorIs(t, err, collector.ErrDataUnavailable)
	require.Contains(t, err.Error(), "fsym param is invalid")
}

func TestFetchDailySeries_TransportError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, errors.New("connection refused")).
		Times(1)

	fetcher := collector.NewCryptoCompareFetcher(collector.WithHTTPClient(httpClient))

	_, err := fetcher.FetchDailySeries("BTC", time.Now().AddDate(-1, 0, 0), time.Now())
	require.ErrorIs(t, err, collector.ErrDataUnavailable)
}

func TestFetchDailySeries_EmptyHistory(t *testing.T) {
	t.Parallel()

	// Arrange: a success envelope with no bars at all.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(*http.Request) (*http.Response, error) {
			return histodayResponse(t, "Success", "", nil), nil
		}).
		Times(1)

	fetcher := collector.NewCryptoCompareFetcher(collector.WithHTTPClient(httpClient))

	_, err := fetcher.FetchDailySeries("BTC", time.Now().AddDate(-1, 0, 0), time.Now())
	require.ErrorIs(t, err, collector.ErrDataUnavailable)
}

func TestFetchDailySeries_SymbolQuoteOverride(t *testing.T) {
	t.Parallel()

	// Arrange: a "BASE/QUOTE" symbol should override the default quote.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	end := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "BTC", req.URL.Query().Get("fsym"))
			require.Equal(t, "EUR", req.URL.Query().Get("tsym"))
			return histodayResponse(t, "Success", "", []wireBar{{Time: end.Unix(), Close: 1}}), nil
		}).
		Times(1)

	fetcher := collector.NewCryptoCompareFetcher(collector.WithHTTPClient(httpClient))

	// Act + Assert
	_, err := fetcher.FetchDailySeries("BTC/EUR", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), end)
	require.NoError(t, err)
}
