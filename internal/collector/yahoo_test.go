package collector

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestYahooFetchDailySeries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		// Three days starting 2010-01-01; the middle close is null (holiday).
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1262304000,1262390400,1262476800],` +
			`"indicators":{"quote":[{"close":[100.5,null,102.25]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL

	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2010, 1, 3, 0, 0, 0, 0, time.UTC)
	points, err := f.FetchDailySeries("GOLD", start, end)
	if err != nil {
		t.Fatalf("FetchDailySeries: %v", err)
	}

	if gotPath != "/v8/finance/chart/GC=F" {
		t.Errorf("expected the GOLD alias to resolve to GC=F, got path %s", gotPath)
	}
	if want := "period1=1262304000&period2=1262476800&interval=1d"; gotQuery != want {
		t.Errorf("query = %s, want %s", gotQuery, want)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points (null close dropped), got %d", len(points))
	}
	if !points[0].Time.Equal(start) || points[0].Price != 100.5 {
		t.Errorf("first point = %v @ %.2f, want %v @ 100.50", points[0].Time, points[0].Price, start)
	}
	if points[1].Price != 102.25 {
		t.Errorf("second point price = %.2f, want 102.25", points[1].Price)
	}
}

func TestYahooFetchDailySeries_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL

	_, err := f.FetchDailySeries("GC=F", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestYahooFetchDailySeries_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL

	_, err := f.FetchDailySeries("GC=F", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestYahooFetchDailySeries_AllNullCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1262304000],` +
			`"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL

	_, err := f.FetchDailySeries("GC=F", time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
