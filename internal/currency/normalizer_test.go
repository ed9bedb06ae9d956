package currency

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/noahpengding/peng-finance/internal/logger"
)

func TestNormalize_BaseCurrency(t *testing.T) {
	n := NewNormalizer("CAD", StaticRates{})

	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"plain", "12.50", 12.50},
		{"negative", "-12.50", -12.50},
		{"dollar symbol", "$99.99", 99.99},
		{"sign then symbol", "-$12.50", -12.50},
		{"euro symbol", "€7.25", 7.25},
		{"pound symbol", "£3.00", 3.00},
		{"yen symbol", "¥450", 450},
		{"integer", "100", 100},
		{"whitespace", "  25.00 ", 25.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(context.Background(), tt.raw, "CAD")
			if got != tt.want {
				t.Errorf("Normalize(%q, CAD) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_MalformedAmountLogsAndDefaults(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	n := NewNormalizer("CAD", StaticRates{})
	got := n.Normalize(ctx, "abc", "CAD")

	if got != 0.0 {
		t.Errorf("Normalize(abc) = %v, want 0.0", got)
	}
	if !strings.Contains(buf.String(), "Malformed amount") {
		t.Errorf("Expected malformed amount warning, got log: %s", buf.String())
	}
}

func TestNormalize_Conversion(t *testing.T) {
	// 1 USD = 1.35 CAD
	n := NewNormalizer("CAD", StaticRates{"USD": 1.35})

	got := n.Normalize(context.Background(), "$10.00", "USD")
	if got != 13.50 {
		t.Errorf("Normalize($10.00, USD) = %v, want 13.50", got)
	}

	got = n.Normalize(context.Background(), "-10.00", "USD")
	if got != -13.50 {
		t.Errorf("Normalize(-10.00, USD) = %v, want -13.50", got)
	}
}

func TestNormalize_RateLookupFailureKeepsAmount(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	n := NewNormalizer("CAD", StaticRates{})
	got := n.Normalize(ctx, "-20.00", "USD")

	if got != -20.00 {
		t.Errorf("Normalize with missing rate = %v, want unconverted -20.00", got)
	}
	if !strings.Contains(buf.String(), "Rate lookup failed") {
		t.Errorf("Expected rate lookup warning, got log: %s", buf.String())
	}
}

func TestNormalize_EmptyCurrencyPassesThrough(t *testing.T) {
	n := NewNormalizer("CAD", StaticRates{})
	if got := n.Normalize(context.Background(), "5.00", ""); got != 5.00 {
		t.Errorf("Normalize(5.00, \"\") = %v, want 5.00", got)
	}
}

func TestAPIRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "CAD") {
			t.Errorf("Expected request for CAD table, got %s", r.URL.Path)
		}
		// Quoted as code-per-base: 1 CAD = 0.74 USD.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rates": map[string]float64{"USD": 0.74, "CAD": 1},
		})
	}))
	defer srv.Close()

	rates := NewAPIRates(srv.URL+"/", "CAD", time.Hour)

	rate, err := rates.Rate(context.Background(), "USD")
	if err != nil {
		t.Fatalf("Rate(USD) failed: %v", err)
	}
	want := 1 / 0.74
	if rate != want {
		t.Errorf("Rate(USD) = %v, want %v", rate, want)
	}

	if _, err := rates.Rate(context.Background(), "XXX"); err == nil {
		t.Error("Expected error for unknown currency")
	}
}

func TestAPIRates_StaleCacheSurvivesFetchFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rates": map[string]float64{"USD": 0.5},
		})
	}))
	defer srv.Close()

	rates := NewAPIRates(srv.URL+"/", "CAD", 0) // TTL 0 forces refresh every call

	if _, err := rates.Rate(context.Background(), "USD"); err != nil {
		t.Fatalf("first Rate failed: %v", err)
	}
	rate, err := rates.Rate(context.Background(), "USD")
	if err != nil {
		t.Fatalf("second Rate should fall back to cached table: %v", err)
	}
	if rate != 2 {
		t.Errorf("cached Rate(USD) = %v, want 2", rate)
	}
}
