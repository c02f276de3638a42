package referral

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBasePointsParsesBalance(t *testing.T) {
	w2 := wallet(2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := fmt.Sprintf("/points/7/%s", w2.Hex())
		if r.URL.Path != want {
			t.Fatalf("unexpected path %s, want %s", r.URL.Path, want)
		}
		fmt.Fprintf(w, `{"wallet":"%s","points":"123.456789"}`, w2.Hex())
	}))
	defer srv.Close()

	client := NewPointsClient(PointsConfig{BaseURL: srv.URL})
	points, err := client.BasePoints(context.Background(), 7, w2)
	if err != nil {
		t.Fatalf("base points: %v", err)
	}
	if got := points.Units().Int64(); got != 123_456_789 {
		t.Fatalf("points = %d units, want 123456789", got)
	}
}

func TestBasePointsUnknownWalletIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewPointsClient(PointsConfig{BaseURL: srv.URL})
	points, err := client.BasePoints(context.Background(), 7, wallet(9))
	if err != nil {
		t.Fatalf("unknown wallet must read as zero, got %v", err)
	}
	if !points.IsZero() {
		t.Fatalf("points = %s, want 0", points)
	}
}

func TestBasePointsRejectsMalformedBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"points":"12.3.4"}`)
	}))
	defer srv.Close()

	client := NewPointsClient(PointsConfig{BaseURL: srv.URL})
	if _, err := client.BasePoints(context.Background(), 1, wallet(1)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBasePointsRejectsNegativeBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"points":"-5"}`)
	}))
	defer srv.Close()

	client := NewPointsClient(PointsConfig{BaseURL: srv.URL})
	if _, err := client.BasePoints(context.Background(), 1, wallet(1)); err == nil {
		t.Fatal("expected negative balance rejection")
	}
}

func TestBasePointsSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewPointsClient(PointsConfig{BaseURL: srv.URL})
	if _, err := client.BasePoints(context.Background(), 1, wallet(1)); err == nil {
		t.Fatal("expected status error")
	}
}
