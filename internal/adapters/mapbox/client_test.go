package mapbox_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lukemenard/canopyviz/internal/adapters/mapbox"
)

func TestNewRequiresToken(t *testing.T) {
	if _, err := mapbox.New("", "", time.Second); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSearch(t *testing.T) {
	var gotPath, gotToken, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[
			{"place_name":"Portland, Oregon, United States","center":[-122.6765,45.5231]},
			{"place_name":"Portland, Maine, United States","center":[-70.2553,43.6591]}
		]}`))
	}))
	defer srv.Close()

	client, err := mapbox.New(srv.URL, "pk.test", time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	places, err := client.Search(context.Background(), "Portland", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}
	if places[0].Name != "Portland, Oregon, United States" {
		t.Errorf("unexpected first place %q", places[0].Name)
	}
	if places[0].Center.Lng != -122.6765 || places[0].Center.Lat != 45.5231 {
		t.Errorf("unexpected center %+v", places[0].Center)
	}
	if gotPath != "/Portland.json" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotToken != "pk.test" {
		t.Errorf("token not forwarded, got %q", gotToken)
	}
	if gotLimit != "5" {
		t.Errorf("limit not forwarded, got %q", gotLimit)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := mapbox.New(srv.URL, "pk.bad", time.Second)
	if _, err := client.Search(context.Background(), "anywhere", 5); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
