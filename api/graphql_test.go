package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGraphQLDataField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body.Query == "" {
			t.Error("query should be present")
		}
		if body.Variables["name"] != "slippi" {
			t.Errorf("expected variable name=slippi, got %v", body.Variables["name"])
		}
		w.Write([]byte(`{"data": {"getUser": {"displayName": "Fizzi"}}}`))
	}))
	defer srv.Close()

	client := NewClient("3.4.0")
	client.GraphQLEndpoint = srv.URL

	var out struct {
		DisplayName string `json:"displayName"`
	}
	err := client.GraphQL("query { getUser { displayName } }").
		Variables(map[string]interface{}{"name": "slippi"}).
		DataField("getUser").
		Send(&out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.DisplayName != "Fizzi" {
		t.Fatalf("expected displayName Fizzi, got %q", out.DisplayName)
	}
}

func TestGraphQLServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": [{"message": "not allowed"}]}`))
	}))
	defer srv.Close()

	client := NewClient("3.4.0")
	client.GraphQLEndpoint = srv.URL

	err := client.GraphQL("mutation { nope }").Send(nil)
	if err == nil {
		t.Fatal("expected error from errors payload")
	}
}

func TestGraphQLMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"other": true}}`))
	}))
	defer srv.Close()

	client := NewClient("3.4.0")
	client.GraphQLEndpoint = srv.URL

	var out bool
	err := client.GraphQL("query { wanted }").DataField("wanted").Send(&out)
	if err == nil {
		t.Fatal("expected error for missing data field")
	}
}

func TestUserAgentHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	client := NewClient("3.4.0")
	client.GraphQLEndpoint = srv.URL
	if err := client.GraphQL("query { ping }").Send(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "SlippiDolphin/3.4.0" {
		t.Fatalf("expected versioned user agent, got %q", got)
	}
}
