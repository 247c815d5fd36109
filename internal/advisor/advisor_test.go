package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "test-key"})
	c.baseURL = srv.URL
	return c
}

func TestAskNotConfigured(t *testing.T) {
	c := NewClient(Config{})
	if c.Configured() {
		t.Fatal("client without key reports configured")
	}
	_, err := c.Ask(context.Background(), "aspirin alternative?", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAsk(t *testing.T) {
	var gotReq generateRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "- Try ibuprofen"}}}},
			},
		})
	})

	history := []Turn{
		{Role: "bot", Text: "Hi! Ask me about your medicines."},
		{Role: "user", Text: "I have a headache"},
		{Role: "bot", Text: "- Paracetamol helps"},
	}
	answer, err := c.Ask(context.Background(), "what about aspirin?", history)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "- Try ibuprofen" {
		t.Errorf("answer = %q", answer)
	}

	// The leading bot greeting is dropped; the rest keeps order with the
	// bot role mapped to model.
	if len(gotReq.Contents) != 3 {
		t.Fatalf("%d contents, want 3", len(gotReq.Contents))
	}
	if gotReq.Contents[0].Role != "user" || gotReq.Contents[0].Parts[0].Text != "I have a headache" {
		t.Errorf("first content = %+v", gotReq.Contents[0])
	}
	if gotReq.Contents[1].Role != "model" {
		t.Errorf("bot turn mapped to %q, want model", gotReq.Contents[1].Role)
	}
}

func TestAskAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "key invalid"},
		})
	})

	_, err := c.Ask(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestAskRetriesTransientFailure(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "overloaded"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "ok"}}}},
			},
		})
	})

	answer, err := c.Ask(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "ok" {
		t.Errorf("answer = %q, want ok", answer)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
