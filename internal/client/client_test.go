package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		token:   "token",
		http: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

func TestSendChatInsufficientBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"balance too low"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.SendChat(context.Background(), ChatRequest{Message: "hi"})
	if !IsInsufficientBalance(err) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}
	if IsTransient(err) || IsUnauthorized(err) {
		t.Fatalf("misclassified error: %v", err)
	}
}

func TestSendChatSuccess(t *testing.T) {
	var gotBody ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("authorization header = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id":"j1","conversation_id":"c1"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	resp, err := c.SendChat(context.Background(), ChatRequest{Message: "hi", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("SendChat error: %v", err)
	}
	if resp.JobID != "j1" || resp.ConversationID != "c1" {
		t.Fatalf("resp = %+v", resp)
	}
	if gotBody.Message != "hi" {
		t.Fatalf("request body = %+v", gotBody)
	}
}

func TestPollJobRequestAndResponse(t *testing.T) {
	var seenPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status":"running",
			"activities":[{"id":4,"type":"thinking_stream","message":"hm"}],
			"last_activity_id":4
		}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	resp, err := c.PollJob(context.Background(), "j1", 3)
	if err != nil {
		t.Fatalf("PollJob error: %v", err)
	}
	if seenPath != "/jobs/j1?since_activity_id=3" {
		t.Fatalf("request path = %s", seenPath)
	}
	if resp.Status != PollStatusRunning || resp.LastActivityID != 4 || len(resp.Activities) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestUnauthorizedClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.PollJob(context.Background(), "j1", 0)
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.PollJob(context.Background(), "j1", 0)
	if !IsTransient(err) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestTimeoutIsTransientNotCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := testClient(server.URL)
	c.http.Timeout = 20 * time.Millisecond
	_, err := c.PollJob(context.Background(), "j1", 0)
	if !IsTransient(err) {
		t.Fatalf("expected transient timeout, got %v", err)
	}
	if IsRequestCancelled(err) {
		t.Fatalf("timeout misclassified as cancellation: %v", err)
	}
}

func TestCallerCancellationClassification(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := testClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := c.PollJob(ctx, "j1", 0)
	if !IsRequestCancelled(err) {
		t.Fatalf("expected request cancelled, got %v", err)
	}
}

func TestRespondAndCancelPaths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
	}))
	defer server.Close()

	c := testClient(server.URL)
	if err := c.RespondJob(context.Background(), "j1", "yes"); err != nil {
		t.Fatalf("RespondJob error: %v", err)
	}
	if err := c.CancelJob(context.Background(), "j1"); err != nil {
		t.Fatalf("CancelJob error: %v", err)
	}
	if err := c.MarkRead(context.Background(), "c1"); err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	want := []string{"POST /jobs/j1/respond", "POST /jobs/j1/cancel", "POST /conversations/c1/read"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("path %d = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestInvalidateSessionRemovesToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := &Client{tokenPath: tokenPath, token: "secret", http: &http.Client{}}
	if err := c.InvalidateSession(); err != nil {
		t.Fatalf("InvalidateSession error: %v", err)
	}
	if c.token != "" {
		t.Fatal("token not cleared")
	}
	if _, err := os.Stat(tokenPath); !os.IsNotExist(err) {
		t.Fatal("token file still present")
	}
	// Idempotent once the file is gone.
	if err := c.InvalidateSession(); err != nil {
		t.Fatalf("second InvalidateSession error: %v", err)
	}
}
