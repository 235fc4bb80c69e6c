package render

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// TestRenderHTML_Success はレンダリング成功時にbase64画像が返ることを検証する。
func TestRenderHTML_Success(t *testing.T) {
	var gotReq renderRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render" {
			t.Errorf("expected path /render, got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write([]byte(`{"image":"aW1hZ2VkYXRh"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), newTestLogger(), ts.URL)

	image, err := client.RenderHTML(context.Background(), "<html><body>記事カード</body></html>")
	if err != nil {
		t.Fatalf("RenderHTML() returned error: %v", err)
	}
	if image != "aW1hZ2VkYXRh" {
		t.Errorf("unexpected image data: %q", image)
	}
	if gotReq.HTML == "" {
		t.Error("expected HTML to be sent in request")
	}
	if gotReq.Width != defaultViewportWidth {
		t.Errorf("expected width %d, got %d", defaultViewportWidth, gotReq.Width)
	}
}

// TestRenderHTML_ServiceError はサービスエラー時にエラーが返ることを検証する。
func TestRenderHTML_ServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), newTestLogger(), ts.URL)

	_, err := client.RenderHTML(context.Background(), "<html></html>")
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

// TestRenderHTML_EmptyImage は空の描画結果がエラーになることを検証する。
func TestRenderHTML_EmptyImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"image":"","message":"render timeout"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.Client(), newTestLogger(), ts.URL)

	_, err := client.RenderHTML(context.Background(), "<html></html>")
	if err == nil {
		t.Fatal("expected error for empty image, got nil")
	}
}
