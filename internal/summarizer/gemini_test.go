package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orgreport/internal/model"
)

func sampleReports() []model.Report {
	return []model.Report{
		{Title: "Weekly report", Content: "Finished the migration."},
		{Title: "Incident report", Content: "Resolved the outage."},
	}
}

// TestSummarize_OK 测试正常的摘要调用：请求体带上所有报告，返回候选文本。
func TestSummarize_OK(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := generateResponse{}
		resp.Candidates = []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		}{{}}
		resp.Candidates[0].Content.Parts = []part{{Text: "  ملخص الأعمال  "}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client := NewGeminiClient(srv.URL, "test-key", "gemini-1.5-flash", time.Second)
	summary, err := client.Summarize(context.Background(), sampleReports(), "ar")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary != "ملخص الأعمال" {
		t.Errorf("summary = %q, want trimmed candidate text", summary)
	}
	if gotPath != "/v1beta/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request shape: %+v", gotBody)
	}
	prompt := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "Finished the migration.") ||
		!strings.Contains(prompt, "Resolved the outage.") {
		t.Errorf("prompt missing report content: %q", prompt)
	}
}

// TestSummarize_Disabled 测试未配置 API key 时直接返回 ErrDisabled，不发起请求。
func TestSummarize_Disabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when disabled")
	}))
	t.Cleanup(srv.Close)

	client := NewGeminiClient(srv.URL, "", "", time.Second)
	_, err := client.Summarize(context.Background(), sampleReports(), "")
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

// TestSummarize_UpstreamError 测试上游返回非 200 时的错误透传。
func TestSummarize_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewGeminiClient(srv.URL, "test-key", "", time.Second)
	_, err := client.Summarize(context.Background(), sampleReports(), "")
	if err == nil {
		t.Fatal("expected error for upstream 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry upstream status: %v", err)
	}
}

// TestSummarize_EmptyCandidates 测试上游 200 但没有候选时报错。
func TestSummarize_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewGeminiClient(srv.URL, "test-key", "", time.Second)
	if _, err := client.Summarize(context.Background(), sampleReports(), ""); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
