// Package summarizer 封装对大模型生成接口的调用，用于累计报告的自动摘要。
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orgreport/internal/model"
)

// ErrDisabled 摘要功能未配置（没有 API key）。
// 调用方据此区分“配置关闭”和“调用失败”，两者都让报告停留在 summary_pending。
var ErrDisabled = errors.New("summarizer: disabled")

const defaultModel = "gemini-1.5-flash"

// GeminiClient 调用 Gemini generateContent 接口生成摘要。
// 客户端自身无状态，*http.Client 可安全并发复用。
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiClient 创建摘要客户端。
// apiKey 为空表示功能关闭，Summarize 将直接返回 ErrDisabled。
func NewGeminiClient(baseURL, apiKey, modelName string, timeout time.Duration) *GeminiClient {
	if modelName == "" {
		modelName = defaultModel
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// generateContent 接口的请求/响应结构，只声明用到的字段。
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize 将一组来源报告压缩成一段摘要。
// language 控制摘要语言（如 "ar"、"en"），为空时默认阿拉伯语。
func (c *GeminiClient) Summarize(ctx context.Context, reports []model.Report, language string) (string, error) {
	if c.apiKey == "" {
		return "", ErrDisabled
	}
	if len(reports) == 0 {
		return "", errors.New("summarizer: no reports to summarize")
	}

	prompt := buildPrompt(reports, language)
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("summarizer: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("summarizer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Gemini 用自定义头传 key，不走 Authorization
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("summarizer: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer: upstream status %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var out generateResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", fmt.Errorf("summarizer: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("summarizer: upstream error %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("summarizer: empty response")
	}

	summary := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if summary == "" {
		return "", errors.New("summarizer: empty summary text")
	}
	return summary, nil
}

// buildPrompt 把来源报告拼接为一段提示词。
func buildPrompt(reports []model.Report, language string) string {
	langName := "Arabic"
	switch strings.ToLower(language) {
	case "en", "english":
		langName = "English"
	case "", "ar", "arabic":
		langName = "Arabic"
	default:
		langName = language
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following %d work reports into one concise management summary in %s. ", len(reports), langName)
	b.WriteString("Highlight key accomplishments, issues and decisions. Do not invent facts.\n\n")
	for i, r := range reports {
		fmt.Fprintf(&b, "Report %d: %s\n%s\n\n", i+1, r.Title, r.Content)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
