package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"
)

// transcribePrompt asks a vision model for a faithful transcription rather
// than any interpretation, so the downstream field extractor sees the same
// kind of raw line-oriented text Tesseract would produce.
const transcribePrompt = `Transcribe ALL text visible in this receipt image exactly as printed, one receipt line per output line, top to bottom. Preserve numbers, prices, and punctuation. Do not summarize, translate, or add commentary. Output only the transcribed text.`

// Ollama implements Engine against a local Ollama vision model. It keeps the
// service free of paid cloud APIs while allowing an alternative to Tesseract.
//
// Recommended models, best first: llava:1.6, llava, qwen2-vl:7b, bakllava.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama constructs an Ollama-backed engine.
func NewOllama(baseURL, model string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llava"
	}
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			// Vision models can be slow on CPU-only hosts.
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Recognize sends the image to the model for transcription. The model cannot
// score individual words, so every word is reported as unscored (-1) and such
// scans carry a zero confidence rather than a fabricated one.
func (o *Ollama) Recognize(ctx context.Context, img image.Image) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("encoding image for recognition: %w", err)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "user",
				Content: transcribePrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(buf.Bytes())},
			},
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, fmt.Errorf("decoding response: %w", err)
	}

	text := chatResp.Message.Content
	confs := make([]int, len(strings.Fields(text)))
	for i := range confs {
		confs[i] = -1
	}
	return Result{Text: text, WordConfidences: confs}, nil
}

// Healthy checks that the Ollama server answers on its tags endpoint.
func (o *Ollama) Healthy(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("reaching ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func (o *Ollama) Close() error { return nil }
