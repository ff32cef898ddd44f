package scoring

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"speakcheck/internal/audio"
	"speakcheck/internal/domain"
	"speakcheck/internal/ports"
)

// Config points the client at the scoring endpoint.
type Config struct {
	BaseURL    string
	PhrasePath string
	PromptPath string
	Timeout    time.Duration
}

// Client uploads finished captures to the scoring endpoint as multipart forms.
type Client struct {
	http *resty.Client
	cfg  Config
	log  zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.PhrasePath == "" {
		cfg.PhrasePath = "/assess_phrase"
	}
	if cfg.PromptPath == "" {
		cfg.PromptPath = "/assess_prompt"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: http, cfg: cfg, log: logger}
}

// Score uploads one artifact and returns the raw JSON body on success.
func (c *Client) Score(ctx context.Context, req ports.ScoreRequest) ([]byte, error) {
	body, filename, contentType, err := container(req.Artifact)
	if err != nil {
		return nil, &domain.UploadError{Err: err}
	}

	path := c.cfg.PromptPath
	form := map[string]string{"language": req.Language}
	if req.Mode == domain.ModePhrase {
		path = c.cfg.PhrasePath
		form["phrase"] = req.Phrase
	} else {
		form["testType"] = req.Prompt.TestType
		form["groupId"] = req.Prompt.GroupID
		form["questionId"] = req.Prompt.QuestionID
		form["promptText"] = req.Prompt.Text
	}

	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetMultipartField("audio", filename, contentType, bytes.NewReader(body)).
		Post(path)
	if err != nil {
		return nil, &domain.UploadError{Err: err}
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode()).
		Int("bytes", len(body)).
		Dur("took", time.Since(started)).
		Msg("scoring response")

	return checkResponse(resp.StatusCode(), resp.IsSuccess(), resp.Body())
}

func checkResponse(statusCode int, ok bool, raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, &domain.MalformedResponseError{StatusCode: statusCode, Reason: "non-JSON response"}
	}

	root := gjson.ParseBytes(raw)
	status := root.Get("status")
	if !ok || status.String() == "error" {
		msg := root.Get("message").String()
		if extra := root.Get("raw").String(); msg != "" && extra != "" {
			msg = fmt.Sprintf("%s\nRaw: %s", msg, extra)
		}
		return nil, &domain.UploadError{StatusCode: statusCode, Message: msg}
	}
	if status.Type != gjson.String || status.Str == "" {
		return nil, &domain.MalformedResponseError{StatusCode: statusCode, Reason: "missing status"}
	}
	return raw, nil
}

func container(artifact domain.Artifact) ([]byte, string, string, error) {
	if artifact.Encoding != "s16le" {
		return artifact.Data, "audio.bin", "application/octet-stream", nil
	}
	rate, channels := artifact.SampleRate, artifact.Channels
	if rate <= 0 {
		rate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	wav, err := audio.EncodeWAV(artifact.Data, rate, channels)
	if err != nil {
		return nil, "", "", fmt.Errorf("encode wav: %w", err)
	}
	return wav, "audio.wav", "audio/wav", nil
}
