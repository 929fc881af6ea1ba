package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/alex/models"
	"github.com/a-h/jsonapi"
)

// ErrRelay is returned when the relay reports, after the reply has started,
// that it could not complete it.
var ErrRelay = errors.New("relay failed to complete the reply")

func New(baseURL string) Client {
	return Client{
		baseURL: baseURL,
	}
}

type Client struct {
	baseURL string
}

// AIStream posts the conversation and returns the complete reply. If f is not
// nil it is called with each chunk as it arrives.
func (c Client) AIStream(ctx context.Context, request models.AIStreamPostRequest, f func(ctx context.Context, chunk []byte) error) (reply models.StreamedReply, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "ai-stream").String()
	if err != nil {
		return reply, err
	}
	var buf bytes.Buffer
	trailer, err := c.postStream(ctx, url, request, func(ctx context.Context, chunk []byte) error {
		buf.Write(chunk)
		if f != nil {
			return f(ctx, chunk)
		}
		return nil
	})
	if err != nil {
		return reply, err
	}
	if trailer.Get(models.TrailerRelayStatus) == models.StatusError {
		return reply, ErrRelay
	}
	reply = models.StreamedReply{
		Body:       buf.Bytes(),
		TextLength: -1,
	}
	if v := trailer.Get(models.TrailerTextLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > len(reply.Body) {
			return reply, fmt.Errorf("invalid %s trailer %q", models.TrailerTextLength, v)
		}
		reply.TextLength = n
	}
	return reply, nil
}

func (c Client) AI(ctx context.Context, req models.AIPostRequest) (resp models.AIPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "ai").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.AIPostRequest, models.AIPostResponse](ctx, url, req)
}

// Speech returns the synthesized audio for the text.
func (c Client) Speech(ctx context.Context, req models.SpeechPostRequest) (audio []byte, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("api", "voice-to-speech").String()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	_, err = c.postStream(ctx, url, req, func(ctx context.Context, chunk []byte) error {
		buf.Write(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Audio fetches a clip referenced by the audioUrl of an AI response.
func (c Client) Audio(ctx context.Context, audioURL string) (audio []byte, err error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(audioURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audio URL: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if err = checkStatus(res); err != nil {
		return nil, err
	}
	return io.ReadAll(res.Body)
}

func checkStatus(res *http.Response) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	return nil
}

// postStream calls f with each chunk of the response body, and returns the
// trailers once the body has been read.
func (c Client) postStream(ctx context.Context, url string, req any, f func(ctx context.Context, chunk []byte) error) (trailer http.Header, err error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("Content-Type", "application/json"))
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if err = checkStatus(res); err != nil {
		return nil, err
	}
	chunk := make([]byte, 1024)
	for {
		n, err := res.Body.Read(chunk)
		if n > 0 {
			if err := f(ctx, chunk[:n]); err != nil {
				return nil, fmt.Errorf("failed to process chunk: %w", err)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
	}
	return res.Trailer, nil
}
