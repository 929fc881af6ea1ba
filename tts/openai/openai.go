// Package openai synthesizes speech with the OpenAI audio/speech endpoint.
//
// The endpoint accepts complete text only, so streamed text is regrouped into
// sentences and each sentence is synthesized in turn. MP3 frames from
// consecutive sentences play back as a single stream.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/a-h/alex/tts"
	"github.com/sashabaranov/go-openai"
)

type Provider struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = openai.SpeechModel(model)
	}
}

func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = openai.SpeechVoice(voice)
	}
}

// New creates a provider using client, which carries the API key and base URL.
func New(client *openai.Client, opts ...Option) (*Provider, error) {
	if client == nil {
		return nil, errors.New("openai: client must not be nil")
	}
	p := &Provider{
		client: client,
		model:  openai.TTSModel1,
		voice:  openai.VoiceAlloy,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

const readChunkSize = 16 * 1024

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, audio chan<- []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sentences := make(chan string)
	go tts.Sentences(ctx, text, sentences)

	for sentence := range sentences {
		if err := p.speak(ctx, sentence, audio); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (p *Provider) speak(ctx context.Context, sentence string, audio chan<- []byte) (err error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.model,
		Input:          sentence,
		Voice:          p.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("openai: create speech: %w", err)
	}
	defer resp.Close()
	for {
		chunk := make([]byte, readChunkSize)
		n, err := resp.Read(chunk)
		if n > 0 {
			select {
			case audio <- chunk[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("openai: read speech: %w", err)
		}
	}
}
