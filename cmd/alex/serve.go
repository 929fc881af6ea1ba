package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/alex"
	"github.com/a-h/alex/clips"
	aipost "github.com/a-h/alex/handlers/ai/post"
	aistreampost "github.com/a-h/alex/handlers/aistream/post"
	audioget "github.com/a-h/alex/handlers/audio/get"
	speechpost "github.com/a-h/alex/handlers/speech/post"
	"github.com/a-h/alex/observe"
	"github.com/a-h/alex/persona"
	"github.com/a-h/alex/relay"
	"github.com/a-h/alex/tts"
	"github.com/a-h/alex/tts/elevenlabs"
	ttsopenai "github.com/a-h/alex/tts/openai"
	"github.com/a-h/respond"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type ServeCommand struct {
	LLMProvider       string        `help:"The completion provider to use." env:"LLM_PROVIDER" enum:"openai,ollama" default:"openai"`
	OpenAIAPIKey      string        `help:"The OpenAI API key." env:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL     string        `help:"The base URL of an OpenAI compatible API." env:"OPENAI_BASE_URL" default:""`
	OllamaURL         string        `help:"The URL of the Ollama server." env:"OLLAMA_URL" default:"http://127.0.0.1:11434/"`
	ChatModel         string        `help:"The model to chat with." env:"CHAT_MODEL" default:"gpt-3.5-turbo"`
	PersonaFile       string        `help:"A YAML file containing the assistant's name, system prompt and temperature." env:"PERSONA_FILE" default:""`
	TTSProvider       string        `help:"The speech synthesis provider to use." env:"TTS_PROVIDER" enum:"elevenlabs,openai,none" default:"elevenlabs"`
	ElevenLabsAPIKey  string        `help:"The ElevenLabs API key." env:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsVoiceID string        `help:"The ElevenLabs voice to speak with." env:"ELEVENLABS_VOICE_ID" default:""`
	ElevenLabsModel   string        `help:"The ElevenLabs model to use." env:"ELEVENLABS_MODEL" default:"eleven_flash_v2_5"`
	OpenAIVoice       string        `help:"The OpenAI voice to speak with." env:"OPENAI_VOICE" default:"alloy"`
	RedisURL          string        `help:"The URL of a Redis server to store audio clips in. Clips are kept in memory if not set." env:"REDIS_URL" default:""`
	ClipTTL           time.Duration `help:"How long audio clips are kept for." env:"CLIP_TTL" default:"10m"`
	ListenAddr        string        `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:9020"`
	TLSCertFile       string        `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile        string        `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	LogLevel          string        `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	p, err := persona.Load(c.PersonaFile)
	if err != nil {
		return fmt.Errorf("failed to load persona: %w", err)
	}
	log.Info("loaded persona", slog.String("name", p.Name))

	mp, err := observe.InitProvider("alex", alex.Version)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	defer mp.Shutdown(context.Background())
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	httpClient := &http.Client{}
	log.Info("creating LLM client", slog.String("provider", c.LLMProvider), slog.String("model", c.ChatModel))
	llm, err := c.newLLM(httpClient)
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}

	store, err := c.newClipStore(ctx, log)
	if err != nil {
		return err
	}

	opts := []relay.Option{
		relay.WithMetrics(metrics),
		relay.WithClipStore(store, "/api/audio/"),
	}
	log.Info("creating speech synthesizer", slog.String("provider", c.TTSProvider))
	synth, err := c.newSynthesizer(httpClient)
	if err != nil {
		return fmt.Errorf("failed to create speech synthesizer: %w", err)
	}
	if synth != nil {
		opts = append(opts, relay.WithSynthesizer(synth))
	}
	rl := relay.New(log, llm, p, opts...)

	mux := http.NewServeMux()
	mux.Handle("POST /api/ai-stream", aistreampost.New(log, rl))
	mux.Handle("POST /api/ai", aipost.New(log, rl))
	mux.Handle("POST /api/voice-to-speech", speechpost.New(log, rl))
	mux.Handle("GET /api/audio/{id}", audioget.New(log, store))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.WithJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	withCORSMux := cors.AllowAll().Handler(observe.Middleware(log, metrics, mux))

	log.Info("Listening", slog.String("addr", c.ListenAddr))
	s := &http.Server{
		Addr:    c.ListenAddr,
		Handler: withCORSMux,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	}
	return s.ListenAndServe()
}

func (c ServeCommand) newLLM(httpClient *http.Client) (llms.Model, error) {
	switch c.LLMProvider {
	case "ollama":
		return ollama.New(
			ollama.WithModel(c.ChatModel),
			ollama.WithHTTPClient(httpClient),
			ollama.WithServerURL(c.OllamaURL))
	default:
		if c.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		opts := []openai.Option{
			openai.WithToken(c.OpenAIAPIKey),
			openai.WithModel(c.ChatModel),
			openai.WithHTTPClient(httpClient),
		}
		if c.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.OpenAIBaseURL))
		}
		return openai.New(opts...)
	}
}

// newSynthesizer returns nil if speech is disabled.
func (c ServeCommand) newSynthesizer(httpClient *http.Client) (tts.Synthesizer, error) {
	switch c.TTSProvider {
	case "none":
		return nil, nil
	case "openai":
		if c.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		cfg := goopenai.DefaultConfig(c.OpenAIAPIKey)
		cfg.HTTPClient = httpClient
		if c.OpenAIBaseURL != "" {
			cfg.BaseURL = c.OpenAIBaseURL
		}
		return ttsopenai.New(goopenai.NewClientWithConfig(cfg), ttsopenai.WithVoice(c.OpenAIVoice))
	default:
		return elevenlabs.New(c.ElevenLabsAPIKey, c.ElevenLabsVoiceID, elevenlabs.WithModel(c.ElevenLabsModel))
	}
}

func (c ServeCommand) newClipStore(ctx context.Context, log *slog.Logger) (clips.Store, error) {
	if c.RedisURL == "" {
		log.Info("storing audio clips in memory", slog.Duration("ttl", c.ClipTTL))
		return clips.NewMemory(c.ClipTTL), nil
	}
	log.Info("connecting to redis")
	client, err := clips.ConnectRedis(ctx, c.RedisURL)
	if err != nil {
		return nil, err
	}
	return clips.NewRedis(client, c.ClipTTL), nil
}
