// VoiceTask - a hands-free reminders assistant for the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/normanking/voicetask/internal/audio"
	"github.com/normanking/voicetask/internal/brain"
	"github.com/normanking/voicetask/internal/bus"
	"github.com/normanking/voicetask/internal/config"
	"github.com/normanking/voicetask/internal/discovery"
	"github.com/normanking/voicetask/internal/intent"
	"github.com/normanking/voicetask/internal/logging"
	"github.com/normanking/voicetask/internal/stt"
	"github.com/normanking/voicetask/internal/tts"
	"github.com/normanking/voicetask/internal/turn"
	"github.com/normanking/voicetask/internal/voice"
)

// loadEnvFile pulls API keys from ~/.voicetask/.env or ./.env into the
// process environment.
func loadEnvFile() {
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".voicetask", ".env"))
	}
	godotenv.Load()
}

func main() {
	loadEnvFile()

	syslog, err := logging.New(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging init failed:", err)
		os.Exit(1)
	}
	defer syslog.Close()
	log := syslog.Component("main")

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Config load failed, using defaults")
	}

	eventBus := bus.New()

	sttProvider := stt.NewDeepgram(syslog.Component("stt"), &stt.DeepgramConfig{
		APIKey:         cfg.STT.APIKey,
		Model:          cfg.STT.Model,
		Language:       cfg.STT.Language,
		SampleRate:     cfg.Audio.SampleRate,
		Encoding:       "linear16",
		Channels:       1,
		InterimResults: cfg.STT.InterimResults,
		Punctuate:      true,
	})
	if !sttProvider.IsAvailable() {
		log.Fatal().Msg("No Deepgram API key; set DEEPGRAM_API_KEY or stt.api_key")
	}

	ttsCfg := tts.DefaultOpenAIConfig()
	ttsCfg.APIKey = cfg.TTS.APIKey
	ttsCfg.DefaultVoice = cfg.TTS.VoiceID
	ttsProvider := tts.NewOpenAIProvider(syslog.Component("tts"), ttsCfg)
	if !ttsProvider.IsAvailable() {
		log.Fatal().Msg("No OpenAI API key; set OPENAI_API_KEY or tts.api_key")
	}

	brainURL := resolveBrainURL(log, cfg.Brain.ServerURL)
	brainClient := brain.NewClient(&brain.ClientConfig{
		ServerURL:    brainURL,
		Timeout:      cfg.Brain.Timeout,
		UserID:       "default-user",
		SystemPrompt: cfg.Brain.SystemPrompt,
	}, syslog.Component("brain"))

	capturer, err := audio.NewCapturer(audio.CaptureConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}, syslog.Component("audio"))
	if err != nil {
		log.Fatal().Err(err).Msg("Audio device init failed")
	}
	defer capturer.Close()

	scorer := intent.NewScorer(intent.DefaultScorerConfig())

	orch := voice.NewOrchestrator(orchestratorConfig(cfg), voice.Deps{
		Source:     capturer,
		Recognizer: sttProvider,
		Synth:      ttsProvider,
		Play:       tts.Play,
		Responder:  brainClient,
		Scorer:     scorer,
		Tasks: func(title string, due *time.Time) {
			evt := log.Info().Str("title", title)
			if due != nil {
				evt = evt.Time("due", *due)
			}
			evt.Msg("Task extracted")
		},
		Bus: eventBus,
	}, syslog.Zerolog())

	config.Watch(func(fresh *config.Config) {
		log.Info().Msg("Config changed, applying new thresholds")
		orch.UpdateConfig(orchestratorConfig(fresh))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("brain", brainClient.ServerURL()).Msg("VoiceTask ready, listening for speech")
	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Conversation loop failed")
	}
	log.Info().Msg("Shutting down")
}

// resolveBrainURL prefers the configured backend, falling back to a
// local port scan when it is unreachable.
func resolveBrainURL(log zerolog.Logger, configured string) string {
	svc := discovery.NewService(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if backend, err := svc.Probe(ctx, configured); err == nil {
		log.Info().Str("url", backend.URL).Str("name", backend.Name).Msg("Backend reachable")
		return configured
	}

	if found := svc.Scan(ctx); len(found) > 0 {
		log.Warn().
			Str("configured", configured).
			Str("discovered", found[0].URL).
			Msg("Configured backend unreachable, using discovered one")
		return found[0].URL
	}

	log.Warn().Str("url", configured).Msg("Backend unreachable, replies will fall back")
	return configured
}

func orchestratorConfig(cfg *config.Config) voice.Config {
	return voice.Config{
		Turn: turn.Config{
			SilenceThreshold: cfg.Turn.SilenceThreshold,
			MaxTurnDuration:  cfg.Turn.MaxTurnDuration,
			TickInterval:     cfg.Turn.TickInterval,
			CancelCooldown:   cfg.Turn.CancelCooldown,
			HighThreshold:    cfg.Cancellation.HighThreshold,
			LowThreshold:     cfg.Cancellation.LowThreshold,
		},
		Detector: audio.DetectorConfig{
			BasePowerThreshold:  cfg.Audio.BasePowerThreshold,
			Sensitivity:         cfg.Audio.VADSensitivity,
			RequiredVoiceFrames: cfg.Audio.RequiredVoiceFrames,
		},
		PostTTSCooldown: cfg.Turn.PostTTSCooldown,
		AutoListen:      cfg.Turn.AutoListen,
		VoiceID:         cfg.TTS.VoiceID,
		Speed:           cfg.TTS.Speed,
	}
}
