package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Languages LanguagesConfig `yaml:"languages"`
	Translate TranslateConfig `yaml:"translate"`
	TTS       TTSConfig       `yaml:"tts"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

type AudioConfig struct {
	SampleRate  int    `yaml:"sample_rate"`
	DownloadDir string `yaml:"download_dir"`
}

type LanguagesConfig struct {
	Source string `yaml:"source"` // empty means auto-detect
	Target string `yaml:"target"`
}

// TranslateConfig selects one translation provider. Only the sub-section
// matching Provider is read.
type TranslateConfig struct {
	Provider string          `yaml:"provider"`
	Local    LocalTranslate  `yaml:"local"`
	OpenAI   OpenAITranslate `yaml:"openai"`
	DeepL    DeepLTranslate  `yaml:"deepl"`
}

type LocalTranslate struct {
	Model         string `yaml:"model"`
	URL           string `yaml:"url"`
	KeepAlive     string `yaml:"keep_alive"`
	ContextLength int    `yaml:"context_length"`
}

type OpenAITranslate struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Model string `yaml:"model"`
}

type DeepLTranslate struct {
	Key  string `yaml:"key"`
	Free bool   `yaml:"free"`
}

// TTSConfig selects one synthesis provider, same shape as TranslateConfig.
type TTSConfig struct {
	Enabled    bool          `yaml:"enabled"`
	AutoPlay   bool          `yaml:"auto_play"`
	Provider   string        `yaml:"provider"`
	Piper      PiperTTS      `yaml:"piper"`
	Chatterbox ChatterboxTTS `yaml:"chatterbox"`
	ElevenLabs ElevenLabsTTS `yaml:"elevenlabs"`
}

type PiperTTS struct {
	Voice string `yaml:"voice"`
}

type ChatterboxTTS struct {
	URL          string  `yaml:"url"`
	Voice        string  `yaml:"voice"`
	Exaggeration float64 `yaml:"exaggeration"`
	CfgWeight    float64 `yaml:"cfg_weight"`
	Temperature  float64 `yaml:"temperature"`
}

type ElevenLabsTTS struct {
	Key        string  `yaml:"key"`
	VoiceID    string  `yaml:"voice_id"`
	Model      string  `yaml:"model"`
	Stability  float64 `yaml:"stability"`
	Similarity float64 `yaml:"similarity"`
}

type HistoryConfig struct {
	Enabled   bool `yaml:"enabled"`
	ListLimit int  `yaml:"list_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8100/api"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.DownloadDir == "" {
		c.Audio.DownloadDir = "."
	}
	if c.Languages.Target == "" {
		c.Languages.Target = "en"
	}
	if c.Translate.Provider == "" {
		c.Translate.Provider = "local"
	}
	if c.Translate.Local.KeepAlive == "" {
		c.Translate.Local.KeepAlive = "3m"
	}
	if c.TTS.Provider == "" {
		c.TTS.Provider = "piper"
	}
	if c.TTS.Chatterbox.Exaggeration == 0 {
		c.TTS.Chatterbox.Exaggeration = 0.5
	}
	if c.TTS.Chatterbox.CfgWeight == 0 {
		c.TTS.Chatterbox.CfgWeight = 0.5
	}
	if c.TTS.Chatterbox.Temperature == 0 {
		c.TTS.Chatterbox.Temperature = 0.8
	}
	if c.TTS.ElevenLabs.Model == "" {
		c.TTS.ElevenLabs.Model = "eleven_multilingual_v2"
	}
	if c.TTS.ElevenLabs.Stability == 0 {
		c.TTS.ElevenLabs.Stability = 0.5
	}
	if c.TTS.ElevenLabs.Similarity == 0 {
		c.TTS.ElevenLabs.Similarity = 0.75
	}
	if c.History.ListLimit == 0 {
		c.History.ListLimit = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Snapshot resolves the current provider selection into an immutable
// settings value for one pipeline request.
func (c *Config) Snapshot() domain.PipelineSettings {
	return domain.PipelineSettings{
		SourceLang: c.Languages.Source,
		TargetLang: c.Languages.Target,
		TTSEnabled: c.TTS.Enabled,
		AutoPlay:   c.TTS.AutoPlay,
		Translator: c.translator(),
		Voice:      c.synthesizer(),
	}
}

func (c *Config) translator() domain.TranslatorSettings {
	switch c.Translate.Provider {
	case "openai":
		return domain.OpenAITranslator{
			URL:   c.Translate.OpenAI.URL,
			Key:   c.Translate.OpenAI.Key,
			Model: c.Translate.OpenAI.Model,
		}
	case "deepl":
		return domain.DeepLTranslator{
			Key:  c.Translate.DeepL.Key,
			Free: c.Translate.DeepL.Free,
		}
	default:
		return domain.LocalTranslator{
			Model:         c.Translate.Local.Model,
			URL:           c.Translate.Local.URL,
			KeepAlive:     c.Translate.Local.KeepAlive,
			ContextLength: c.Translate.Local.ContextLength,
		}
	}
}

func (c *Config) synthesizer() domain.SynthesizerSettings {
	switch c.TTS.Provider {
	case "chatterbox":
		return domain.ChatterboxSynthesizer{
			URL:          c.TTS.Chatterbox.URL,
			Voice:        c.TTS.Chatterbox.Voice,
			Exaggeration: c.TTS.Chatterbox.Exaggeration,
			CfgWeight:    c.TTS.Chatterbox.CfgWeight,
			Temperature:  c.TTS.Chatterbox.Temperature,
		}
	case "elevenlabs":
		return domain.ElevenLabsSynthesizer{
			Key:        c.TTS.ElevenLabs.Key,
			VoiceID:    c.TTS.ElevenLabs.VoiceID,
			Model:      c.TTS.ElevenLabs.Model,
			Stability:  c.TTS.ElevenLabs.Stability,
			Similarity: c.TTS.ElevenLabs.Similarity,
		}
	default:
		return domain.PiperSynthesizer{Voice: c.TTS.Piper.Voice}
	}
}
