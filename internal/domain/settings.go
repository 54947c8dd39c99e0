package domain

// PipelineSettings is a point-in-time snapshot of provider configuration,
// resolved once per request. Edits made after the snapshot never affect an
// in-flight request.
type PipelineSettings struct {
	SourceLang string // empty means auto-detect
	TargetLang string
	TTSEnabled bool
	AutoPlay   bool
	Translator TranslatorSettings
	Voice      SynthesizerSettings
}

// TranslatorSettings is a closed union over translation providers: exactly
// one provider cluster is valid at a time.
type TranslatorSettings interface {
	translator()
}

// LocalTranslator runs translation through a local Ollama instance.
type LocalTranslator struct {
	Model         string
	URL           string
	KeepAlive     string
	ContextLength int
}

// OpenAITranslator targets an OpenAI-compatible chat completion endpoint.
type OpenAITranslator struct {
	URL   string
	Key   string
	Model string
}

// DeepLTranslator uses the DeepL API, free or pro tier.
type DeepLTranslator struct {
	Key  string
	Free bool
}

func (LocalTranslator) translator()  {}
func (OpenAITranslator) translator() {}
func (DeepLTranslator) translator()  {}

// SynthesizerSettings is the matching union over TTS providers.
type SynthesizerSettings interface {
	synthesizer()
}

// PiperSynthesizer is the server-local Piper voice.
type PiperSynthesizer struct {
	Voice string
}

// ChatterboxSynthesizer is a remote voice-clone server.
type ChatterboxSynthesizer struct {
	URL          string
	Voice        string
	Exaggeration float64
	CfgWeight    float64
	Temperature  float64
}

// ElevenLabsSynthesizer is the ElevenLabs cloud TTS.
type ElevenLabsSynthesizer struct {
	Key        string
	VoiceID    string
	Model      string
	Stability  float64
	Similarity float64
}

func (PiperSynthesizer) synthesizer()      {}
func (ChatterboxSynthesizer) synthesizer() {}
func (ElevenLabsSynthesizer) synthesizer() {}
