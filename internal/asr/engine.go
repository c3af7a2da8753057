package asr

import (
	"fmt"
	"strings"
)

// Engine selects the model variant an ASR handle loads. It is chosen once
// when the pipeline is created and shared read-only by its workers.
type Engine string

const (
	Tiny         Engine = "tiny"
	TinyEn       Engine = "tiny.en"
	Base         Engine = "base"
	BaseEn       Engine = "base.en"
	Small        Engine = "small"
	SmallEn      Engine = "small.en"
	Medium       Engine = "medium"
	MediumEn     Engine = "medium.en"
	LargeV3      Engine = "large-v3"
	LargeV3Turbo Engine = "large-v3-turbo"
	// OpenAI transcribes remotely with the whisper-1 API model
	OpenAI Engine = "openai"
)

var engines = []Engine{Tiny, TinyEn, Base, BaseEn, Small, SmallEn, Medium, MediumEn, LargeV3, LargeV3Turbo, OpenAI}

// Engines returns every supported engine
func Engines() []Engine {
	return append([]Engine(nil), engines...)
}

// ParseEngine accepts only the closed set of engine names
func ParseEngine(s string) (Engine, error) {
	name := Engine(strings.ToLower(strings.TrimSpace(s)))
	for _, e := range engines {
		if e == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
}

// Remote reports whether the engine uploads audio files instead of running locally
func (e Engine) Remote() bool {
	return e == OpenAI
}

// EnglishOnly reports whether the model has no multilingual head
func (e Engine) EnglishOnly() bool {
	return strings.HasSuffix(string(e), ".en")
}

// ModelFile is the ggml weights filename for local engines
func (e Engine) ModelFile() string {
	if e.Remote() {
		return ""
	}
	return string(e) + ".bin"
}

func (e Engine) String() string {
	return string(e)
}
