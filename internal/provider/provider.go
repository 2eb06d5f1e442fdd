// Package provider defines the backend descriptors and adapters the engine
// fans out to. Descriptors are process-wide configuration built once at
// startup; adapters issue exactly one outbound call per invocation and
// never retry internally.
package provider

import (
	"context"

	"github.com/sells-group/exam-engine/internal/model"
)

// Capability names what a backend descriptor can do.
type Capability string

const (
	CapabilityVision Capability = "vision-extraction"
	CapabilityText   Capability = "text-evaluation"
)

// CapabilityFor maps a task kind to the capability that serves it.
func CapabilityFor(kind model.TaskKind) Capability {
	if kind == model.TaskExtraction {
		return CapabilityVision
	}
	return CapabilityText
}

// Descriptor identifies one backend for one capability. Immutable after
// construction; a backend without credentials is Available=false and is
// excluded from every fan-out.
type Descriptor struct {
	Name       string
	Capability Capability
	Model      string
	Available  bool
}

// Adapter issues one request to one external LLM endpoint. The returned
// error is classified into a typed failure by the engine; adapters must
// return promptly once ctx expires.
type Adapter interface {
	Name() string
	Invoke(ctx context.Context, task model.TaskRequest, d Descriptor) (model.RawResponse, error)
}

// Credential holds one backend's API key and model override.
type Credential struct {
	APIKey string
	Model  string
}

// Credentials is the full provider configuration surface. An omitted key
// marks that backend unavailable without further configuration.
type Credentials struct {
	Anthropic Credential
	OpenAI    Credential
	Gemini    Credential
}

// Default models used when the credential does not name one.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// Registry is the immutable descriptor set. All three backends are
// multimodal, so each contributes one descriptor per capability.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry builds the descriptor set from the supplied credentials.
func NewRegistry(creds Credentials) *Registry {
	backends := []struct {
		name         string
		cred         Credential
		defaultModel string
	}{
		{"anthropic", creds.Anthropic, DefaultAnthropicModel},
		{"openai", creds.OpenAI, DefaultOpenAIModel},
		{"gemini", creds.Gemini, DefaultGeminiModel},
	}

	r := &Registry{}
	for _, b := range backends {
		m := b.cred.Model
		if m == "" {
			m = b.defaultModel
		}
		for _, c := range []Capability{CapabilityVision, CapabilityText} {
			r.descriptors = append(r.descriptors, Descriptor{
				Name:       b.name,
				Capability: c,
				Model:      m,
				Available:  b.cred.APIKey != "",
			})
		}
	}
	return r
}

// Descriptors returns a copy of every descriptor, available or not.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.descriptors...)
}

// ForKind returns the available descriptors that can serve a task kind.
func (r *Registry) ForKind(kind model.TaskKind) []Descriptor {
	want := CapabilityFor(kind)
	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Available && d.Capability == want {
			out = append(out, d)
		}
	}
	return out
}
