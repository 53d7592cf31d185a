// Package encoding ranks capture encodings and picks the first one a device supports.
package encoding

import (
	"errors"
	"fmt"
	"strings"
)

// Encoding is a capture container/codec identifier in MIME form.
type Encoding string

const (
	WAV      Encoding = "audio/wav"
	MP4      Encoding = "audio/mp4"
	WebMOpus Encoding = "audio/webm;codecs=opus"
	WebM     Encoding = "audio/webm"
)

// DefaultCandidates is the preference order used when config does not override it.
var DefaultCandidates = []Encoding{WAV, MP4, WebMOpus, WebM}

// Negotiator holds a fixed, duplicate-free priority list.
type Negotiator struct {
	candidates []Encoding
}

// NewNegotiator validates and freezes a candidate ranking, most preferred first.
func NewNegotiator(candidates ...Encoding) (Negotiator, error) {
	if len(candidates) == 0 {
		return Negotiator{}, errors.New("encoding candidates must not be empty")
	}

	seen := make(map[Encoding]struct{}, len(candidates))
	ranked := make([]Encoding, 0, len(candidates))
	for _, candidate := range candidates {
		candidate = Encoding(strings.TrimSpace(string(candidate)))
		if candidate == "" {
			return Negotiator{}, errors.New("encoding candidate must not be empty")
		}
		if _, dup := seen[candidate]; dup {
			return Negotiator{}, fmt.Errorf("duplicate encoding candidate %q", candidate)
		}
		seen[candidate] = struct{}{}
		ranked = append(ranked, candidate)
	}
	return Negotiator{candidates: ranked}, nil
}

// Default returns the negotiator over DefaultCandidates.
func Default() Negotiator {
	n, err := NewNegotiator(DefaultCandidates...)
	if err != nil {
		panic(err)
	}
	return n
}

// Candidates returns a copy of the ranking.
func (n Negotiator) Candidates() []Encoding {
	return append([]Encoding(nil), n.candidates...)
}

// Fallback is the least-preferred candidate, used when nothing reports support.
func (n Negotiator) Fallback() Encoding {
	if len(n.candidates) == 0 {
		return WAV
	}
	return n.candidates[len(n.candidates)-1]
}

// Negotiate returns the first supported candidate and true, or the fallback and false.
func (n Negotiator) Negotiate(supported func(Encoding) bool) (Encoding, bool) {
	if supported != nil {
		for _, candidate := range n.candidates {
			if supported(candidate) {
				return candidate, true
			}
		}
	}
	return n.Fallback(), false
}

// Extension maps an encoding to the upload filename extension the service expects.
func Extension(e Encoding) string {
	id := strings.ToLower(string(e))
	switch {
	case strings.Contains(id, "wav"):
		return ".wav"
	case strings.Contains(id, "mp4"):
		return ".m4a"
	case strings.Contains(id, "webm"):
		return ".webm"
	default:
		return ".wav"
	}
}

// Parse converts config strings into encodings, rejecting blanks.
func Parse(values []string) ([]Encoding, error) {
	out := make([]Encoding, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, errors.New("encoding entries must not be empty")
		}
		out = append(out, Encoding(v))
	}
	return out, nil
}
