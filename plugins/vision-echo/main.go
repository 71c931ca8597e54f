// Package main provides a reference vision classifier plugin.
// It answers with the strongest physics suggestion it is given, which makes
// it useful for wiring tests and as a template for real classifiers.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Suggestion is one physics event offered to the classifier.
type Suggestion struct {
	Action     string  `json:"action"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}

// Request represents the input from the process classifier.
type Request struct {
	Window struct {
		Start  float64           `json:"start"`
		End    float64           `json:"end"`
		Frames []json.RawMessage `json:"frames"`
	} `json:"window"`
	Suggestions []Suggestion    `json:"suggestions"`
	Keyframes   []string        `json:"keyframes"`
	Config      json.RawMessage `json:"config"`
}

// Response represents the output to the process classifier.
type Response struct {
	Action     string  `json:"action,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Config is the plugin configuration.
type Config struct {
	// Fallback is answered when there are no suggestions. Empty means the
	// plugin reports an error instead.
	Fallback           string  `json:"fallback"`
	FallbackConfidence float64 `json:"fallback_confidence"`

	// Discount scales the confidence of the echoed suggestion.
	Discount float64 `json:"discount"`
}

func defaultConfig() Config {
	return Config{FallbackConfidence: 0.5, Discount: 1}
}

func main() {
	json.NewEncoder(os.Stdout).Encode(handle(os.Stdin))
}

func handle(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	cfg := defaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return Response{Error: fmt.Sprintf("failed to parse config: %v", err)}
		}
	}
	if cfg.Discount < 0 || cfg.Discount > 1 {
		return Response{Error: "discount must be between 0 and 1"}
	}

	return classify(req, cfg)
}

// classify picks the most confident suggestion, the earliest on ties.
func classify(req Request, cfg Config) Response {
	if len(req.Suggestions) == 0 {
		if cfg.Fallback == "" {
			return Response{Error: "no suggestions to echo"}
		}
		return Response{
			Action:     cfg.Fallback,
			Confidence: cfg.FallbackConfidence,
			Reasoning:  fmt.Sprintf("no physics events in %d frames, answering fallback", len(req.Window.Frames)),
		}
	}

	best := req.Suggestions[0]
	for _, s := range req.Suggestions[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}

	reasoning := fmt.Sprintf("echoing %s at %.2fs-%.2fs out of %d suggestions", best.Action, best.StartTime, best.EndTime, len(req.Suggestions))
	if len(req.Keyframes) > 0 {
		reasoning += fmt.Sprintf(", %d keyframes ignored", len(req.Keyframes))
	}

	return Response{
		Action:     best.Action,
		Confidence: best.Confidence * cfg.Discount,
		Reasoning:  reasoning,
	}
}
