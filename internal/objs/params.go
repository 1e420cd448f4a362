package objs

import "fmt"

// OAIRequestParams holds the optional OpenAI-compatible generation
// parameters an alias can pin. Every field is a pointer so "unset" is
// distinguishable from the zero value; FillIfAbsent implements the
// fill-if-absent semantics an alias applies to an incoming request.
type OAIRequestParams struct {
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens        *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Seed             *int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	Stop             []string `json:"stop,omitempty" yaml:"stop,omitempty" validate:"omitempty,max=4"`
	User             *string  `json:"user,omitempty" yaml:"user,omitempty"`
}

// Validate checks the bounds the struct tags declare. Nothing in the
// module evaluates the validate tags themselves, so this method is where
// the bounds are enforced.
func (p OAIRequestParams) Validate() error {
	if p.FrequencyPenalty != nil && (*p.FrequencyPenalty < -2 || *p.FrequencyPenalty > 2) {
		return fmt.Errorf("%w: frequency_penalty out of range [-2,2]", ErrBadRequest)
	}
	if p.PresencePenalty != nil && (*p.PresencePenalty < -2 || *p.PresencePenalty > 2) {
		return fmt.Errorf("%w: presence_penalty out of range [-2,2]", ErrBadRequest)
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("%w: temperature out of range [0,2]", ErrBadRequest)
	}
	if p.TopP != nil && (*p.TopP < 0 || *p.TopP > 1) {
		return fmt.Errorf("%w: top_p out of range [0,1]", ErrBadRequest)
	}
	if p.MaxTokens != nil && *p.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrBadRequest)
	}
	if len(p.Stop) > 4 {
		return fmt.Errorf("%w: stop accepts at most 4 sequences", ErrBadRequest)
	}
	return nil
}

// ApplyFillIfAbsent merges p's set fields into req wherever req's own
// field is unset. Request-supplied values always win; alias params only
// fill gaps.
func (p OAIRequestParams) ApplyFillIfAbsent(req map[string]any) {
	setIfAbsent(req, "frequency_penalty", p.FrequencyPenalty)
	setIfAbsent(req, "presence_penalty", p.PresencePenalty)
	setIfAbsent(req, "temperature", p.Temperature)
	setIfAbsent(req, "top_p", p.TopP)
	setIfAbsent(req, "max_tokens", p.MaxTokens)
	setIfAbsent(req, "seed", p.Seed)
	setIfAbsent(req, "user", p.User)
	if len(p.Stop) > 0 {
		if _, present := req["stop"]; !present {
			req["stop"] = p.Stop
		}
	}
}

func setIfAbsent[T any](req map[string]any, key string, val *T) {
	if val == nil {
		return
	}
	if _, present := req[key]; present {
		return
	}
	req[key] = *val
}
