package objs

import (
	"encoding/json"
	"strings"
	"time"
)

// AliasKind discriminates the three Alias variants.
type AliasKind string

const (
	AliasKindUser  AliasKind = "user"
	AliasKindModel AliasKind = "model"
	AliasKindAPI   AliasKind = "api"
)

// Alias is a named binding from an OpenAI model field to a concrete
// inference target. It is modeled as an interface rather than a Rust-style
// enum; UserAlias and ModelAlias share identical shape (a DB-owned
// mutable row vs. a filesystem-derived immutable one) while APIAlias is
// structurally distinct, which an interface expresses more naturally in
// Go than a single struct with optional fields for every variant.
type Alias interface {
	// AliasName is the unique lookup key for this alias within its kind.
	AliasName() string
	// Kind identifies the concrete variant.
	Kind() AliasKind
	// CanServe reports whether this alias should handle a request for
	// modelName, per the precedence and prefix rules in the data service.
	CanServe(modelName string) bool
}

// UserAlias is a DB-owned, mutable, user-defined binding of a model name
// to a specific repo/filename/snapshot plus generation parameters.
type UserAlias struct {
	ID            string
	Name          string
	Repo          Repo
	Filename      string
	Snapshot      string
	RequestParams OAIRequestParams
	ContextParams []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u UserAlias) AliasName() string        { return u.Name }
func (u UserAlias) Kind() AliasKind          { return AliasKindUser }
func (u UserAlias) CanServe(name string) bool { return u.Name == name }

// ModelAlias is auto-synthesized from a discovered GGUF HubFile; it is
// never mutated directly and disappears when its backing file does.
// Its alias name is the conventional "repo:filename" form.
type ModelAlias struct {
	Repo     Repo
	Filename string
	Snapshot string
}

// Name renders the conventional "repo:filename" alias name for a model
// alias.
func (m ModelAlias) Name() string {
	return m.Repo.String() + ":" + m.Filename
}

func (m ModelAlias) AliasName() string         { return m.Name() }
func (m ModelAlias) Kind() AliasKind           { return AliasKindModel }
func (m ModelAlias) CanServe(name string) bool { return m.Name() == name }

// APIFormat identifies the wire format an API alias's upstream speaks.
type APIFormat string

const (
	APIFormatOpenAI    APIFormat = "openai"
	APIFormatAnthropic APIFormat = "anthropic"
	APIFormatOllama    APIFormat = "ollama"
)

// APIAlias is a DB-owned binding to a remote API-compatible backend,
// optionally prefix-routed and with a cached model list.
type APIAlias struct {
	ID                   string
	APIFormat            APIFormat
	BaseURL              string
	Models               []string
	Prefix               *string
	ForwardAllWithPrefix bool
	ModelsCache          []string
	CacheFetchedAt       *time.Time
	EncryptedAPIKey      *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (a APIAlias) AliasName() string { return a.ID }
func (a APIAlias) Kind() AliasKind   { return AliasKindAPI }

// CanServe implements the prefix-routing rule: with no prefix,
// modelName must be an exact member of Models. With a prefix set, either
// modelName strips the prefix to a Models member, or ForwardAllWithPrefix
// is true and modelName merely starts with the prefix.
func (a APIAlias) CanServe(modelName string) bool {
	if a.Prefix == nil {
		return contains(a.Models, modelName)
	}
	prefix := *a.Prefix
	if !strings.HasPrefix(modelName, prefix) {
		return false
	}
	if a.ForwardAllWithPrefix {
		return true
	}
	remainder := strings.TrimPrefix(modelName, prefix)
	return contains(a.Models, remainder)
}

func contains(list []string, needle string) bool {
	for _, v := range list {
		if v == needle {
			return true
		}
	}
	return false
}

// aliasJSON is the on-wire shape for all three alias variants; the
// variant is inferred from which optional fields are present, per the
// untagged-union scheme the object model mandates: user aliases carry
// filename+snapshot, API aliases carry base_url+models.
type aliasJSON struct {
	ID            string            `json:"id,omitempty" yaml:"id,omitempty"`
	AliasName     string            `json:"alias,omitempty" yaml:"alias,omitempty"`
	Repo          string            `json:"repo,omitempty" yaml:"repo,omitempty"`
	Filename      string            `json:"filename,omitempty" yaml:"filename,omitempty"`
	Snapshot      string            `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	RequestParams *OAIRequestParams `json:"request_params,omitempty" yaml:"request_params,omitempty"`
	ContextParams []string          `json:"context_params,omitempty" yaml:"context_params,omitempty"`

	BaseURL              string    `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Models               []string  `json:"models,omitempty" yaml:"models,omitempty"`
	Prefix               *string   `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	ForwardAllWithPrefix bool      `json:"forward_all_with_prefix,omitempty" yaml:"forward_all_with_prefix,omitempty"`
	APIFormat            APIFormat `json:"api_format,omitempty" yaml:"api_format,omitempty"`
}

// MarshalAliasJSON encodes any Alias variant into its untagged wire form.
func MarshalAliasJSON(a Alias) ([]byte, error) {
	switch v := a.(type) {
	case UserAlias:
		return json.Marshal(aliasJSON{
			ID:            v.ID,
			AliasName:     v.Name,
			Repo:          v.Repo.String(),
			Filename:      v.Filename,
			Snapshot:      v.Snapshot,
			RequestParams: &v.RequestParams,
			ContextParams: v.ContextParams,
		})
	case ModelAlias:
		return json.Marshal(aliasJSON{
			AliasName: v.Name(),
			Repo:      v.Repo.String(),
			Filename:  v.Filename,
			Snapshot:  v.Snapshot,
		})
	case APIAlias:
		return json.Marshal(aliasJSON{
			ID:                   v.ID,
			BaseURL:              v.BaseURL,
			Models:                v.Models,
			Prefix:               v.Prefix,
			ForwardAllWithPrefix: v.ForwardAllWithPrefix,
			APIFormat:            v.APIFormat,
		})
	default:
		return nil, wrapf(ErrInternal, "unknown alias kind %T", a)
	}
}

// UnmarshalAliasJSON decodes the untagged wire form back into the
// concrete variant inferred from which fields are present, completing
// the parse -> serialize -> parse round trip the spec requires.
func UnmarshalAliasJSON(data []byte) (Alias, error) {
	var raw aliasJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wrapf(ErrBadRequest, "invalid alias json: %v", err)
	}

	switch {
	case raw.BaseURL != "" && len(raw.Models) > 0:
		return APIAlias{
			ID:                   raw.ID,
			APIFormat:            raw.APIFormat,
			BaseURL:              raw.BaseURL,
			Models:                raw.Models,
			Prefix:               raw.Prefix,
			ForwardAllWithPrefix: raw.ForwardAllWithPrefix,
		}, nil
	case raw.Filename != "" && raw.Snapshot != "" && raw.ID != "":
		repo, err := ParseRepo(raw.Repo)
		if err != nil {
			return nil, err
		}
		params := OAIRequestParams{}
		if raw.RequestParams != nil {
			params = *raw.RequestParams
		}
		return UserAlias{
			ID:            raw.ID,
			Name:          raw.AliasName,
			Repo:          repo,
			Filename:      raw.Filename,
			Snapshot:      raw.Snapshot,
			RequestParams: params,
			ContextParams: raw.ContextParams,
		}, nil
	case raw.Filename != "" && raw.Snapshot != "":
		repo, err := ParseRepo(raw.Repo)
		if err != nil {
			return nil, err
		}
		return ModelAlias{Repo: repo, Filename: raw.Filename, Snapshot: raw.Snapshot}, nil
	default:
		return nil, wrapf(ErrBadRequest, "cannot infer alias variant from fields present")
	}
}
