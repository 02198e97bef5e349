package provider

import (
	"errors"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	names := r.Names()
	if len(names) != 2 || names[0] != NameOpenAI || names[1] != NamePerplexity {
		t.Fatalf("Names() = %v, want [openai perplexity]", names)
	}

	for _, name := range names {
		p, err := r.New(name, "key")
		if err != nil {
			t.Fatalf("New(%q) error = %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, p.Name())
		}
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := DefaultRegistry().New("anthropic", "key")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("New() error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistryCaseInsensitive(t *testing.T) {
	p, err := DefaultRegistry().New("OpenAI", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Name() != NameOpenAI {
		t.Errorf("Name() = %q, want %q", p.Name(), NameOpenAI)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		kind      Kind
		sentinel  error
		retryable bool
	}{
		{KindAuth, ErrAuth, false},
		{KindRateLimited, ErrRateLimited, true},
		{KindTransient, ErrTransient, true},
		{KindPermanent, ErrPermanent, false},
		{KindMalformed, ErrMalformed, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := error(&Error{Kind: tt.kind, Provider: "openai", StatusCode: 500, Err: errors.New("boom")})
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false", tt.sentinel)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.retryable)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", KindOf(err), tt.kind)
			}
		})
	}

	err := &Error{Kind: KindAuth, Provider: "perplexity", StatusCode: 401, Err: errors.New("bad key")}
	if got, want := err.Error(), "perplexity: authentication failed (HTTP 401): bad key"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("auth error matched ErrRateLimited")
	}
}
