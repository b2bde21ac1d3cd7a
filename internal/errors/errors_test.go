package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigErrors(t *testing.T) {
	notFound := &ErrConfigNotFound{Path: "/tmp/config.yaml"}
	if !strings.Contains(notFound.Error(), "config file not found") {
		t.Fatalf("unexpected error message: %s", notFound.Error())
	}
	if !strings.Contains(notFound.Error(), notFound.Path) {
		t.Fatalf("expected path in error message: %s", notFound.Error())
	}

	base := errors.New("bad yaml")
	parse := &ErrConfigParse{Err: base}
	if !strings.Contains(parse.Error(), "failed to parse YAML") {
		t.Fatalf("unexpected parse message: %s", parse.Error())
	}
	if !errors.Is(parse, base) {
		t.Fatalf("expected unwrap to base error")
	}

	validation := &ErrConfigValidation{Err: base}
	if !strings.Contains(validation.Error(), "config validation failed") {
		t.Fatalf("unexpected validation message: %s", validation.Error())
	}
	if !errors.Is(validation, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestCredentialErrors(t *testing.T) {
	base := errors.New("invalid_grant")

	exchange := &ErrAuthExchange{Err: base}
	if !strings.Contains(exchange.Error(), "authorization code exchange failed") {
		t.Fatalf("unexpected exchange message: %s", exchange.Error())
	}
	if !errors.Is(exchange, base) {
		t.Fatalf("expected unwrap to base error")
	}

	malformed := &ErrMalformedCredentials{Reason: "missing access token"}
	if !strings.Contains(malformed.Error(), "malformed credentials") {
		t.Fatalf("unexpected malformed message: %s", malformed.Error())
	}
	if !strings.Contains(malformed.Error(), "missing access token") {
		t.Fatalf("expected reason in message: %s", malformed.Error())
	}
}

func TestUpstreamError(t *testing.T) {
	base := errors.New("permission denied")
	up := &ErrUpstream{Op: "accounts.list", Err: base}
	if !strings.Contains(up.Error(), "accounts.list") {
		t.Fatalf("expected operation in message: %s", up.Error())
	}
	if !errors.Is(up, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestPlaceErrors(t *testing.T) {
	noMatch := &ErrNoPlaceMatch{Query: "Acme, Dhaka"}
	if !strings.Contains(noMatch.Error(), "no similar place found") {
		t.Fatalf("unexpected no-match message: %s", noMatch.Error())
	}

	base := errors.New("timeout")
	lookup := &ErrPlaceLookup{Err: base}
	if !strings.Contains(lookup.Error(), "place lookup failed") {
		t.Fatalf("unexpected lookup message: %s", lookup.Error())
	}
	if !errors.Is(lookup, base) {
		t.Fatalf("expected unwrap to base error")
	}
}
