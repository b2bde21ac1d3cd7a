package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Audit store errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

// Credential errors

// ErrAuthExchange indicates the OAuth authorization code could not be
// exchanged for tokens (invalid, expired, or already used).
type ErrAuthExchange struct {
	Err error
}

func (e *ErrAuthExchange) Error() string {
	return fmt.Sprintf("authorization code exchange failed: %v", e.Err)
}

func (e *ErrAuthExchange) Unwrap() error {
	return e.Err
}

// ErrMalformedCredentials indicates a token bundle that cannot be applied
// to an upstream client.
type ErrMalformedCredentials struct {
	Reason string
}

func (e *ErrMalformedCredentials) Error() string {
	return fmt.Sprintf("malformed credentials: %s", e.Reason)
}

// Upstream errors

// ErrUpstream wraps any failure from a forwarded Business Profile API call.
type ErrUpstream struct {
	Op  string
	Err error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}

// Place search errors

// ErrNoPlaceMatch indicates a place text search returned zero results.
type ErrNoPlaceMatch struct {
	Query string
}

func (e *ErrNoPlaceMatch) Error() string {
	return fmt.Sprintf("no similar place found for %q", e.Query)
}

// ErrPlaceLookup indicates a transport or protocol failure during a place
// text search.
type ErrPlaceLookup struct {
	Err error
}

func (e *ErrPlaceLookup) Error() string {
	return fmt.Sprintf("place lookup failed: %v", e.Err)
}

func (e *ErrPlaceLookup) Unwrap() error {
	return e.Err
}
