// Package lambdasherr defines the error kind taxonomy shared by every
// lambdash package: handle parsing, manifest loading, shader repository
// resolution, channel binding construction, and the GPU rendering core.
package lambdasherr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure without requiring string matching on the error
// message. Callers use errors.As to recover a *Error and switch on Kind.
type Kind string

const (
	HandleParse              Kind = "handle_parse"
	ManifestMissing          Kind = "manifest_missing"
	ManifestParse            Kind = "manifest_parse"
	ManifestValidation       Kind = "manifest_validation"
	CacheMiss                Kind = "cache_miss"
	CacheCorrupt             Kind = "cache_corrupt"
	RemoteUnavailable        Kind = "remote_unavailable"
	RemotePayloadInvalid     Kind = "remote_payload_invalid"
	UnsupportedPassKind      Kind = "unsupported_pass_kind"
	DownloadFailed           Kind = "download_failed"
	ChannelBindingIssue      Kind = "channel_binding_issue"
	ShaderCompile            Kind = "shader_compile"
	LayoutSignatureMismatch  Kind = "layout_signature_mismatch"
	SurfaceLost              Kind = "surface_lost"
	SurfaceOutdated          Kind = "surface_outdated"
	SurfaceOutOfMemory       Kind = "surface_out_of_memory"
	SchedulerUnknownPlaylist Kind = "scheduler_unknown_playlist"
	NoPlaylistMapping        Kind = "no_playlist_mapping"
)

// Error is the concrete error type returned by lambdash operations. Subject
// identifies the offending path, handle, id, or channel so logs are
// actionable without re-parsing the message, per the error-surfacing design
// note.
type Error struct {
	Kind    Kind
	Subject string
	Cause   error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Subject, e.Cause)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Subject)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}

// Wrap builds an *Error wrapping cause. If cause is already a *Error of the
// same kind it is returned unchanged so call sites can wrap liberally
// without stacking duplicate context.
func Wrap(kind Kind, subject string, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) && existing.Kind == kind {
		return existing
	}
	return &Error{Kind: kind, Subject: subject, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
