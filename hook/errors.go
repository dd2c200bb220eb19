package hook

import "errors"

var (
	// ErrResolution is returned when the target, the replacement or the
	// trampoline cannot be resolved.
	ErrResolution = errors.New("hook: cannot resolve callable")
	// ErrSignature is returned when the replacement cannot stand in for the
	// target, or the owner does not fit the replacement.
	ErrSignature = errors.New("hook: replacement does not match target")
	// ErrInstall wraps a refusal of the Installer.
	ErrInstall = errors.New("hook: installation failed")
	// ErrResult is returned to the caller when a replacement returns a value
	// the target's return type does not accept.
	ErrResult = errors.New("hook: replacement result does not match target")
	// ErrRetired is returned when unhooking a hook twice.
	ErrRetired = errors.New("hook: already unhooked")
)
