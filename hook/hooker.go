package hook

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/graft/internal/logging"
	"github.com/chazu/graft/trace"
	"github.com/chazu/graft/vm"
)

// Hooker is one installed interception: target redirected to replacement,
// with a backup running the original code. It is active from a successful
// Hook until Unhook; a retired Hooker cannot be reused.
type Hooker struct {
	id          uuid.UUID
	installer   Installer
	target      *vm.Method
	replacement *vm.Method
	trampoline  *vm.Method
	owner       vm.Value

	// legacy replacements take the target's argument list instead of a
	// Callback; isStatic says how that list is bound.
	legacy   bool
	isStatic bool

	tracer trace.Tracer
	log    commonlog.Logger

	// backup is published after Install returns; ready is closed then.
	backup atomic.Pointer[vm.Method]
	ready  chan struct{}

	mu      sync.Mutex
	retired atomic.Bool
}

// Option configures a Hooker.
type Option func(*Hooker)

// WithTracer records every intercepted call to t.
func WithTracer(t trace.Tracer) Option {
	return func(h *Hooker) { h.tracer = t }
}

// WithLogger overrides the hook logger.
func WithLogger(l commonlog.Logger) Option {
	return func(h *Hooker) { h.log = l }
}

// Hook redirects target to replacement through in.
//
// owner must be Nil when replacement is static; otherwise it is the
// instance the replacement runs on. On failure Hook returns nil and an
// error wrapping ErrResolution, ErrSignature or ErrInstall; dispatch of the
// target is unchanged.
func Hook(in Installer, target, replacement *vm.Method, owner vm.Value, opts ...Option) (*Hooker, error) {
	h := &Hooker{
		id:          uuid.New(),
		installer:   in,
		target:      target,
		replacement: replacement,
		owner:       owner,
		log:         logging.Logger("hook"),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.resolve(); err != nil {
		h.log.Errorf("%s", err)
		return nil, err
	}
	if err := h.checkSignature(); err != nil {
		h.log.Errorf("%s", err)
		return nil, err
	}

	backup, err := in.Install(target, h.trampoline)
	if err != nil || backup == nil {
		if err == nil {
			err = fmt.Errorf("%s: installer returned no backup", target)
		}
		close(h.ready)
		h.log.Errorf("hook %s failed: %s", target, err)
		return nil, fmt.Errorf("%w: %w", ErrInstall, err)
	}
	h.backup.Store(backup)
	close(h.ready)

	h.log.Infof("hooked %s -> %s (%s)", target, replacement, h.id)
	return h, nil
}

// resolve checks the descriptors and builds the trampoline entry bound to h.
func (h *Hooker) resolve() error {
	switch {
	case h.installer == nil:
		return fmt.Errorf("%w: nil installer", ErrResolution)
	case h.target == nil:
		return fmt.Errorf("%w: nil target", ErrResolution)
	case h.replacement == nil:
		return fmt.Errorf("%w: nil replacement for %s", ErrResolution, h.target)
	case h.target.Class() == nil:
		return fmt.Errorf("%w: %s has no declaring class", ErrResolution, h.target)
	}
	h.trampoline = vm.NewTrampoline("graft$Hooker$"+h.id.String()+".callback", h.dispatch)
	return nil
}

// checkSignature decides between the Callback form and the legacy form and
// validates owner and return type.
func (h *Hooker) checkSignature() error {
	target, repl := h.target, h.replacement
	if repl.Kind() == vm.Constructor {
		return fmt.Errorf("%w: constructor %s cannot be a replacement", ErrSignature, repl)
	}
	if !vm.Assignable(repl.Return(), target.Return()) {
		return fmt.Errorf("%w: %s returns %s, %s returns %s",
			ErrSignature, repl, repl.Return(), target, target.Return())
	}

	params := repl.Params()
	switch {
	case len(params) == 1 && params[0] == CallbackType:
		return h.checkOwner()
	case repl.IsStatic() && slices.Equal(params, legacyParams(target)):
		h.legacy, h.isStatic = true, true
	case !repl.IsStatic() && !target.IsStatic() && slices.Equal(params, target.Params()):
		if !target.Class().ConformsTo(repl.Class()) {
			return fmt.Errorf("%w: receivers of %s are not instances of %s",
				ErrSignature, target, repl.Class())
		}
		h.legacy = true
	default:
		return fmt.Errorf("%w: %s cannot stand in for %s", ErrSignature, repl, target)
	}
	if !h.owner.IsNil() {
		return fmt.Errorf("%w: legacy replacement %s takes no owner", ErrSignature, repl)
	}
	return nil
}

func (h *Hooker) checkOwner() error {
	repl := h.replacement
	if repl.IsStatic() {
		if !h.owner.IsNil() {
			return fmt.Errorf("%w: static replacement %s takes no owner", ErrSignature, repl)
		}
		return nil
	}
	if h.owner.IsNil() {
		return fmt.Errorf("%w: instance replacement %s needs an owner", ErrSignature, repl)
	}
	if c := repl.Class().VM().ClassOf(h.owner); c == nil || !c.ConformsTo(repl.Class()) {
		return fmt.Errorf("%w: owner %s is not a %s", ErrSignature, h.owner, repl.Class())
	}
	return nil
}

// legacyParams is the parameter list of a static legacy replacement: the
// target's parameters, preceded by the receiver for instance targets.
func legacyParams(target *vm.Method) []vm.Type {
	if target.IsStatic() {
		return target.Params()
	}
	return append([]vm.Type{vm.TypeObject}, target.Params()...)
}

// dispatch is the trampoline: the single entry every intercepted call of
// the target lands on. The result and error of the replacement are
// returned exactly as produced.
func (h *Hooker) dispatch(args []vm.Value) (vm.Value, error) {
	backup := h.backup.Load()
	if backup == nil {
		<-h.ready
		backup = h.backup.Load()
	}

	var start time.Time
	if h.tracer != nil {
		start = time.Now()
	}

	var (
		result vm.Value
		err    error
	)
	switch {
	case h.legacy:
		// static legacy replacements take the receiver as their first
		// parameter; instance ones are called on it.
		result, err = h.replacement.Call(args)
	case h.owner.IsNil():
		cb := &Callback{Backup: backup, Args: args}
		result, err = h.replacement.Invoke(vm.FromHost(cb))
	default:
		cb := &Callback{Backup: backup, Args: args}
		result, err = h.replacement.Invoke(h.owner, vm.FromHost(cb))
	}
	if err == nil && !h.returnOK(result) {
		err = fmt.Errorf("%w: %s returned %s for %s, want %s",
			ErrResult, h.replacement, result.Kind(), h.target, h.target.Return())
		h.log.Errorf("%s", err)
		result = vm.Nil
	}

	if h.tracer != nil {
		h.record(args, start, err)
	}
	return result, err
}

// returnOK checks a replacement result against the target's declared
// return type. Void targets ignore the result.
func (h *Hooker) returnOK(result vm.Value) bool {
	ret := h.target.Return()
	return ret.IsVoid() || ret.Accepts(result)
}

func (h *Hooker) record(args []vm.Value, start time.Time, err error) {
	ev := trace.Event{
		HookID:   h.id.String(),
		Target:   h.target.String(),
		Kind:     h.target.Kind().String(),
		Args:     make([]string, len(args)),
		Start:    start,
		Duration: time.Since(start),
	}
	for i, a := range args {
		ev.Args[i] = a.String()
	}
	if err != nil {
		ev.Err = err.Error()
	}
	h.tracer.Record(ev)
}

// Unhook removes the interception. On success the target behaves as before
// Hook and Backup returns nil; Callbacks already handed to a running
// replacement keep working. On failure dispatch is unchanged.
func (h *Hooker) Unhook() error {
	if h == nil {
		return ErrRetired
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired.Load() {
		return fmt.Errorf("%s: %w", h.target, ErrRetired)
	}
	if err := h.installer.Uninstall(h.target, h.backup.Load()); err != nil {
		h.log.Errorf("unhook %s failed: %s", h.target, err)
		return fmt.Errorf("unhook %s: %w", h.target, err)
	}
	h.retired.Store(true)
	h.log.Infof("unhooked %s (%s)", h.target, h.id)
	return nil
}

// ID returns the unique identifier of this hook.
func (h *Hooker) ID() uuid.UUID { return h.id }

// Target returns the hooked method.
func (h *Hooker) Target() *vm.Method { return h.target }

// Replacement returns the method running in place of the target.
func (h *Hooker) Replacement() *vm.Method { return h.replacement }

// Backup returns the method that runs the target's original code, or nil
// once the hook is removed.
func (h *Hooker) Backup() *vm.Method {
	if h.retired.Load() {
		return nil
	}
	return h.backup.Load()
}

// Owner returns the instance the replacement is bound to, or Nil.
func (h *Hooker) Owner() vm.Value { return h.owner }

// Legacy returns true if the replacement takes the target's argument list.
func (h *Hooker) Legacy() bool { return h.legacy }

// Active returns true until Unhook succeeds.
func (h *Hooker) Active() bool { return !h.retired.Load() }

func (h *Hooker) String() string {
	return fmt.Sprintf("hook %s: %s -> %s", h.id, h.target, h.replacement)
}
