package hook

import "github.com/chazu/graft/vm"

// Installer rewrites method dispatch on behalf of Hook.
//
// Install must make every later call to target run callback's entry, as a
// single atomic switch, and return a backup that runs what target ran
// before. It must accept a target that is already hooked (stacking).
// Uninstall must undo exactly the installation that returned backup and
// leave dispatch unchanged when it fails.
type Installer interface {
	Install(target, callback *vm.Method) (backup *vm.Method, err error)
	Uninstall(target, backup *vm.Method) error
}
