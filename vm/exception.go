package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

var (
	// ErrArity is returned when an argument vector has the wrong length.
	ErrArity = errors.New("wrong number of arguments")
	// ErrArgType is returned when an argument does not match its parameter type.
	ErrArgType = errors.New("argument type mismatch")
	// ErrNilReceiver is returned when an instance call has a nil receiver.
	ErrNilReceiver = errors.New("nil receiver")
	// ErrReceiverClass is returned when the receiver is not an instance of the
	// method's declaring class.
	ErrReceiverClass = errors.New("receiver is not an instance of the declaring class")
	// ErrAbstractMethod is returned when an abstract method has no handler.
	ErrAbstractMethod = errors.New("abstract method invoked")
	// ErrRetiredMethod is returned when a retired backup is invoked.
	ErrRetiredMethod = errors.New("method has been retired")
	// ErrNotInstantiable is returned for interfaces.
	ErrNotInstantiable = errors.New("class is not instantiable")
	// ErrFinalClass is returned when subclassing a final class.
	ErrFinalClass = errors.New("cannot subclass final class")
	// ErrNoSuchMethod is returned when a lookup finds nothing.
	ErrNoSuchMethod = errors.New("no such method")
	// ErrInitializer is returned when a class initializer failed earlier.
	ErrInitializer = errors.New("class initialization failed")
)

// ---------------------------------------------------------------------------
// Exception: errors raised by method bodies
// ---------------------------------------------------------------------------

// Exception is an error raised from inside a method body. It carries the
// class of the exception by name and an optional cause.
type Exception struct {
	Class   string
	Message string
	Cause   error
}

// Throw creates an exception error.
func Throw(class, format string, args ...any) error {
	return &Exception{Class: class, Message: fmt.Sprintf(format, args...)}
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Class
	}
	return e.Class + ": " + e.Message
}

func (e *Exception) Unwrap() error { return e.Cause }

// IsException reports whether err is an Exception of the given class.
func IsException(err error, class string) bool {
	var ex *Exception
	return errors.As(err, &ex) && ex.Class == class
}
