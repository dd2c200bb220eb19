// Package vm implements the graft object runtime.
//
// This package contains:
//   - Tagged dynamic values and parameter types
//   - Classes with instance and class-side (static) vtables
//   - Method descriptors with an atomically swappable entry point
//   - Constructors, lazy class initialization, interfaces and proxy classes
//   - Built-in methods, call sites with inline caches, and tier-up of hot methods
//   - The Compact maintenance pause
//
// Method entry points are the only mutable part of a descriptor. Rewriting
// them is the job of package engine; package hook builds interception on top.
package vm
