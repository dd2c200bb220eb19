package vm

import (
	"errors"
	"sync"
	"testing"
)

func mustClass(t *testing.T, v *VM, name string, super *Class, instVars ...string) *Class {
	t.Helper()
	c, err := v.DefineClass(name, super, instVars...)
	if err != nil {
		t.Fatalf("DefineClass(%s): %v", name, err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Class creation tests
// ---------------------------------------------------------------------------

func TestDefineClass(t *testing.T) {
	v := NewVM()
	c := mustClass(t, v, "Point", nil, "x", "y")

	if c.Superclass != v.ObjectClass {
		t.Error("nil superclass should default to Object")
	}
	if c.VTable == nil || c.VTable.Class() != c {
		t.Error("VTable should belong to the class")
	}
	if c.VTable.Parent() != v.ObjectClass.VTable {
		t.Error("VTable parent should be Object's vtable")
	}
	if c.NumSlots != 2 {
		t.Errorf("NumSlots = %d, want 2", c.NumSlots)
	}
	if v.Classes.Lookup("Point") != c {
		t.Error("class should be registered")
	}
	if c.VM() != v {
		t.Error("VM() should return the owning runtime")
	}
}

func TestDefineClassFinalSuperclass(t *testing.T) {
	v := NewVM()
	_, err := v.DefineClass("MyString", v.StringClass)
	if !errors.Is(err, ErrFinalClass) {
		t.Fatalf("err = %v, want ErrFinalClass", err)
	}
}

func TestDefineClassInterfaceSuperclass(t *testing.T) {
	v := NewVM()
	i := v.DefineInterface("Runnable")
	if _, err := v.DefineClass("Task", i); err == nil {
		t.Fatal("extending an interface should fail")
	}
}

// ---------------------------------------------------------------------------
// Instance variable tests
// ---------------------------------------------------------------------------

func TestInstVarIndex(t *testing.T) {
	v := NewVM()
	point := mustClass(t, v, "Point", nil, "x", "y")
	colorPoint := mustClass(t, v, "ColorPoint", point, "color")

	if point.InstVarIndex("x") != 0 || point.InstVarIndex("y") != 1 {
		t.Error("Point slots should be x=0, y=1")
	}
	if colorPoint.InstVarIndex("color") != 2 {
		t.Errorf("color index = %d, want 2", colorPoint.InstVarIndex("color"))
	}
	if colorPoint.InstVarIndex("x") != 0 {
		t.Error("inherited slot should keep its index")
	}
	if point.InstVarIndex("z") != -1 {
		t.Error("unknown variable should be -1")
	}
	names := colorPoint.AllInstVarNames()
	if len(names) != 3 || names[2] != "color" {
		t.Errorf("AllInstVarNames = %v", names)
	}
}

func TestObjectFields(t *testing.T) {
	v := NewVM()
	point := mustClass(t, v, "Point", nil, "x", "y")
	val, err := v.New(point)
	if err != nil {
		t.Fatal(err)
	}
	obj := val.Object()
	if obj.NumSlots() != 2 {
		t.Errorf("NumSlots = %d, want 2", obj.NumSlots())
	}
	if !obj.Field("x").IsNil() {
		t.Error("fresh slots should be Nil")
	}
	if !obj.SetField("x", FromInt(3)) {
		t.Fatal("SetField(x) failed")
	}
	if obj.Field("x").Int() != 3 {
		t.Error("Field(x) should be 3")
	}
	if obj.SetField("nope", True) {
		t.Error("SetField on unknown variable should fail")
	}
	if !obj.Slot(99).IsNil() {
		t.Error("out-of-range slot should read Nil")
	}
}

// ---------------------------------------------------------------------------
// Hierarchy tests
// ---------------------------------------------------------------------------

func TestConformsTo(t *testing.T) {
	v := NewVM()
	shape := v.DefineInterface("Shape")
	base := mustClass(t, v, "Base", nil)
	if err := base.Implement(shape); err != nil {
		t.Fatal(err)
	}
	derived := mustClass(t, v, "Derived", base)

	if !derived.ConformsTo(base) || !derived.ConformsTo(v.ObjectClass) {
		t.Error("subclass should conform to its superclasses")
	}
	if !derived.ConformsTo(shape) {
		t.Error("subclass should conform to inherited interfaces")
	}
	if base.ConformsTo(derived) {
		t.Error("superclass should not conform to subclass")
	}
	if err := base.Implement(derived); err == nil {
		t.Error("implementing a non-interface should fail")
	}
	if got := derived.Superclasses(); len(got) != 2 || got[0] != base {
		t.Errorf("Superclasses = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Lookup tests
// ---------------------------------------------------------------------------

func TestMethodLookup(t *testing.T) {
	v := NewVM()
	base := mustClass(t, v, "Base", nil)
	derived := mustClass(t, v, "Derived", base)

	m := base.DefineMethod("size", nil, TypeInt, func(args []Value) (Value, error) {
		return FromInt(1), nil
	})
	over := derived.DefineMethod("size", []Type{TypeInt}, TypeInt, func(args []Value) (Value, error) {
		return args[1], nil
	})
	s := base.DefineStatic("make", nil, TypeObject, func(args []Value) (Value, error) {
		return Nil, nil
	})

	if derived.FindMethod("size") != m {
		t.Error("inherited method should resolve through the superclass")
	}
	if derived.FindMethod("size", TypeInt) != over {
		t.Error("overload should resolve by parameter types")
	}
	if derived.DeclaredMethod("size") != nil {
		t.Error("DeclaredMethod should not see inherited methods")
	}
	if derived.FindStatic("make") != s {
		t.Error("static should resolve through the superclass chain")
	}
	if base.DeclaredMethod("make") != s {
		t.Error("DeclaredMethod should find statics")
	}
	if base.FindMethod("missing") != nil {
		t.Error("unknown selector should resolve to nil")
	}
}

func TestConstructors(t *testing.T) {
	v := NewVM()
	c := mustClass(t, v, "Pair", nil, "a", "b")
	c.DefineConstructor([]Type{TypeInt, TypeInt}, func(args []Value) (Value, error) {
		obj := args[0].Object()
		obj.SetField("a", args[1])
		obj.SetField("b", args[2])
		return Nil, nil
	})

	if len(c.Constructors()) != 1 {
		t.Fatalf("Constructors() = %d, want 1", len(c.Constructors()))
	}
	ctor := c.Constructor(TypeInt, TypeInt)
	if ctor == nil || ctor.Name() != "<init>" || ctor.Kind() != Constructor {
		t.Fatalf("Constructor(int,int) = %v", ctor)
	}

	direct, err := v.New(c, FromInt(1), FromInt(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if direct.Object().Field("b").Int() != 2 {
		t.Error("direct construction did not run the constructor")
	}

	reflective, err := ctor.NewInstance(FromInt(3), FromInt(4))
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if reflective.Object().Field("a").Int() != 3 {
		t.Error("reflective construction did not run the constructor")
	}

	if _, err := v.New(c); !errors.Is(err, ErrNoSuchMethod) {
		t.Errorf("New without matching constructor: err = %v, want ErrNoSuchMethod", err)
	}
	if _, err := c.DefineMethod("x", nil, Void, nil).NewInstance(); !errors.Is(err, ErrNoSuchMethod) {
		t.Errorf("NewInstance on a method: err = %v, want ErrNoSuchMethod", err)
	}
}

// ---------------------------------------------------------------------------
// Initialization tests
// ---------------------------------------------------------------------------

func TestLazyInitialization(t *testing.T) {
	v := NewVM()
	c := mustClass(t, v, "Config", nil)
	runs := 0
	c.SetInitializer(func() error {
		runs++
		return nil
	})
	get := c.DefineStatic("get", nil, TypeInt, func(args []Value) (Value, error) {
		return FromInt(7), nil
	})

	if c.Initialized() {
		t.Fatal("class should not be initialized before first use")
	}
	for range 3 {
		if _, err := get.Invoke(); err != nil {
			t.Fatal(err)
		}
	}
	if runs != 1 {
		t.Errorf("initializer ran %d times, want 1", runs)
	}
	if !c.Initialized() {
		t.Error("class should be initialized after first use")
	}
}

func TestInitializerFailure(t *testing.T) {
	v := NewVM()
	base := mustClass(t, v, "Base", nil)
	base.SetInitializer(func() error { return errors.New("no config") })
	derived := mustClass(t, v, "Derived", base)
	get := derived.DefineStatic("get", nil, TypeInt, func(args []Value) (Value, error) {
		return FromInt(1), nil
	})

	for range 2 {
		if _, err := get.Invoke(); !errors.Is(err, ErrInitializer) {
			t.Fatalf("err = %v, want ErrInitializer", err)
		}
	}
	if _, err := v.New(derived); !errors.Is(err, ErrInitializer) {
		t.Errorf("allocation err = %v, want ErrInitializer", err)
	}
}

func TestConcurrentInitialization(t *testing.T) {
	v := NewVM()
	c := mustClass(t, v, "Shared", nil)
	var mu sync.Mutex
	runs := 0
	c.SetInitializer(func() error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})
	get := c.DefineStatic("get", nil, TypeInt, func(args []Value) (Value, error) {
		return FromInt(1), nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			get.Invoke()
		}()
	}
	wg.Wait()
	if runs != 1 {
		t.Errorf("initializer ran %d times, want 1", runs)
	}
}

// ---------------------------------------------------------------------------
// ClassTable tests
// ---------------------------------------------------------------------------

func TestClassTable(t *testing.T) {
	v := NewVM()
	before := v.Classes.Len()
	c := mustClass(t, v, "Thing", nil)
	c2 := newClass(v, "Thing", nil, nil)
	c2.Namespace = "Other"
	v.Classes.Register(c2)

	if v.Classes.Len() != before+2 {
		t.Errorf("Len = %d, want %d", v.Classes.Len(), before+2)
	}
	if v.Classes.Lookup("Other::Thing") != c2 || v.Classes.Lookup("Thing") != c {
		t.Error("lookup should key by full name")
	}
	if old := v.Classes.Register(newClass(v, "Thing", nil, nil)); old != c {
		t.Error("Register should return the replaced class")
	}
}
