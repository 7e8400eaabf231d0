// Package zon parses the ZON (Zig Object Notation) subset used by
// build.zig.zon manifests.
//
// The supported grammar covers anonymous struct literals (.{ ... }) with
// named fields (.name = value, .@"quoted name" = value) or positional
// values, string literals, integer literals (decimal and hex), booleans,
// and enum literals (.foo). Line comments (//) and trailing commas are
// accepted everywhere Zig accepts them.
//
// Parsing produces a generic value tree; binding the tree to a typed
// manifest model is the caller's concern.
package zon

import "fmt"

// Pos is a line/column position in the parsed source (both 1-based).
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Value is one parsed ZON value.
type Value interface {
	Position() Pos
}

// String is a string literal value.
type String struct {
	Pos   Pos
	Value string
}

// Bool is a boolean literal value.
type Bool struct {
	Pos   Pos
	Value bool
}

// Int is an integer literal value (decimal or hex).
type Int struct {
	Pos   Pos
	Value uint64
}

// Enum is an enum literal value such as .my_package.
type Enum struct {
	Pos  Pos
	Name string
}

// Struct is an anonymous struct literal with named fields.
// An empty literal .{} parses as a Struct with no fields.
type Struct struct {
	Pos    Pos
	Fields []Field
}

// Field is one named field of a Struct, in declaration order.
type Field struct {
	Name  string
	Value Value
}

// List is an anonymous struct literal with positional values,
// such as .{ "build.zig", "src" }.
type List struct {
	Pos   Pos
	Items []Value
}

func (v *String) Position() Pos { return v.Pos }
func (v *Bool) Position() Pos   { return v.Pos }
func (v *Int) Position() Pos    { return v.Pos }
func (v *Enum) Position() Pos   { return v.Pos }
func (v *Struct) Position() Pos { return v.Pos }
func (v *List) Position() Pos   { return v.Pos }

// Get returns the value of the named field and whether it exists.
func (v *Struct) Get(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// SyntaxError describes a malformed ZON document.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}
