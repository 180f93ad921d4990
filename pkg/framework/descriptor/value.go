// Package descriptor implements the scripting parameter model: typed values, ordered
// descriptors keyed by four character codes, lists, references, a registry of named
// descriptors and the binary codec used to hand descriptors to plug-ins.
package descriptor

import (
	"bytes"
	"errors"
	"math"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

var (
	// ErrKeyNotFound is returned when reading a key the descriptor does not hold.
	ErrKeyNotFound = errors.New("descriptor: key not found")
	// ErrTypeMismatch is returned when a key holds a different variant than requested.
	// No coercion is attempted.
	ErrTypeMismatch = errors.New("descriptor: type mismatch")
	// ErrIndexOutOfRange is returned for list indices past the end.
	ErrIndexOutOfRange = errors.New("descriptor: index out of range")
)

// Type codes of the value variants.
var (
	TypeBoolean      = filterapi.MakeOSType("bool")
	TypeInteger      = filterapi.MakeOSType("long")
	TypeFloat        = filterapi.MakeOSType("doub")
	TypeUnitFloat    = filterapi.MakeOSType("UntF")
	TypeText         = filterapi.MakeOSType("TEXT")
	TypeData         = filterapi.MakeOSType("tdta")
	TypeClass        = filterapi.MakeOSType("type")
	TypeGlobalClass  = filterapi.MakeOSType("GlbC")
	TypeEnumerated   = filterapi.MakeOSType("enum")
	TypeObject       = filterapi.MakeOSType("Objc")
	TypeGlobalObject = filterapi.MakeOSType("GlbO")
	TypeReference    = filterapi.MakeOSType("obj ")
	TypeList         = filterapi.MakeOSType("VlLs")
	TypeAlias        = filterapi.MakeOSType("alis")
	TypeNull         = filterapi.MakeOSType("null")
)

// Value is one of the descriptor variants below.
type Value interface {
	Kind() filterapi.OSType
	clone() Value
	equal(Value) bool
}

type (
	Boolean     bool
	Integer     int32
	Float       float64
	Text        string
	Data        []byte
	Class       filterapi.OSType
	GlobalClass filterapi.OSType
	// Alias is a file system path.
	Alias string
	Null  struct{}
)

// UnitFloat is a float tagged with a unit such as '#Pxl' or '#Prc'.
type UnitFloat struct {
	Unit  filterapi.OSType
	Value float64
}

// Enumerated is a value from an enumeration type.
type Enumerated struct {
	Type  filterapi.OSType
	Value filterapi.OSType
}

// Object is a nested descriptor with its class.
type Object struct {
	Class      filterapi.OSType
	Descriptor *Descriptor
}

// GlobalObject is a nested descriptor with a globally scoped class.
type GlobalObject struct {
	Class      filterapi.OSType
	Descriptor *Descriptor
}

func (Boolean) Kind() filterapi.OSType      { return TypeBoolean }
func (Integer) Kind() filterapi.OSType      { return TypeInteger }
func (Float) Kind() filterapi.OSType        { return TypeFloat }
func (UnitFloat) Kind() filterapi.OSType    { return TypeUnitFloat }
func (Text) Kind() filterapi.OSType         { return TypeText }
func (Data) Kind() filterapi.OSType         { return TypeData }
func (Class) Kind() filterapi.OSType        { return TypeClass }
func (GlobalClass) Kind() filterapi.OSType  { return TypeGlobalClass }
func (Enumerated) Kind() filterapi.OSType   { return TypeEnumerated }
func (Object) Kind() filterapi.OSType       { return TypeObject }
func (GlobalObject) Kind() filterapi.OSType { return TypeGlobalObject }
func (*Reference) Kind() filterapi.OSType   { return TypeReference }
func (*List) Kind() filterapi.OSType        { return TypeList }
func (Alias) Kind() filterapi.OSType        { return TypeAlias }
func (Null) Kind() filterapi.OSType         { return TypeNull }

func (v Boolean) clone() Value     { return v }
func (v Integer) clone() Value     { return v }
func (v Float) clone() Value       { return v }
func (v UnitFloat) clone() Value   { return v }
func (v Text) clone() Value        { return v }
func (v Data) clone() Value        { return Data(bytes.Clone(v)) }
func (v Class) clone() Value       { return v }
func (v GlobalClass) clone() Value { return v }
func (v Enumerated) clone() Value  { return v }
func (v Object) clone() Value {
	return Object{Class: v.Class, Descriptor: v.Descriptor.Clone()}
}
func (v GlobalObject) clone() Value {
	return GlobalObject{Class: v.Class, Descriptor: v.Descriptor.Clone()}
}
func (v *Reference) clone() Value { return v.Clone() }
func (v *List) clone() Value      { return v.Clone() }
func (v Alias) clone() Value      { return v }
func (v Null) clone() Value       { return v }

func (v Boolean) equal(o Value) bool     { w, ok := o.(Boolean); return ok && v == w }
func (v Integer) equal(o Value) bool     { w, ok := o.(Integer); return ok && v == w }
func (v Float) equal(o Value) bool       { w, ok := o.(Float); return ok && sameFloat(float64(v), float64(w)) }
func (v UnitFloat) equal(o Value) bool {
	w, ok := o.(UnitFloat)
	return ok && v.Unit == w.Unit && sameFloat(v.Value, w.Value)
}
func (v Text) equal(o Value) bool        { w, ok := o.(Text); return ok && v == w }
func (v Data) equal(o Value) bool        { w, ok := o.(Data); return ok && bytes.Equal(v, w) }
func (v Class) equal(o Value) bool       { w, ok := o.(Class); return ok && v == w }
func (v GlobalClass) equal(o Value) bool { w, ok := o.(GlobalClass); return ok && v == w }
func (v Enumerated) equal(o Value) bool  { w, ok := o.(Enumerated); return ok && v == w }
func (v Alias) equal(o Value) bool       { w, ok := o.(Alias); return ok && v == w }
func (v Null) equal(o Value) bool        { _, ok := o.(Null); return ok }

// sameFloat compares bit patterns, so a NaN equals itself.
func sameFloat(a, b float64) bool { return math.Float64bits(a) == math.Float64bits(b) }

func (v Object) equal(o Value) bool {
	w, ok := o.(Object)
	return ok && v.Class == w.Class && v.Descriptor.Equal(w.Descriptor)
}

func (v GlobalObject) equal(o Value) bool {
	w, ok := o.(GlobalObject)
	return ok && v.Class == w.Class && v.Descriptor.Equal(w.Descriptor)
}

func (v *Reference) equal(o Value) bool {
	w, ok := o.(*Reference)
	return ok && v.Equal(w)
}

func (v *List) equal(o Value) bool {
	w, ok := o.(*List)
	return ok && v.Equal(w)
}

// Item is a stored value with its flags word.
type Item struct {
	Value Value
	Flags uint32
}

func (it Item) clone() Item {
	if it.Value == nil {
		return it
	}
	return Item{Value: it.Value.clone(), Flags: it.Flags}
}

func (it Item) equal(o Item) bool {
	if it.Flags != o.Flags {
		return false
	}
	if it.Value == nil || o.Value == nil {
		return it.Value == nil && o.Value == nil
	}
	return it.Value.equal(o.Value)
}

// FlagSource supplies the flags word for a key when a value is first produced.
type FlagSource interface {
	Flags(key filterapi.OSType) (uint32, bool)
}
