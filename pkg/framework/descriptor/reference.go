package descriptor

import (
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// Reference forms.
var (
	FormClass      = filterapi.MakeOSType("Clss")
	FormProperty   = filterapi.MakeOSType("prop")
	FormEnumerated = filterapi.MakeOSType("Enmr")
	FormIndex      = filterapi.MakeOSType("indx")
	FormOffset     = filterapi.MakeOSType("rele")
	FormIdentifier = filterapi.MakeOSType("Idnt")
	FormName       = filterapi.MakeOSType("name")
)

// Hop is one step of a reference. Which fields are meaningful depends on Form:
// property uses Key, enumerated uses EnumType and Key, index and offset use Index,
// identifier uses ID and name uses Name.
type Hop struct {
	Form     filterapi.OSType
	Class    filterapi.OSType
	Key      filterapi.OSType
	EnumType filterapi.OSType
	Index    int32
	ID       uint32
	Name     string
}

// Reference is a chain of hops, innermost first.
type Reference struct {
	Hops []Hop
}

// NewReference creates a reference with the given hops.
func NewReference(hops ...Hop) *Reference {
	return &Reference{Hops: append([]Hop(nil), hops...)}
}

func (r *Reference) add(h Hop) *Reference {
	r.Hops = append(r.Hops, h)
	return r
}

func (r *Reference) PutClass(class filterapi.OSType) *Reference {
	return r.add(Hop{Form: FormClass, Class: class})
}

func (r *Reference) PutProperty(class, key filterapi.OSType) *Reference {
	return r.add(Hop{Form: FormProperty, Class: class, Key: key})
}

func (r *Reference) PutEnumerated(class, enumType, value filterapi.OSType) *Reference {
	return r.add(Hop{Form: FormEnumerated, Class: class, EnumType: enumType, Key: value})
}

func (r *Reference) PutIndex(class filterapi.OSType, index int32) *Reference {
	return r.add(Hop{Form: FormIndex, Class: class, Index: index})
}

func (r *Reference) PutOffset(class filterapi.OSType, offset int32) *Reference {
	return r.add(Hop{Form: FormOffset, Class: class, Index: offset})
}

func (r *Reference) PutIdentifier(class filterapi.OSType, id uint32) *Reference {
	return r.add(Hop{Form: FormIdentifier, Class: class, ID: id})
}

func (r *Reference) PutName(class filterapi.OSType, name string) *Reference {
	return r.add(Hop{Form: FormName, Class: class, Name: name})
}

// First returns the first hop.
func (r *Reference) First() (Hop, error) {
	if r == nil || len(r.Hops) == 0 {
		return Hop{}, fmt.Errorf("%w: empty reference", ErrIndexOutOfRange)
	}
	return r.Hops[0], nil
}

// Container returns the reference without its first hop, or nil at the end of the chain.
func (r *Reference) Container() *Reference {
	if r == nil || len(r.Hops) <= 1 {
		return nil
	}
	return NewReference(r.Hops[1:]...)
}

// Clone returns a deep copy.
func (r *Reference) Clone() *Reference {
	if r == nil {
		return nil
	}
	return NewReference(r.Hops...)
}

// Equal compares hops in order.
func (r *Reference) Equal(o *Reference) bool {
	var a, b []Hop
	if r != nil {
		a = r.Hops
	}
	if o != nil {
		b = o.Hops
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FromSimple converts a classic one-hop reference.
func FromSimple(s *filterapi.SimpleReference) *Reference {
	h := Hop{Form: s.KeyForm, Class: s.DesiredClass}
	switch s.KeyForm {
	case FormName:
		h.Name = s.Name.String()
	case FormIndex, FormOffset:
		h.Index = s.Index
	case FormIdentifier:
		h.ID = uint32(s.Index)
	case FormProperty:
		h.Key = s.Value
	case FormEnumerated:
		h.EnumType = s.Type
		h.Key = s.Value
	}
	return NewReference(h)
}

// ToSimple converts the first hop into the classic one-hop form.
func (r *Reference) ToSimple() (filterapi.SimpleReference, error) {
	h, err := r.First()
	if err != nil {
		return filterapi.SimpleReference{}, err
	}
	s := filterapi.SimpleReference{DesiredClass: h.Class, KeyForm: h.Form}
	switch h.Form {
	case FormName:
		s.Name.Set(h.Name)
	case FormIndex, FormOffset:
		s.Index = h.Index
	case FormIdentifier:
		s.Index = int32(h.ID)
	case FormProperty:
		s.Type = TypeClass
		s.Value = h.Key
	case FormEnumerated:
		s.Type = h.EnumType
		s.Value = h.Key
	}
	return s, nil
}
