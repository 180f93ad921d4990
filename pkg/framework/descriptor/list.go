package descriptor

import (
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// List is an ordered sequence of items.
type List struct {
	items []Item
}

// NewList creates a list holding values, in order.
func NewList(values ...Value) *List {
	l := &List{}
	for _, v := range values {
		l.Append(v)
	}
	return l
}

// Append adds v at the end.
func (l *List) Append(v Value) {
	l.items = append(l.items, Item{Value: v})
}

func (l *List) PutInteger(v int32)   { l.Append(Integer(v)) }
func (l *List) PutFloat(v float64)   { l.Append(Float(v)) }
func (l *List) PutBoolean(v bool)    { l.Append(Boolean(v)) }
func (l *List) PutText(v string)     { l.Append(Text(v)) }
func (l *List) PutData(v []byte)     { l.Append(Data(v)) }
func (l *List) PutAlias(path string) { l.Append(Alias(path)) }

// Len returns the number of items.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Get returns the item at index i.
func (l *List) Get(i int) (Item, error) {
	if i < 0 || i >= l.Len() {
		return Item{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, l.Len())
	}
	return l.items[i], nil
}

// Type returns the type code of the item at index i.
func (l *List) Type(i int) (filterapi.OSType, error) {
	it, err := l.Get(i)
	if err != nil {
		return 0, err
	}
	return it.Value.Kind(), nil
}

func listGet[T Value](l *List, i int, want filterapi.OSType) (T, error) {
	var zero T
	it, err := l.Get(i)
	if err != nil {
		return zero, err
	}
	v, ok := it.Value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: item %d holds '%s', not '%s'", ErrTypeMismatch, i, it.Value.Kind(), want)
	}
	return v, nil
}

func (l *List) Integer(i int) (int32, error) {
	v, err := listGet[Integer](l, i, TypeInteger)
	return int32(v), err
}

func (l *List) Float(i int) (float64, error) {
	v, err := listGet[Float](l, i, TypeFloat)
	return float64(v), err
}

func (l *List) UnitFloat(i int) (UnitFloat, error) {
	return listGet[UnitFloat](l, i, TypeUnitFloat)
}

func (l *List) Boolean(i int) (bool, error) {
	v, err := listGet[Boolean](l, i, TypeBoolean)
	return bool(v), err
}

func (l *List) Text(i int) (string, error) {
	v, err := listGet[Text](l, i, TypeText)
	return string(v), err
}

func (l *List) Data(i int) ([]byte, error) {
	v, err := listGet[Data](l, i, TypeData)
	return []byte(v), err
}

func (l *List) Alias(i int) (string, error) {
	v, err := listGet[Alias](l, i, TypeAlias)
	return string(v), err
}

func (l *List) Enumerated(i int) (Enumerated, error) {
	return listGet[Enumerated](l, i, TypeEnumerated)
}

func (l *List) Class(i int) (filterapi.OSType, error) {
	it, err := l.Get(i)
	if err != nil {
		return 0, err
	}
	switch v := it.Value.(type) {
	case Class:
		return filterapi.OSType(v), nil
	case GlobalClass:
		return filterapi.OSType(v), nil
	}
	return 0, fmt.Errorf("%w: item %d holds '%s', not '%s'", ErrTypeMismatch, i, it.Value.Kind(), TypeClass)
}

func (l *List) Object(i int) (filterapi.OSType, *Descriptor, error) {
	it, err := l.Get(i)
	if err != nil {
		return 0, nil, err
	}
	switch v := it.Value.(type) {
	case Object:
		return v.Class, v.Descriptor, nil
	case GlobalObject:
		return v.Class, v.Descriptor, nil
	}
	return 0, nil, fmt.Errorf("%w: item %d holds '%s', not '%s'", ErrTypeMismatch, i, it.Value.Kind(), TypeObject)
}

func (l *List) List(i int) (*List, error) {
	return listGet[*List](l, i, TypeList)
}

func (l *List) Reference(i int) (*Reference, error) {
	return listGet[*Reference](l, i, TypeReference)
}

// Clone returns a deep copy.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}
	c := &List{items: make([]Item, len(l.items))}
	for i, it := range l.items {
		c.items[i] = it.clone()
	}
	return c
}

// Equal compares items in order.
func (l *List) Equal(o *List) bool {
	if l.Len() != o.Len() {
		return false
	}
	for i := 0; i < l.Len(); i++ {
		if !l.items[i].equal(o.items[i]) {
			return false
		}
	}
	return true
}
