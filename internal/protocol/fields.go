package protocol

import (
	"time"

	"github.com/alexbleotu/ferrumfix/internal/protocol/field"
	"github.com/shopspring/decimal"
)

// Item is one entry of a FieldMap: a value, or a repeating group keyed by
// its counting tag.
type Item struct {
	Tag   int
	Value field.Value
	Group []*FieldMap

	group bool
}

func (it Item) IsGroup() bool {
	return it.group
}

// FieldMap is an ordered tag to value mapping. Each tag appears once.
// The zero value is ready to use.
type FieldMap struct {
	items []Item
	index map[int]int
}

func NewFieldMap() *FieldMap {
	return &FieldMap{}
}

func (m *FieldMap) put(it Item) {
	if m.index == nil {
		m.index = make(map[int]int)
	}
	if i, ok := m.index[it.Tag]; ok {
		m.items[i] = it
		return
	}
	m.index[it.Tag] = len(m.items)
	m.items = append(m.items, it)
}

// Set stores v under tag, replacing any earlier value in place.
func (m *FieldMap) Set(tag int, v field.Value) *FieldMap {
	m.put(Item{Tag: tag, Value: v})
	return m
}

func (m *FieldMap) SetString(tag int, s string) *FieldMap {
	return m.Set(tag, field.String(s))
}

func (m *FieldMap) SetInt(tag int, n int64) *FieldMap {
	return m.Set(tag, field.Int(n))
}

func (m *FieldMap) SetDecimal(tag int, d decimal.Decimal) *FieldMap {
	return m.Set(tag, field.Decimal(d))
}

func (m *FieldMap) SetChar(tag int, c byte) *FieldMap {
	return m.Set(tag, field.Char(c))
}

func (m *FieldMap) SetBool(tag int, b bool) *FieldMap {
	return m.Set(tag, field.Bool(b))
}

// SetTimestamp stores a UTC timestamp with millisecond precision.
func (m *FieldMap) SetTimestamp(tag int, t time.Time) *FieldMap {
	return m.Set(tag, field.Timestamp(t, 3))
}

// SetGroup stores the occurrences of a repeating group under its counting
// tag. The count written on the wire is always len(entries).
func (m *FieldMap) SetGroup(tag int, entries ...*FieldMap) *FieldMap {
	if entries == nil {
		entries = []*FieldMap{}
	}
	m.put(Item{Tag: tag, Group: entries, group: true})
	return m
}

// AddGroupEntry appends a fresh occurrence to the group under tag and
// returns it for filling.
func (m *FieldMap) AddGroupEntry(tag int) *FieldMap {
	occ := &FieldMap{}
	entries, _ := m.Group(tag)
	m.SetGroup(tag, append(entries, occ)...)
	return occ
}

func (m *FieldMap) item(tag int) (Item, bool) {
	i, ok := m.index[tag]
	if !ok {
		return Item{}, false
	}
	return m.items[i], true
}

// Get returns the value stored under tag. Groups are not values.
func (m *FieldMap) Get(tag int) (field.Value, bool) {
	it, ok := m.item(tag)
	if !ok || it.group {
		return field.Value{}, false
	}
	return it.Value, true
}

// Group returns the occurrences stored under a counting tag.
func (m *FieldMap) Group(tag int) ([]*FieldMap, bool) {
	it, ok := m.item(tag)
	if !ok || !it.group {
		return nil, false
	}
	return it.Group, true
}

func (m *FieldMap) Has(tag int) bool {
	_, ok := m.index[tag]
	return ok
}

func (m *FieldMap) Delete(tag int) {
	i, ok := m.index[tag]
	if !ok {
		return
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	delete(m.index, tag)
	for j := i; j < len(m.items); j++ {
		m.index[m.items[j].Tag] = j
	}
}

// Tags returns the stored tags in insertion order.
func (m *FieldMap) Tags() []int {
	out := make([]int, len(m.items))
	for i, it := range m.items {
		out[i] = it.Tag
	}
	return out
}

// Items returns a copy of the stored entries in insertion order.
func (m *FieldMap) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

func (m *FieldMap) Len() int {
	return len(m.items)
}

// Equal reports whether m and o hold the same tags with equal values and
// equal group occurrences. Tag order is not compared.
func (m *FieldMap) Equal(o *FieldMap) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, it := range m.items {
		ot, ok := o.item(it.Tag)
		if !ok || it.group != ot.group {
			return false
		}
		if !it.group {
			if !it.Value.Equal(ot.Value) {
				return false
			}
			continue
		}
		if len(it.Group) != len(ot.Group) {
			return false
		}
		for i := range it.Group {
			if !it.Group[i].Equal(ot.Group[i]) {
				return false
			}
		}
	}
	return true
}

func (m *FieldMap) value(tag int, kind field.Kind) (field.Value, error) {
	it, ok := m.item(tag)
	if !ok {
		return field.Value{}, ErrFieldNotFound
	}
	if it.group || it.Value.Kind != kind {
		return field.Value{}, ErrFieldTypeMismatch
	}
	return it.Value, nil
}

// String returns the wire text of the value under tag, whatever its kind.
func (m *FieldMap) String(tag int) (string, error) {
	it, ok := m.item(tag)
	if !ok {
		return "", ErrFieldNotFound
	}
	if it.group {
		return "", ErrFieldTypeMismatch
	}
	return it.Value.Text(), nil
}

func (m *FieldMap) Int(tag int) (int64, error) {
	v, err := m.value(tag, field.KindInt)
	return v.Int, err
}

func (m *FieldMap) Decimal(tag int) (decimal.Decimal, error) {
	v, err := m.value(tag, field.KindDecimal)
	return v.Decimal, err
}

func (m *FieldMap) Char(tag int) (byte, error) {
	v, err := m.value(tag, field.KindChar)
	return v.Char, err
}

func (m *FieldMap) Bool(tag int) (bool, error) {
	v, err := m.value(tag, field.KindBool)
	return v.Bool, err
}

func (m *FieldMap) Bytes(tag int) ([]byte, error) {
	v, err := m.value(tag, field.KindData)
	return v.Bytes, err
}

// Time returns timestamp, time-only and date-only values.
func (m *FieldMap) Time(tag int) (time.Time, error) {
	it, ok := m.item(tag)
	if !ok {
		return time.Time{}, ErrFieldNotFound
	}
	switch it.Value.Kind {
	case field.KindTimestamp, field.KindTimeOnly, field.KindDateOnly:
		if !it.group {
			return it.Value.Time, nil
		}
	}
	return time.Time{}, ErrFieldTypeMismatch
}
