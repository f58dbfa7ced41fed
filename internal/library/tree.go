package library

import (
	"time"
)

// Kind identifies the type of a [Value].
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindReal
	KindBool
	KindDate
	KindData
	KindArray
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindData:
		return "data"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Value is a node of a decoded export tree.
type Value interface {
	Kind() Kind
}

type (
	String  string
	Integer int64
	Real    float64
	Bool    bool
	Date    time.Time
	Data    []byte
	Array   []Value
)

func (String) Kind() Kind  { return KindString }
func (Integer) Kind() Kind { return KindInteger }
func (Real) Kind() Kind    { return KindReal }
func (Bool) Kind() Kind    { return KindBool }
func (Date) Kind() Kind    { return KindDate }
func (Data) Kind() Kind    { return KindData }
func (Array) Kind() Kind   { return KindArray }

// Entry is one key/value pair of a [Dict].
type Entry struct {
	Key   string
	Value Value
}

// Dict is a dictionary that remembers the order its keys were first set in.
type Dict struct {
	entries []Entry
	index   map[string]int
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

func (*Dict) Kind() Kind { return KindDict }

// Set adds key, or replaces its value in place when it is already present.
func (d *Dict) Set(key string, v Value) {
	if i, ok := d.index[key]; ok {
		d.entries[i].Value = v
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, Entry{Key: key, Value: v})
}

// Get returns the child stored under key.
func (d *Dict) Get(key string) (Value, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.entries[i].Value, true
}

// Entries returns the dictionary's entries in iteration order.
func (d *Dict) Entries() []Entry {
	if d == nil {
		return nil
	}
	return d.entries
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// AsString coerces a string scalar. Any other kind fails.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsDict returns v as a dictionary.
func AsDict(v Value) (*Dict, bool) {
	d, ok := v.(*Dict)
	return d, ok && d != nil
}
