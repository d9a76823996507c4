// Package kumitate implements the binding-graph resolution and validation
// engine behind the kumitate analyzer: it resolves every requested key to
// exactly one producing binding across a component hierarchy, validates the
// resulting graph, and plans a topological initialization order for it.
package kumitate

import (
	"fmt"
	"go/types"
)

// Key identifies an injectable value: a semantic type plus an optional
// qualifier. Two keys address the same binding target iff their types and
// qualifiers are equal. Multibinding contributions additionally carry a
// contribution id so individual contributions never collide with each other
// or with the aggregate they feed.
type Key struct {
	typ       types.Type
	qualifier string
	contrib   string
}

// NewKey returns an unqualified key for t.
func NewKey(t types.Type) Key {
	return Key{typ: t}
}

// NewQualifiedKey returns a key for t distinguished by qualifier.
func NewQualifiedKey(t types.Type, qualifier string) Key {
	return Key{typ: t, qualifier: qualifier}
}

// Type returns the key's semantic type.
func (k Key) Type() types.Type {
	return k.typ
}

// Qualifier returns the key's qualifier, or "" when unqualified.
func (k Key) Qualifier() string {
	return k.qualifier
}

// WithContribution returns a copy of k tagged as an individual multibinding
// contribution. id must be unique among the contributions to one aggregate.
func (k Key) WithContribution(id string) Key {
	k.contrib = id
	return k
}

// ContributionID returns the multibinding contribution id, or "".
func (k Key) ContributionID() string {
	return k.contrib
}

// WithoutContribution strips the contribution id, yielding the aggregate key
// the contribution feeds.
func (k Key) WithoutContribution() Key {
	k.contrib = ""
	return k
}

// ID returns the canonical identity of the key. Keys are equal iff their IDs
// are equal; maps throughout the engine are keyed by this string since
// types.Type values are not comparable.
func (k Key) ID() string {
	id := types.TypeString(k.typ, nil)
	if k.qualifier != "" {
		id = "@" + k.qualifier + " " + id
	}
	if k.contrib != "" {
		id = id + "#" + k.contrib
	}
	return id
}

func (k Key) String() string {
	if k.qualifier != "" {
		return fmt.Sprintf("@%s %s", k.qualifier, types.TypeString(k.typ, nil))
	}
	return types.TypeString(k.typ, nil)
}

// BindingKeyKind distinguishes a request for a value from a request to
// inject the members of an existing instance. The two are never conflated,
// even for the same key.
type BindingKeyKind int

const (
	// ContributionKey requests a value for the key.
	ContributionKey BindingKeyKind = iota
	// MembersInjectionKey requests injection into an existing instance.
	MembersInjectionKey
)

func (k BindingKeyKind) String() string {
	switch k {
	case ContributionKey:
		return "contribution"
	case MembersInjectionKey:
		return "members injection"
	default:
		panic(fmt.Sprintf("unknown binding key kind %d", int(k)))
	}
}

// BindingKey is a Key tagged with how it is to be satisfied.
type BindingKey struct {
	Key  Key
	Kind BindingKeyKind
}

// ContributionBindingKey returns the contribution binding key for key.
func ContributionBindingKey(key Key) BindingKey {
	return BindingKey{Key: key, Kind: ContributionKey}
}

// MembersInjectionBindingKey returns the members-injection binding key.
func MembersInjectionBindingKey(key Key) BindingKey {
	return BindingKey{Key: key, Kind: MembersInjectionKey}
}

// ID returns the canonical identity of the binding key.
func (b BindingKey) ID() string {
	if b.Kind == MembersInjectionKey {
		return "members:" + b.Key.ID()
	}
	return b.Key.ID()
}

func (b BindingKey) String() string {
	if b.Kind == MembersInjectionKey {
		return "members of " + b.Key.String()
	}
	return b.Key.String()
}
