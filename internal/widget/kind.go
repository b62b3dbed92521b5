// Package widget implements handles to native UI primitives.
//
// Handles are generation-tagged references into a Table. The table owns the
// native objects (through a Backend) and the parent/child tree; a handle
// only names a slot. Once a widget is destroyed its handle stays valid as a
// value but every accessor fails with a StaleReferenceError.
package widget

import "fmt"

// Kind identifies the type of a widget. The set is closed.
type Kind uint8

const (
	KindButton Kind = iota
	KindContainer
	KindText
	KindScroll
	KindImage
	KindRow
	KindColumn
	KindCheckbox

	kindCount
)

var kindNames = [kindCount]string{
	KindButton:    "button",
	KindContainer: "container",
	KindText:      "text",
	KindScroll:    "scroll",
	KindImage:     "image",
	KindRow:       "row",
	KindColumn:    "column",
	KindCheckbox:  "checkbox",
}

// String returns the string representation of a Kind.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown widget kind %q", s)
}

// Kinds returns every widget kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsContainer reports whether widgets of this kind may have children.
func (k Kind) IsContainer() bool {
	return k < kindCount && kindOps[k].container
}

// Supports reports whether the kind exposes the given property.
func (k Kind) Supports(p Prop) bool {
	return k < kindCount && kindOps[k].props.has(p)
}

// Prop identifies a widget property.
type Prop uint8

const (
	PropText Prop = iota
	PropSize
	PropPosition
	PropColor
	PropScale
	PropOpacity
	PropOffset
	PropChecked
	PropVisible
	PropTexture
)

var propNames = map[Prop]string{
	PropText:     "text",
	PropSize:     "size",
	PropPosition: "position",
	PropColor:    "color",
	PropScale:    "scale",
	PropOpacity:  "opacity",
	PropOffset:   "offset",
	PropChecked:  "checked",
	PropVisible:  "visible",
	PropTexture:  "texture",
}

func (p Prop) String() string {
	if name, ok := propNames[p]; ok {
		return name
	}
	return fmt.Sprintf("prop(%d)", uint8(p))
}

type propSet uint32

func props(ps ...Prop) propSet {
	var s propSet
	for _, p := range ps {
		s |= 1 << p
	}
	return s
}

func (s propSet) has(p Prop) bool {
	return s&(1<<p) != 0
}

// kindSpec is one row of the operation table.
type kindSpec struct {
	container bool
	props     propSet
}

// Every kind is sized, placed, scaled, faded, offset and shown/hidden.
var common = props(PropSize, PropPosition, PropScale, PropOpacity, PropOffset, PropVisible)

// kindOps is indexed by Kind and must list every kind.
var kindOps = [kindCount]kindSpec{
	KindButton:    {props: common | props(PropText, PropColor, PropTexture)},
	KindContainer: {container: true, props: common | props(PropColor)},
	KindText:      {props: common | props(PropText, PropColor)},
	KindScroll:    {container: true, props: common},
	KindImage:     {props: common | props(PropTexture, PropColor)},
	KindRow:       {container: true, props: common},
	KindColumn:    {container: true, props: common},
	KindCheckbox:  {props: common | props(PropText, PropChecked, PropColor)},
}
