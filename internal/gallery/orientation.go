package gallery

import "strings"

// Orientation is an image aspect category. Any is only meaningful in
// requests and stands for the union of the stored orientations.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
	Square     Orientation = "square"
	Any        Orientation = "any"
)

// Orientations lists the stored orientations in manifest order.
var Orientations = []Orientation{Horizontal, Vertical, Square}

// ValidValues returns the accepted request values, for error messages.
func ValidValues() string {
	values := make([]string, 0, len(Orientations)+1)
	for _, o := range Orientations {
		values = append(values, string(o))
	}
	values = append(values, string(Any))
	return strings.Join(values, ", ")
}

// ParseOrientation parses a request value. The empty string means Any.
func ParseOrientation(s string) (Orientation, error) {
	if s == "" {
		return Any, nil
	}

	o := Orientation(s)
	if o == Any || o.Stored() {
		return o, nil
	}

	return "", newError(ErrInvalidArgument, "invalid orientation parameter, valid values: %s", ValidValues())
}

// Stored reports whether o is one of the concrete orientations that have a
// directory in storage.
func (o Orientation) Stored() bool {
	for _, known := range Orientations {
		if o == known {
			return true
		}
	}
	return false
}

// ClassifyDimensions maps image dimensions onto an orientation.
func ClassifyDimensions(width, height int) Orientation {
	switch {
	case width > height:
		return Horizontal
	case width < height:
		return Vertical
	default:
		return Square
	}
}
