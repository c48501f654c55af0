package symbols

// Overlay wraps a Dictionary and interns element labels the dictionary
// does not know. Interned labels get negative ids so they can never match
// a record, but they still print by name in diagnostics such as
// nOpt('missing').
type Overlay struct {
	Dictionary
	extra   []string
	byLabel map[string]int
}

// NewOverlay wraps dict.
func NewOverlay(dict Dictionary) *Overlay {
	return &Overlay{Dictionary: dict, byLabel: make(map[string]int)}
}

// Intern returns the id of label, allocating a negative id when the
// underlying dictionary does not know it.
func (o *Overlay) Intern(label string) int {
	if id, ok := o.Dictionary.ElementID(label); ok {
		return id
	}
	if id, ok := o.byLabel[label]; ok {
		return id
	}
	o.extra = append(o.extra, label)
	id := -len(o.extra)
	o.byLabel[label] = id
	return id
}

// ElementID also finds interned labels.
func (o *Overlay) ElementID(label string) (int, bool) {
	if id, ok := o.Dictionary.ElementID(label); ok {
		return id, true
	}
	id, ok := o.byLabel[label]
	return id, ok
}

// ElementLabel decodes interned ids as well as dictionary ids.
func (o *Overlay) ElementLabel(uel int) string {
	if uel < 0 && -uel <= len(o.extra) {
		return o.extra[-uel-1]
	}
	return o.Dictionary.ElementLabel(uel)
}

// Unknown reports whether uel was interned by the overlay.
func (o *Overlay) Unknown(uel int) bool {
	return uel < 0
}

// LoadFile forwards to the wrapped dictionary when it accepts data files.
func (o *Overlay) LoadFile(path string) error {
	if l, ok := o.Dictionary.(Loader); ok {
		return l.LoadFile(path)
	}
	return errNoLoader
}
