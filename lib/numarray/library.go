package numarray

// Library is the numeric array function table handed to hosts. Every
// function consults ready first; a Library whose runtime is not running
// answers RuntimeNotStarted or zero values.
type Library struct {
	ready func() bool
}

// NewLibrary binds a function table to a readiness check. A nil check means
// always ready.
func NewLibrary(ready func() bool) *Library {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Library{ready: ready}
}

// New allocates a zeroed array. The caller holds the only share.
func (l *Library) New(t Type, rank int, dims []int) (*NumericArray, Code) {
	if !l.ready() {
		return nil, RuntimeNotStarted
	}
	if !t.Supported() {
		return nil, TypeError
	}
	if code := checkDims(rank, dims); code != NoError {
		return nil, code
	}
	a := newArray(t, dims)
	a.shares.Store(1)
	return a, NoError
}

// Clone deep-copies from. The copy starts with one share.
func (l *Library) Clone(from *NumericArray) (*NumericArray, Code) {
	if !l.ready() {
		return nil, RuntimeNotStarted
	}
	if from == nil || from.Freed() {
		return nil, FunctionError
	}
	c := from.Clone()
	c.shares.Store(1)
	return c, NoError
}

// Free releases an array nobody else shares. Shared arrays are left alone;
// call Disown for those.
func (l *Library) Free(a *NumericArray) {
	if !l.ready() || a == nil {
		return
	}
	if a.shares.Load() > 1 {
		return
	}
	a.shares.Store(0)
	a.freed.Store(true)
}

// Disown drops one share without freeing the data.
func (l *Library) Disown(a *NumericArray) {
	if !l.ready() || a == nil {
		return
	}
	for {
		n := a.shares.Load()
		if n <= 0 || a.shares.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// DisownAll drops every share.
func (l *Library) DisownAll(a *NumericArray) {
	if !l.ready() || a == nil {
		return
	}
	a.shares.Store(0)
}

func (l *Library) ShareCount(a *NumericArray) int {
	if !l.ready() || a == nil {
		return 0
	}
	return a.ShareCount()
}

func (l *Library) Type(a *NumericArray) Type {
	if !l.ready() || a == nil {
		return Undef
	}
	return a.typ
}

func (l *Library) Rank(a *NumericArray) int {
	if !l.ready() || a == nil {
		return 0
	}
	return a.Rank()
}

func (l *Library) FlattenedLength(a *NumericArray) int {
	if !l.ready() || a == nil {
		return 0
	}
	return a.FlattenedLength()
}

func (l *Library) Dimensions(a *NumericArray) []int {
	if !l.ready() || a == nil {
		return nil
	}
	return a.Dimensions()
}

// Data returns the typed backing slice, or nil once the array is freed.
func (l *Library) Data(a *NumericArray) any {
	if !l.ready() || a == nil || a.Freed() {
		return nil
	}
	return a.data
}

// ConvertType builds a new array of type t from a. See Convert for the
// conversion rules.
func (l *Library) ConvertType(a *NumericArray, t Type, method ConvertMethod, tolerance float64) (*NumericArray, Code) {
	if !l.ready() {
		return nil, RuntimeNotStarted
	}
	if a == nil || a.Freed() {
		return nil, FunctionError
	}
	out, code := Convert(a, t, method, tolerance)
	if code != NoError {
		return nil, code
	}
	out.shares.Store(1)
	return out, NoError
}
