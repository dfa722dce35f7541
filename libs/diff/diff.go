package diff

import (
	"reflect"
	"time"

	odiff "github.com/r3labs/diff/v3"

	"tracker/libs/timeutil"
	"tracker/segment"
)

func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(odiff.CustomValueDiffers(&TimeComparer{}))
	if err != nil {
		panic(err)
	}
	return ret
}

// TimeComparer treats two instants as equal when they name the same moment,
// whatever their location or textual form.
type TimeComparer struct{}

var (
	timeType = reflect.TypeOf(time.Time{})
)

// Match check is field match this custom type
func (c TimeComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == timeType.Kind() && a.Type() == timeType
	bok := b.Kind() == timeType.Kind() && b.Type() == timeType
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff records an update when the instants differ
func (c TimeComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, cl *odiff.Changelog, path []string, a reflect.Value, b reflect.Value, _ interface{}) error {
	valA := reflect.Indirect(a)
	valB := reflect.Indirect(b)

	if !valA.IsValid() || !valB.IsValid() {
		if valA.IsValid() != valB.IsValid() {
			cl.Add(odiff.UPDATE, path, a.Interface(), b.Interface())
		}
		return nil
	}

	t1 := valA.Interface().(time.Time)
	t2 := valB.Interface().(time.Time)

	if !t1.Equal(t2) {
		cl.Add(odiff.UPDATE, path, t1, t2)
	}
	return nil
}

// InsertParentDiffer time is a leaf, nothing to register
func (c TimeComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
}

// Window is the part of a segment a sync conflict summary reports on.
// Raw values are kept only for timestamps that do not parse.
type Window struct {
	Type     segment.Type `diff:"type"`
	Dep      time.Time    `diff:"dep"`
	Arr      time.Time    `diff:"arr"`
	RawDep   string       `diff:"rawDep"`
	RawArr   string       `diff:"rawArr"`
	Position int          `diff:"position"`
}

func WindowOf(s segment.Segment) Window {
	w := Window{Type: s.Type, Position: s.OrderIdx}
	if t, ok := timeutil.ParseISO(s.DepTime); ok {
		w.Dep = t
	} else {
		w.RawDep = s.DepTime
	}
	if t, ok := timeutil.ParseISO(s.ArrTime); ok {
		w.Arr = t
	} else {
		w.RawArr = s.ArrTime
	}
	return w
}

// WindowChanges flags which parts of a window differ.
type WindowChanges struct {
	Time     bool
	Position bool
	Type     bool
}

func (c WindowChanges) Any() bool {
	return c.Time || c.Position || c.Type
}

// CompareSegments diffs the windows of two versions of the same segment.
func CompareSegments(differ *odiff.Differ, from, to segment.Segment) (WindowChanges, error) {
	changelog, err := differ.Diff(WindowOf(from), WindowOf(to))
	if err != nil {
		return WindowChanges{}, err
	}

	var changes WindowChanges
	for _, change := range changelog {
		if len(change.Path) == 0 {
			continue
		}
		switch change.Path[0] {
		case "dep", "arr", "rawDep", "rawArr":
			changes.Time = true
		case "position":
			changes.Position = true
		case "type":
			changes.Type = true
		}
	}
	return changes, nil
}
