// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "fmt"

// Marker tags a Value with its kind. The zero value, MarkerNumber, means
// Value.Num is a meaningful IEEE-754 double; every other marker means
// Value.Num must be ignored.
type Marker uint8

const (
	// MarkerNumber means the value is an ordinary numeric result.
	MarkerNumber Marker = iota
	// MarkerNone is the "no value" sentinel: identity for addition, and
	// distinguishable from a stored/computed zero so ON_ENTRY rules and
	// UIs can tell "nothing here" from "explicitly zero".
	MarkerNone
	// MarkerContinue means a rule declined to handle the address; the
	// engine should proceed as if no rule had matched.
	MarkerContinue
	// MarkerError means a rule callable panicked or returned an error;
	// the cell is displayed as "#ERR" and the error is logged through the
	// evaluation Context's logger (it is not sent to the database's
	// error sink), but evaluation of the surrounding area continues.
	MarkerError
	// MarkerRecursion means evaluation re-entered an address already on
	// the current cursor's evaluation stack; displayed as "#REC".
	MarkerRecursion
)

func (m Marker) String() string {
	switch m {
	case MarkerNumber:
		return "number"
	case MarkerNone:
		return "none"
	case MarkerContinue:
		return "continue"
	case MarkerError:
		return "#ERR"
	case MarkerRecursion:
		return "#REC"
	default:
		return "unknown"
	}
}

// Value is the explicit return variant used throughout the engine in
// place of the source's dynamically-typed sentinels (None/CONTINUE on the
// cursor object). A Value always carries a Marker; Num is only meaningful
// when Marker == MarkerNumber.
type Value struct {
	Num    float64
	Marker Marker
	// Err carries the underlying cause when Marker == MarkerError. It is
	// never nil in that case and always nil otherwise.
	Err error
	// Volatile is set once a volatile rule (spec.md §4.5 Volatile flag)
	// participated anywhere in the evaluation that produced this Value.
	// It propagates through Add so a single volatile leaf taints the
	// whole sum; the cube publish path (Cube.evaluate) checks it to
	// withhold the Result Cache write (spec.md §4.6 "A rule marked
	// volatile disables caching of any address whose evaluation invoked
	// the rule").
	Volatile bool
}

// Number constructs a plain numeric Value.
func Number(v float64) Value { return Value{Num: v, Marker: MarkerNumber} }

// None is the "no value" sentinel Value.
func None() Value { return Value{Marker: MarkerNone} }

// Continue is the CONTINUE sentinel Value.
func Continue() Value { return Value{Marker: MarkerContinue} }

// ErrorValue wraps err as a MarkerError Value; err must not be nil.
func ErrorValue(err error) Value {
	if err == nil {
		panic("core: ErrorValue called with nil error")
	}
	return Value{Marker: MarkerError, Err: err}
}

// Recursion is the #REC sentinel Value produced by the cursor's recursion
// guard (spec P8).
func Recursion() Value { return Value{Marker: MarkerRecursion} }

// IsNumeric reports whether v carries a meaningful numeric value.
func (v Value) IsNumeric() bool { return v.Marker == MarkerNumber }

// Float returns v.Num if v is numeric, and 0 for MarkerNone (the "no
// value" marker is addition's identity element) or any other marker. Use
// IsNumeric/Marker directly when the distinction matters, e.g. for
// ON_ENTRY rules or UI display.
func (v Value) Float() float64 {
	if v.Marker == MarkerNumber {
		return v.Num
	}
	return 0
}

func (v Value) String() string {
	switch v.Marker {
	case MarkerNumber:
		return fmt.Sprintf("%g", v.Num)
	case MarkerError:
		return fmt.Sprintf("#ERR(%v)", v.Err)
	default:
		return v.Marker.String()
	}
}

// Add combines two values under the summation rule used by the
// aggregation engine: MarkerNone is addition's identity; the first
// error or recursion marker encountered wins (they propagate outward
// rather than being silently dropped); a MarkerContinue operand counts
// as 0.
// Volatile is sticky: the result is volatile if either operand is, no
// matter which marker wins, so a single volatile leaf taints the whole
// sum on the way up the aggregation walk.
func Add(a, b Value) Value {
	volatile := a.Volatile || b.Volatile
	if a.Marker == MarkerError || a.Marker == MarkerRecursion {
		a.Volatile = volatile
		return a
	}
	if b.Marker == MarkerError || b.Marker == MarkerRecursion {
		b.Volatile = volatile
		return b
	}
	if a.Marker == MarkerNone {
		b.Volatile = volatile
		return b
	}
	if b.Marker == MarkerNone {
		a.Volatile = volatile
		return a
	}
	r := Number(a.Float() + b.Float())
	r.Volatile = volatile
	return r
}
