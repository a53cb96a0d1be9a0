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

// Package core holds the scalar types, context, and error taxonomy shared
// by every other molap package. It depends on nothing else in this module
// so that the aggregation and rules engines, which must reference each
// other, can each depend only on core's interfaces instead of on one
// another directly.
package core

import "gopkg.in/src-d/go-errors.v1"

// Error kinds, one per row of the taxonomy. Structural and resolver errors
// are returned as ordinary Go errors built from these kinds; per-cell
// evaluation errors (RuleError, RuleRecursion) are never surfaced this way
// -- they are carried as a Marker on the evaluated Value instead, see
// Marker below.
var (
	// ErrUnknownMember is raised when the resolver cannot find a name.
	ErrUnknownMember = errors.NewKind("unknown member %q")
	// ErrAmbiguousMember is raised when an unqualified name matches in two
	// or more dimensions of the same cube.
	ErrAmbiguousMember = errors.NewKind("member %q is ambiguous: present in dimensions %v")
	// ErrDuplicateName is raised when a member/alias name collides on add.
	ErrDuplicateName = errors.NewKind("name %q already in use in dimension %q")
	// ErrCycleDetected is raised when an edge would introduce a cycle.
	ErrCycleDetected = errors.NewKind("adding %q as a child of %q would create a cycle")
	// ErrInUse is raised (and logged, not surfaced as a hard failure) when
	// removing a member requires a cascade delete of dependent facts.
	ErrInUse = errors.NewKind("member %q is referenced by stored facts; cascading delete")
	// ErrUnderdefinedAddress is raised when a dimension coordinate is
	// missing and the dimension has no unique root to default to.
	ErrUnderdefinedAddress = errors.NewKind("dimension %q has no coordinate and no unique root")
	// ErrTypeError is raised when a non-numeric value is used where a
	// numeric value is required.
	ErrTypeError = errors.NewKind("expected numeric value, got %T")
	// ErrAreaTooLarge is raised when a full area expansion would exceed
	// the configured guardrail.
	ErrAreaTooLarge = errors.NewKind("area expansion of %d cells exceeds the configured limit of %d")
	// ErrReferentialIntegrity is raised when an operation would leave a
	// cube referencing a dimension that no longer exists (invariant I5).
	ErrReferentialIntegrity = errors.NewKind("dimension %q is referenced by cube %q and cannot be dropped")
	// ErrNotBaseAddress is raised when a write targets an aggregated
	// coordinate without going through an explicit area/splash operation.
	ErrNotBaseAddress = errors.NewKind("address %v is not a base address; writes require all-base coordinates")
	// ErrNoDimensions is raised when a cube is defined with zero
	// dimensions.
	ErrNoDimensions = errors.NewKind("cube %q must have at least one dimension")
	// ErrUnknownDimension is raised when an edit session or cube
	// reference names a dimension the database does not have.
	ErrUnknownDimension = errors.NewKind("unknown dimension %q")
	// ErrUnknownCube is raised when a cube facade method is used on a
	// database that has no cube of that name.
	ErrUnknownCube = errors.NewKind("unknown cube %q")
	// ErrEditSessionClosed is raised when a structural edit is attempted
	// after the session's Commit or Rollback has already run.
	ErrEditSessionClosed = errors.NewKind("edit session for dimension %q is no longer open")
)
