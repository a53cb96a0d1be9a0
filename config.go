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

// Package molap is the root facade: Database and Cube wire together the
// dimension, fact, resolver, aggregate, rules, cache, and persist
// subpackages into the external interfaces described by spec.md §6.
package molap

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/molapdb/molap/core"
)

// Context is the engine's ambient request context (SPEC_FULL §A.4),
// re-exported from core so callers only need to import one package for
// the common case.
type Context = core.Context

// NewContext wraps parent with a logger carrying fields (database, cube,
// request_id, typically).
func NewContext(parent context.Context, fields logrus.Fields) *Context {
	return core.NewContext(parent, fields)
}

// NewEmptyContext returns a Context with no request-specific fields,
// suitable for programmatic/test callers.
func NewEmptyContext() *Context { return core.NewEmptyContext() }

// Config carries engine-wide tunables (SPEC_FULL §A.3), mirroring the
// teacher's sqle.Config/New(cfg) shape: a struct of tunables, applied
// with defaults by New when cfg is nil.
type Config struct {
	// CacheCapacity bounds the Result Cache's LRU (§4.6). Zero is replaced
	// by the default capacity; a negative value disables caching.
	CacheCapacity int
	// AreaGuardrail is the maximum Cartesian-product cell count an area
	// expansion may produce before AreaTooLarge is raised (§7).
	AreaGuardrail int64
	// CascadeDeleteEnabled permits RemoveMember to delete dependent facts
	// (§7 "InUse ... cascade delete"). When false, RemoveMember still
	// removes the member and leaves the facts that reference it in the
	// store; it does not return ErrInUse.
	CascadeDeleteEnabled bool
	// EngineVersion is recorded in a persisted database's metadata (§6).
	EngineVersion string
}

const (
	defaultCacheCapacity = 10000
	defaultAreaGuardrail = 10_000_000
	defaultEngineVersion = "1"
)

// applyDefaults returns a copy of cfg with zero-valued fields replaced by
// engine defaults, or a fresh default Config if cfg is nil.
func applyDefaults(cfg *Config) Config {
	if cfg == nil {
		return Config{
			CacheCapacity:        defaultCacheCapacity,
			AreaGuardrail:        defaultAreaGuardrail,
			CascadeDeleteEnabled: true,
			EngineVersion:        defaultEngineVersion,
		}
	}
	out := *cfg
	if out.CacheCapacity == 0 {
		out.CacheCapacity = defaultCacheCapacity
	}
	if out.AreaGuardrail == 0 {
		out.AreaGuardrail = defaultAreaGuardrail
	}
	if out.EngineVersion == "" {
		out.EngineVersion = defaultEngineVersion
	}
	return out
}
