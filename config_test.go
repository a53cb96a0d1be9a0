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

package molap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsNilConfig(t *testing.T) {
	cfg := applyDefaults(nil)
	require.Equal(t, defaultCacheCapacity, cfg.CacheCapacity)
	require.Equal(t, int64(defaultAreaGuardrail), cfg.AreaGuardrail)
	require.True(t, cfg.CascadeDeleteEnabled)
	require.Equal(t, defaultEngineVersion, cfg.EngineVersion)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := applyDefaults(&Config{
		CacheCapacity:        5,
		AreaGuardrail:        100,
		CascadeDeleteEnabled: false,
		EngineVersion:        "custom",
	})
	require.Equal(t, 5, cfg.CacheCapacity)
	require.Equal(t, int64(100), cfg.AreaGuardrail)
	require.False(t, cfg.CascadeDeleteEnabled)
	require.Equal(t, "custom", cfg.EngineVersion)
}

func TestApplyDefaultsFillsZeroFields(t *testing.T) {
	cfg := applyDefaults(&Config{CascadeDeleteEnabled: true})
	require.Equal(t, defaultCacheCapacity, cfg.CacheCapacity)
	require.Equal(t, int64(defaultAreaGuardrail), cfg.AreaGuardrail)
	require.Equal(t, defaultEngineVersion, cfg.EngineVersion)
}
