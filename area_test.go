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

func buildTwoDimCube(t *testing.T) (*Database, *Cube) {
	t.Helper()
	db := New("test", nil)
	regions, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = regions.AddMember("Total", "", 1.0)
	require.NoError(t, err)
	_, err = regions.AddMember("North", "Total", 1.0)
	require.NoError(t, err)
	_, err = regions.AddMember("South", "Total", 1.0)
	require.NoError(t, err)

	years, err := db.AddDimension("years")
	require.NoError(t, err)
	_, err = years.AddMember("2021", "", 1.0)
	require.NoError(t, err)
	_, err = years.AddMember("2022", "", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("sales", []string{"regions", "years"})
	require.NoError(t, err)
	return db, cube
}

func TestAreaSetValueExpandAllWritesEveryBaseCell(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	ctx := NewEmptyContext()

	area, err := cube.Area("*", "2021")
	require.NoError(t, err)
	require.NoError(t, area.SetValue(ctx, 7, true))

	v, err := cube.Get(ctx, "North", "2021")
	require.NoError(t, err)
	require.Equal(t, 7.0, v.Float())
	v, err = cube.Get(ctx, "South", "2021")
	require.NoError(t, err)
	require.Equal(t, 7.0, v.Float())
}

func TestAreaSetValueWithoutExpandAllOnlyTouchesExisting(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "North", "2021"))

	area, err := cube.Area("*", "2021")
	require.NoError(t, err)
	require.NoError(t, area.SetValue(ctx, 99, false))

	v, err := cube.Get(ctx, "North", "2021")
	require.NoError(t, err)
	require.Equal(t, 99.0, v.Float())
	v, err = cube.Get(ctx, "South", "2021")
	require.NoError(t, err)
	require.Equal(t, 0.0, v.Float())
}

func TestAreaDeleteRemovesFacts(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "North", "2021"))
	require.NoError(t, cube.Set(ctx, 5, "South", "2021"))

	area, err := cube.Area("*", "2021")
	require.NoError(t, err)
	require.NoError(t, area.Delete(ctx))

	v, err := cube.Get(ctx, "Total", "2021")
	require.NoError(t, err)
	require.Equal(t, 0.0, v.Float())
}

func TestAreaScaleMultipliesExistingFacts(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "North", "2021"))

	area, err := cube.Area("North", "2021")
	require.NoError(t, err)
	require.NoError(t, area.Scale(ctx, 2))

	v, err := cube.Get(ctx, "North", "2021")
	require.NoError(t, err)
	require.Equal(t, 20.0, v.Float())
}

func TestAreaCopyRequiresMatchingCardinality(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	src, err := cube.Area("*", "2021")
	require.NoError(t, err)
	dst, err := cube.Area("North", "2022")
	require.NoError(t, err)

	err = src.Copy(NewEmptyContext(), dst)
	require.Error(t, err)
}

func TestAreaCopyPairsPositionally(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "North", "2021"))
	require.NoError(t, cube.Set(ctx, 5, "South", "2021"))

	src, err := cube.Area("North,South", "2021")
	require.NoError(t, err)
	dst, err := cube.Area("North,South", "2022")
	require.NoError(t, err)

	require.NoError(t, src.Copy(ctx, dst))

	v, err := cube.Get(ctx, "North", "2022")
	require.NoError(t, err)
	require.Equal(t, 10.0, v.Float())
	v, err = cube.Get(ctx, "South", "2022")
	require.NoError(t, err)
	require.Equal(t, 5.0, v.Float())
}

func TestAreaShiftReplacesOneDimension(t *testing.T) {
	_, cube := buildTwoDimCube(t)
	area, err := cube.Area("North", "2021")
	require.NoError(t, err)

	shifted, err := area.Shift("years", "2022")
	require.NoError(t, err)

	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 3, "North", "2022"))
	require.NoError(t, shifted.Scale(ctx, 10))

	v, err := cube.Get(ctx, "North", "2022")
	require.NoError(t, err)
	require.Equal(t, 30.0, v.Float())
}

func TestAreaGuardrailRejectsOversizedArea(t *testing.T) {
	// "*" names Total, North, South, but the area spec is built from
	// leaf-expanded base ids (Total collapses into its already-listed
	// descendants North/South), so the area's true size is 2 base
	// cells; a guardrail of 1 is what that expanded size must exceed.
	db := New("test", &Config{AreaGuardrail: 1})
	regions, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = regions.AddMember("Total", "", 1.0)
	require.NoError(t, err)
	_, err = regions.AddMember("North", "Total", 1.0)
	require.NoError(t, err)
	_, err = regions.AddMember("South", "Total", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("geo", []string{"regions"})
	require.NoError(t, err)

	area, err := cube.Area("*")
	require.NoError(t, err)
	err = area.SetValue(NewEmptyContext(), 1, true)
	require.Error(t, err)
}
