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

// Package molaptest encodes spec.md §8's named scenarios (S1-S6) as
// end-to-end subtests against the root facade, mirroring the teacher's
// enginetest package shape.
package molaptest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/molapdb/molap"
	"github.com/molapdb/molap/core"
	"github.com/molapdb/molap/rules"
)

func mustAddChain(t *testing.T, db *molap.Database, dimName string, pairs [][2]string) {
	t.Helper()
	d, err := db.AddDimension(dimName)
	require.NoError(t, err)
	for _, p := range pairs {
		name, parent := p[0], p[1]
		_, err := d.AddMember(name, parent, 1.0)
		require.NoError(t, err)
	}
}

func TestS1TeslaFiveCubeAggregation(t *testing.T) {
	db := molap.New("tesla", nil)
	mustAddChain(t, db, "datatypes", [][2]string{{"Actual", ""}, {"Plan", ""}})
	mustAddChain(t, db, "years", [][2]string{{"2021", ""}, {"2022", ""}, {"2023", ""}})
	mustAddChain(t, db, "periods", [][2]string{
		{"Year", ""}, {"Q1", "Year"}, {"Q2", "Year"}, {"Q3", "Year"}, {"Q4", "Year"},
	})
	mustAddChain(t, db, "regions", [][2]string{
		{"Total", ""}, {"North", "Total"}, {"South", "Total"}, {"West", "Total"}, {"East", "Total"},
	})
	mustAddChain(t, db, "products", [][2]string{
		{"Total", ""}, {"ModelS", "Total"}, {"Model3", "Total"}, {"ModelX", "Total"}, {"ModelY", "Total"},
	})

	cube, err := db.AddCube("sales", []string{"datatypes", "years", "periods", "regions", "products"})
	require.NoError(t, err)

	ctx := molap.NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 400, "Plan", "2021", "Q1", "North", "ModelS"))
	require.NoError(t, cube.Set(ctx, 200, "Plan", "2021", "Q1", "North", "ModelX"))

	v, err := cube.Get(ctx, "Plan", "2021", "Q1", "North", "Total")
	require.NoError(t, err)
	require.True(t, v.IsNumeric())
	require.Equal(t, 600.0, v.Float())

	v, err = cube.Get(ctx, "Plan", "2021", "Year", "Total", "Total")
	require.NoError(t, err)
	require.Equal(t, 600.0, v.Float())

	v, err = cube.Get(ctx, "Plan", "2022", "*", "*", "*")
	require.NoError(t, err)
	require.Equal(t, 0.0, v.Float())
}

func buildWeightedDatatypes(t *testing.T, db *molap.Database) {
	t.Helper()
	d, err := db.AddDimension("datatypes")
	require.NoError(t, err)
	_, err = d.AddMember("Delta", "", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("Actual", "Delta", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("Plan", "Delta", -1.0)
	require.NoError(t, err)
	_, err = d.AddMember("DeltaPct", "", 1.0)
	require.NoError(t, err)
}

func TestS2WeightedDeltaAggregation(t *testing.T) {
	db := molap.New("delta", nil)
	buildWeightedDatatypes(t, db)
	_, err := db.AddDimension("time")
	require.NoError(t, err)
	timeDim, _ := db.Dimension("time")
	_, err = timeDim.AddMember("Y1", "", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("plan_vs_actual", []string{"datatypes", "time"})
	require.NoError(t, err)

	ctx := molap.NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 150, "Actual", "Y1"))
	require.NoError(t, cube.Set(ctx, 100, "Plan", "Y1"))

	v, err := cube.Get(ctx, "Delta", "Y1")
	require.NoError(t, err)
	require.Equal(t, 50.0, v.Float())
}

func TestS3RuleOnAggregatedMember(t *testing.T) {
	db := molap.New("delta", nil)
	buildWeightedDatatypes(t, db)
	_, err := db.AddDimension("time")
	require.NoError(t, err)
	timeDim, _ := db.Dimension("time")
	_, err = timeDim.AddMember("Y1", "", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("plan_vs_actual", []string{"datatypes", "time"})
	require.NoError(t, err)

	planID, ok := func() (core.MemberID, bool) {
		return cube.ResolveMember(0, "DeltaPct")
	}()
	require.True(t, ok)
	_ = planID

	idx, ok := cube.FindDimension("datatypes")
	require.True(t, ok)
	deltaPctID, ok := cube.ResolveMember(idx, "DeltaPct")
	require.True(t, ok)

	trigger := make(rules.Trigger, cube.DimensionCount())
	for i := range trigger {
		trigger[i] = core.Coordinate{Kind: core.SelectorAny}
	}
	trigger[idx] = core.SingleCoordinate(deltaPctID)

	cube.RegisterRule(&rules.Rule{
		Trigger: trigger,
		Scope:   rules.AllLevels,
		Body: func(ctx *core.Context, c *rules.Cursor) core.Value {
			plan := c.MustShift("datatypes", "Plan").Value()
			if !plan.IsNumeric() || plan.Float() == 0 {
				return core.None()
			}
			delta := c.MustShift("datatypes", "Delta").Value()
			return core.Number(delta.Float() / plan.Float())
		},
	})

	ctx := molap.NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 150, "Actual", "Y1"))
	require.NoError(t, cube.Set(ctx, 100, "Plan", "Y1"))

	v, err := cube.Get(ctx, "DeltaPct", "Y1")
	require.NoError(t, err)
	require.True(t, v.IsNumeric())
	require.Equal(t, 0.5, v.Float())

	require.NoError(t, cube.Set(ctx, 0, "Plan", "Y1"))
	v, err = cube.Get(ctx, "DeltaPct", "Y1")
	require.NoError(t, err)
	require.Equal(t, core.MarkerNone, v.Marker)
}

func buildDiamondRegions(t *testing.T, db *molap.Database) {
	t.Helper()
	d, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = d.AddMember("Total", "", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("North", "Total", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("Coastal", "Total", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("NewYork", "North", 1.0)
	require.NoError(t, err)

	es := d.BeginEdit()
	nyID, ok := d.Resolve("NewYork")
	require.True(t, ok)
	coastalID, ok := d.Resolve("Coastal")
	require.True(t, ok)
	require.NoError(t, es.AddEdge(coastalID, nyID, 1.0))
	require.NoError(t, es.Commit())
}

func TestS4DiamondHierarchy(t *testing.T) {
	db := molap.New("diamond", nil)
	buildDiamondRegions(t, db)
	cube, err := db.AddCube("geo", []string{"regions"})
	require.NoError(t, err)

	ctx := molap.NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "NewYork"))

	v, err := cube.Get(ctx, "Total")
	require.NoError(t, err)
	require.Equal(t, 20.0, v.Float())
}

func TestS5CacheInvalidationUnderStructuralEdit(t *testing.T) {
	db := molap.New("diamond", nil)
	buildDiamondRegions(t, db)
	cube, err := db.AddCube("geo", []string{"regions"})
	require.NoError(t, err)

	ctx := molap.NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "NewYork"))

	v, err := cube.Get(ctx, "Total")
	require.NoError(t, err)
	require.Equal(t, 20.0, v.Float())

	regions, ok := db.Dimension("regions")
	require.True(t, ok)
	totalID, ok := regions.Resolve("Total")
	require.True(t, ok)
	_, err = regions.AddMember("NY2", "Total", 1.0)
	require.NoError(t, err)
	_ = totalID

	require.NoError(t, cube.Set(ctx, 5, "NY2"))

	v, err = cube.Get(ctx, "Total")
	require.NoError(t, err)
	require.Equal(t, 25.0, v.Float())
}

func TestS6RecursionGuard(t *testing.T) {
	db := molap.New("loop", nil)
	d, err := db.AddDimension("datatypes")
	require.NoError(t, err)
	_, err = d.AddMember("Actual", "", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("Plan", "", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("recursive", []string{"datatypes"})
	require.NoError(t, err)

	idx, ok := cube.FindDimension("datatypes")
	require.True(t, ok)
	planID, ok := cube.ResolveMember(idx, "Plan")
	require.True(t, ok)

	trigger := make(rules.Trigger, cube.DimensionCount())
	for i := range trigger {
		trigger[i] = core.Coordinate{Kind: core.SelectorAny}
	}
	trigger[idx] = core.SingleCoordinate(planID)

	cube.RegisterRule(&rules.Rule{
		Trigger: trigger,
		Scope:   rules.AllLevels,
		Body: func(ctx *core.Context, c *rules.Cursor) core.Value {
			return c.MustShift("datatypes", "Plan").Value()
		},
	})

	ctx := molap.NewEmptyContext()
	v, err := cube.Get(ctx, "Plan")
	require.NoError(t, err)
	require.Equal(t, core.MarkerRecursion, v.Marker)
}
