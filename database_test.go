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

func TestAddDimensionDuplicateErrors(t *testing.T) {
	db := New("test", nil)
	_, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = db.AddDimension("regions")
	require.Error(t, err)
}

func TestDimensionsSortedByName(t *testing.T) {
	db := New("test", nil)
	_, _ = db.AddDimension("years")
	_, _ = db.AddDimension("datatypes")
	_, _ = db.AddDimension("regions")

	names := []string{}
	for _, d := range db.Dimensions() {
		names = append(names, d.Name())
	}
	require.Equal(t, []string{"datatypes", "regions", "years"}, names)
}

func TestRemoveDimensionReferentialIntegrity(t *testing.T) {
	db := New("test", nil)
	_, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = db.AddCube("geo", []string{"regions"})
	require.NoError(t, err)

	err = db.RemoveDimension("regions")
	require.Error(t, err)
}

func TestRemoveDimensionUnknown(t *testing.T) {
	db := New("test", nil)
	require.Error(t, db.RemoveDimension("nope"))
}

func TestAddCubeRequiresDimensions(t *testing.T) {
	db := New("test", nil)
	_, err := db.AddCube("sales", nil)
	require.Error(t, err)
}

func TestAddCubeUnknownDimensionErrors(t *testing.T) {
	db := New("test", nil)
	_, err := db.AddCube("sales", []string{"nope"})
	require.Error(t, err)
}

func TestAddCubeDuplicateErrors(t *testing.T) {
	db := New("test", nil)
	_, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = db.AddCube("geo", []string{"regions"})
	require.NoError(t, err)
	_, err = db.AddCube("geo", []string{"regions"})
	require.Error(t, err)
}

func TestCubesSortedByName(t *testing.T) {
	db := New("test", nil)
	_, _ = db.AddDimension("regions")
	_, _ = db.AddCube("sales", []string{"regions"})
	_, _ = db.AddCube("costs", []string{"regions"})

	names := []string{}
	for _, c := range db.Cubes() {
		names = append(names, c.Name())
	}
	require.Equal(t, []string{"costs", "sales"}, names)
}

func TestRemoveCubeUnknown(t *testing.T) {
	db := New("test", nil)
	require.Error(t, db.RemoveCube("nope"))
}

func TestRemoveCubeDropsIt(t *testing.T) {
	db := New("test", nil)
	_, _ = db.AddDimension("regions")
	_, err := db.AddCube("sales", []string{"regions"})
	require.NoError(t, err)
	require.NoError(t, db.RemoveCube("sales"))
	_, ok := db.Cube("sales")
	require.False(t, ok)
}

func TestRemoveMemberCascadeDeletesFacts(t *testing.T) {
	db := New("test", &Config{CascadeDeleteEnabled: true})
	d, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = d.AddMember("Total", "", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("North", "Total", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("sales", []string{"regions"})
	require.NoError(t, err)

	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "North"))
	v, err := cube.Get(ctx, "Total")
	require.NoError(t, err)
	require.Equal(t, 10.0, v.Float())

	require.NoError(t, db.RemoveMember(ctx, "regions", "North"))

	v, err = cube.Get(ctx, "Total")
	require.NoError(t, err)
	require.Equal(t, 0.0, v.Float())
}

func TestRemoveMemberUnknownDimension(t *testing.T) {
	db := New("test", nil)
	err := db.RemoveMember(NewEmptyContext(), "nope", "X")
	require.Error(t, err)
}

func TestRemoveMemberUnknownMember(t *testing.T) {
	db := New("test", nil)
	_, err := db.AddDimension("regions")
	require.NoError(t, err)
	err = db.RemoveMember(NewEmptyContext(), "regions", "nope")
	require.Error(t, err)
}

func TestErrorSinkInvokedOnCascadeDelete(t *testing.T) {
	db := New("test", &Config{CascadeDeleteEnabled: true})
	var reported error
	db.SetErrorSink(func(ctx *Context, err error) {
		reported = err
	})

	d, err := db.AddDimension("regions")
	require.NoError(t, err)
	_, err = d.AddMember("Total", "", 1.0)
	require.NoError(t, err)
	_, err = d.AddMember("North", "Total", 1.0)
	require.NoError(t, err)

	cube, err := db.AddCube("sales", []string{"regions"})
	require.NoError(t, err)

	ctx := NewEmptyContext()
	require.NoError(t, cube.Set(ctx, 10, "North"))
	require.NoError(t, db.RemoveMember(ctx, "regions", "North"))
	require.Error(t, reported)
}
