package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(dtypes.Float32, 8, 4, 16)
	require.True(t, s.Ok())
	require.Equal(t, 3, s.Rank())
	require.Equal(t, []int{8, 4, 16}, s.Dimensions)
	require.Equal(t, 8*4*16, s.Size())
	require.Equal(t, uintptr(8*4*16*4), s.Memory())
	require.Equal(t, 4, s.Dim(1))
	require.Panics(t, func() { s.Dim(3) })
	require.Panics(t, func() { Make(dtypes.Float32, 8, 0) })

	scalar := Make(dtypes.Int64)
	require.True(t, scalar.IsScalar())
	require.Equal(t, 1, scalar.Size())

	require.False(t, Invalid().Ok())
	require.False(t, Shape{}.Ok())
}

func TestCloneAndEqual(t *testing.T) {
	s := Make(dtypes.Float32, 2, 3)
	s2 := s.Clone()
	require.True(t, s.Equal(s2))
	s2.Dimensions[0] = 7
	require.Equal(t, 2, s.Dimensions[0]) // Clone must be deep.
	require.False(t, s.Equal(s2))
	require.False(t, s.Equal(Make(dtypes.Int64, 2, 3)))
	require.False(t, s.Equal(Make(dtypes.Float32, 2, 3, 1)))
}

func TestString(t *testing.T) {
	require.Equal(t, "(Float32)[8 4 16]", Make(dtypes.Float32, 8, 4, 16).String())
	require.Equal(t, "(Int64)", Make(dtypes.Int64).String())
}
