package parameters

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	params := NewFromConfigString("acsf, elements=1;6;8,radial_cutoff=4.5,trainable,radial_mu=,")
	require.Equal(t, Params{"acsf": "", "elements": "1;6;8", "radial_cutoff": "4.5", "trainable": "", "radial_mu": ""}, params)

	cutoff, err := PopParamOr(params, "radial_cutoff", float32(5))
	require.NoError(t, err)
	require.Equal(t, float32(4.5), cutoff)
	trainable, err := PopParamOr(params, "trainable", false)
	require.NoError(t, err)
	require.True(t, trainable)
	depth, err := GetParamOr(params, "depth", 3)
	require.NoError(t, err)
	require.Equal(t, 3, depth)

	elements, err := PopIntListOr(params, "elements", nil)
	require.NoError(t, err)
	require.Equal(t, []int{1, 6, 8}, elements)
	mus, err := PopFloatListOr(params, "radial_mu", []float32{1, 2})
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, mus)

	require.Error(t, CheckAllUsed(params))
	_, _ = PopParamOr(params, "acsf", "")
	require.NoError(t, CheckAllUsed(params))

	_, err = PopFloatListOr(Params{"x": "1;a"}, "x", nil)
	require.Error(t, err)
	_, err = GetParamOr(Params{"x": "maybe"}, "x", true)
	require.Error(t, err)
}
