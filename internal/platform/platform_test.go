package platform

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/railyard/railyard/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutEnsuresNodeThenYarn(t *testing.T) {
	var order []string
	ensure := func(ctx context.Context, tool, version string) (string, error) {
		order = append(order, tool)
		return "/images/" + tool + "/" + version, nil
	}
	bundledNpm := func(nodeVersion string) (string, error) {
		return "10.2.4", nil
	}

	spec := Spec{Node: "20.11.0", Yarn: "1.22.19"}
	img, err := Checkout(context.Background(), spec, ensure, bundledNpm)
	require.NoError(t, err)

	assert.Equal(t, []string{"node", "yarn"}, order)
	assert.Equal(t, "10.2.4", img.NpmVersion)
	assert.Equal(t, "/images/node/20.11.0/bin", img.NodeBinDir)
	assert.Equal(t, "/images/yarn/1.22.19/bin", img.YarnBinDir)
}

func TestCheckoutUsesPinnedNpmWhenSet(t *testing.T) {
	ensure := func(ctx context.Context, tool, version string) (string, error) {
		return "/images/" + tool + "/" + version, nil
	}
	bundledNpmCalled := false
	bundledNpm := func(nodeVersion string) (string, error) {
		bundledNpmCalled = true
		return "10.2.4", nil
	}

	spec := Spec{Node: "20.11.0", Npm: "9.9.9"}
	img, err := Checkout(context.Background(), spec, ensure, bundledNpm)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", img.NpmVersion)
	assert.False(t, bundledNpmCalled)
}

func TestImagePathPrefixesNodeThenYarn(t *testing.T) {
	l := layout.NewWithRoot("/home/u/.railyard")
	img := Image{
		NodeBinDir: "/images/node/20.11.0/bin",
		YarnBinDir: "/images/yarn/1.22.19/bin",
	}

	current := l.ShimDir() + string(os.PathListSeparator) + "/usr/bin"
	result := img.Path(current, l)

	parts := strings.Split(result, string(os.PathListSeparator))
	require.Len(t, parts, 3)
	assert.Equal(t, "/images/node/20.11.0/bin", parts[0])
	assert.Equal(t, "/images/yarn/1.22.19/bin", parts[1])
	assert.Equal(t, "/usr/bin", parts[2])
	assert.NotContains(t, result, l.ShimDir())
}

func TestImagePathOmitsYarnWhenUnset(t *testing.T) {
	l := layout.NewWithRoot("/home/u/.railyard")
	img := Image{NodeBinDir: "/images/node/20.11.0/bin"}

	result := img.Path("/usr/bin", l)
	assert.Equal(t, "/images/node/20.11.0/bin"+string(os.PathListSeparator)+"/usr/bin", result)
}

func TestSystemPathOnlyStripsShimDir(t *testing.T) {
	l := layout.NewWithRoot("/home/u/.railyard")
	current := l.ShimDir() + string(os.PathListSeparator) + "/usr/bin" + string(os.PathListSeparator) + "/bin"
	result := SystemPath(current, l)
	assert.Equal(t, "/usr/bin"+string(os.PathListSeparator)+"/bin", result)
}

func TestSpecJSONRoundTripNestedShape(t *testing.T) {
	spec := Spec{Node: "20.11.0", Npm: "10.2.4", Yarn: "1.22.19"}
	encoded, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"runtime":"20.11.0"`)

	var decoded Spec
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, spec, decoded)
}

func TestSpecJSONDecodesFlatPinnedShape(t *testing.T) {
	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(`{"node": "20.11.0", "yarn": "1.22.19"}`), &spec))
	assert.Equal(t, "20.11.0", spec.Node)
	assert.Equal(t, "1.22.19", spec.Yarn)
}
