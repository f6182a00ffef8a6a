package ubictl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSysfs(t *testing.T, devs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, mtdNum := range devs {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		if mtdNum != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "mtd_num"), []byte(mtdNum+"\n"), 0o644))
		}
	}
	return root
}

func TestAttached(t *testing.T) {
	root := fakeSysfs(t, map[string]string{
		"ubi0":     "2",
		"ubi0_0":   "7",
		"ubi3":     "5",
		"ubi_ctrl": "",
	})
	c := &Ctl{SysfsRoot: root}

	n, ok, err := c.Attached(5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok, err = c.Attached(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	_, ok, err = c.Attached(7)
	require.NoError(t, err)
	assert.False(t, ok, "volume entries are not devices")
}

func TestAttachedWithoutUBI(t *testing.T) {
	c := &Ctl{SysfsRoot: filepath.Join(t.TempDir(), "missing")}
	_, ok, err := c.Attached(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttachedBadAttribute(t *testing.T) {
	c := &Ctl{SysfsRoot: fakeSysfs(t, map[string]string{"ubi1": "garbage"})}
	_, _, err := c.Attached(1)
	assert.Error(t, err)
}

func TestUBIDevNum(t *testing.T) {
	for name, want := range map[string]int{"ubi0": 0, "ubi12": 12} {
		n, ok := ubiDevNum(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, n, name)
	}
	for _, name := range []string{"ubi", "ubi0_1", "ubi_ctrl", "mtd0", "ubi-1"} {
		_, ok := ubiDevNum(name)
		assert.False(t, ok, name)
	}
}
