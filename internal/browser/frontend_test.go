package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSelectors(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`#pyDiv textarea, textarea[name="py"]`, []string{"#pyDiv textarea", `textarea[name="py"]`}},
		{"#only", []string{"#only"}},
		{" , ,", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSelectors(tt.in), tt.in)
	}
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "Wang - Physics", entityLabel("Wang", "Physics"))
	assert.Equal(t, "unknown - Physics", entityLabel("", "Physics"))
	assert.Equal(t, "Wang - unknown course", entityLabel("Wang", ""))
}

func TestIsInternalURL(t *testing.T) {
	assert.True(t, isInternalURL("about:blank"))
	assert.True(t, isInternalURL("chrome://newtab/"))
	assert.False(t, isInternalURL("https://jw.example.edu/xspjgl/xspj_cxXspjIndex.html"))
}

func TestControlURLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "browser.url")

	_, err := ReadControlURL(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, WriteControlURL(path, "ws://127.0.0.1:9222/devtools/browser/abc"))
	got, err := ReadControlURL(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", got)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	_, err = ReadControlURL(path)
	assert.Error(t, err)

	assert.NoError(t, WriteControlURL("", "ignored"))
	_, err = ReadControlURL("")
	assert.True(t, os.IsNotExist(err))
}
