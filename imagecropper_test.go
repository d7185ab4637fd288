package imagecropper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/messages"
	"github.com/menta2k/image-cropper/pkg/types"
)

func TestRegistryCreateReturnsExisting(t *testing.T) {
	reg := NewRegistry(nil, nil)

	a, created := reg.Create(cropper.Config{ID: "hero"})
	require.True(t, created)
	b, created := reg.Create(cropper.Config{ID: "hero", MinWidth: 50})
	assert.False(t, created)
	assert.Same(t, a, b)

	c, created := reg.Create(cropper.Config{})
	require.True(t, created)
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Create(cropper.Config{ID: "b"})
	reg.Create(cropper.Config{ID: "a"})

	assert.True(t, reg.Has("a"))
	assert.False(t, reg.Has("c"))
	assert.Equal(t, []string{"a", "b"}, reg.IDs())

	c, ok := reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", c.ID())

	reg.Delete("b")
	assert.False(t, reg.Has("b"))
	assert.Equal(t, []string{"a"}, reg.IDs())
}

func TestRegistryDestroy(t *testing.T) {
	reg := NewRegistry(nil, nil)
	c, _ := reg.Create(cropper.Config{ID: "x"})
	require.NoError(t, c.Load(600, 400, 300, 200))

	assert.True(t, reg.Destroy("x"))
	assert.False(t, reg.Has("x"))
	assert.False(t, reg.Destroy("x"))

	_, err := c.Data()
	assert.ErrorIs(t, err, cropper.ErrDestroyed)
}

func TestCropDestroyRemovesItself(t *testing.T) {
	reg := NewRegistry(nil, nil)
	c, _ := reg.Create(cropper.Config{ID: "self"})
	c.Destroy()
	assert.False(t, reg.Has("self"))
}

func TestRegistryTranslatesAdvisories(t *testing.T) {
	tr := messages.NewTranslator()
	require.NoError(t, tr.Add("de", map[string]string{
		messages.Texts[messages.ImageTooSmall]: "Das Bild ist zu klein.",
	}))
	require.NoError(t, tr.SetLocale("de"))

	reg := NewRegistry(tr, nil)
	assert.Same(t, tr, reg.Translator())

	target := types.TargetOf(2000, 1000)
	c, _ := reg.Create(cropper.Config{ID: "small", Target: &target})
	require.NoError(t, c.Load(600, 300, 300, 150))

	board, ok := c.Messenger().(*messages.Board)
	require.True(t, ok)
	require.True(t, board.Has(messages.ImageTooSmall))

	var texts []string
	for _, m := range board.Messages() {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "Das Bild ist zu klein.")
}

func TestLoadFitted(t *testing.T) {
	reg := NewRegistry(nil, nil)
	c, _ := reg.Create(cropper.Config{})

	info := analyzer.ImageInfo{Width: 2400, Height: 1600}
	require.NoError(t, LoadFitted(c, info, 600, 600))

	f := c.Frame()
	assert.Equal(t, 600.0, f.DisplayW)
	assert.Equal(t, 400.0, f.DisplayH)

	out, err := c.Data()
	require.NoError(t, err)
	assert.Equal(t, types.Output{Width: 2400, Height: 1600, Scale: 1}, out)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
