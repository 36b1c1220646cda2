package rendersvc

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/digitalmadrasa/madrasa/assets"
)

// font classes
const (
	classSans  = "sans"
	classSerif = "serif"
	classMono  = "mono"
)

var serifFamilies = []string{"serif", "times", "georgia", "garamond", "playfair", "merriweather", "baskerville", "cinzel", "lora"}

type fontKey struct {
	class  string
	bold   bool
	italic bool
}

func (k fontKey) filename() string {
	name := k.class
	if k.bold {
		name += "-bold"
	}
	if k.italic {
		name += "-italic"
	}
	return name + ".ttf"
}

// Fonts maps editor font families onto the embedded Go & DejaVu Serif fonts, or onto
// `<sans|serif|mono>[-bold][-italic].ttf` files of a font directory when given.
type Fonts struct {
	mu      sync.Mutex
	sources map[fontKey]*text.FontSource
	closed  bool
}

func NewFonts(dir string) (*Fonts, error) {
	f := &Fonts{sources: make(map[fontKey]*text.FontSource)}

	builtin := map[fontKey][]byte{
		{classSans, false, false}: goregular.TTF,
		{classSans, true, false}:  gobold.TTF,
		{classSans, false, true}:  goitalic.TTF,
		{classSans, true, true}:   gobolditalic.TTF,
		{classMono, false, false}: gomono.TTF,
		{classMono, true, false}:  gomonobold.TTF,
	}
	for _, key := range []fontKey{{classSerif, false, false}, {classSerif, true, false}} {
		data, err := fs.ReadFile(assets.FS, path.Join(assets.FontsDir, key.filename()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading embedded font %s", key.filename())
		}
		builtin[key] = data
	}
	for key, data := range builtin {
		src, err := text.NewFontSource(data)
		if err != nil {
			return nil, errors.Wrapf(err, "loading builtin font %s", key.filename())
		}
		f.sources[key] = src
	}

	if dir == "" {
		return f, nil
	}
	for _, class := range []string{classSans, classSerif, classMono} {
		for _, bold := range []bool{false, true} {
			for _, italic := range []bool{false, true} {
				key := fontKey{class, bold, italic}
				fp := filepath.Join(dir, key.filename())
				if _, err := os.Stat(fp); err != nil {
					continue
				}
				src, err := text.NewFontSourceFromFile(fp)
				if err != nil {
					return nil, errors.Wrapf(err, "loading font %s", fp)
				}
				f.sources[key] = src
			}
		}
	}
	return f, nil
}

func classify(family string) string {
	family = strings.ToLower(family)
	switch {
	case strings.Contains(family, "mono"), strings.Contains(family, "courier"), strings.Contains(family, "code"):
		return classMono
	case strings.Contains(family, "sans"):
		return classSans
	}
	for _, serif := range serifFamilies {
		if strings.Contains(family, serif) {
			return classSerif
		}
	}
	return classSans
}

// Face returns the closest face available for the family & style.
func (f *Fonts) Face(family string, bold, italic bool, size float64) text.Face {
	f.mu.Lock()
	defer f.mu.Unlock()

	class := classify(family)
	candidates := []fontKey{
		{class, bold, italic},
		{class, bold, false},
		{class, false, false},
		{classSans, bold, italic},
		{classSans, bold, false},
		{classSans, false, false},
	}
	for _, key := range candidates {
		if src, ok := f.sources[key]; ok {
			return src.Face(size)
		}
	}
	return nil
}

func (f *Fonts) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, src := range f.sources {
		_ = src.Close()
		delete(f.sources, key)
	}
	f.closed = true
	return nil
}

// Released reports whether Close was called.
func (f *Fonts) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
