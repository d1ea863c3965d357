package format

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/audio"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/font"
	"github.com/Mailaender/OpenRA/internal/sprite"
)

// Asset is an opened file. Exactly one of Package, Sound, Sprite and Font
// is set, according to Kind.
type Asset struct {
	Kind Kind
	Name string

	Package archive.Package
	Sound   *audio.Sound
	Sprite  *sprite.Sprite
	Font    *font.Font
}

// Close releases the source held by packages and sounds. Sprites and fonts
// are decoded eagerly and hold nothing.
func (a *Asset) Close() error {
	switch {
	case a.Package != nil:
		return a.Package.Close()
	case a.Sound != nil:
		return a.Sound.Close()
	}
	return nil
}

type loader struct {
	kind       Kind
	extensions []string
	// structural loaders have no magic number and are ordered by the file
	// extension before registry order
	structural bool
	sniff      func(*binio.Cursor) bool
	open       func(d *Dispatcher, src *binio.Source, name string) (*Asset, error)
}

// Options configures a Dispatcher.
type Options struct {
	// MixNames are extra filenames tried when resolving mix entry ids.
	MixNames []string
	Logger   *slog.Logger
}

// Dispatcher tries a fixed, ordered list of formats against a source.
type Dispatcher struct {
	loaders  []loader
	mixNames []string
	logger   *slog.Logger
}

// NewDispatcher builds the registry. Magic-number formats come first (zip,
// ogg, wav, gif, pcx), then the structural ones (mix, aud, font).
func NewDispatcher(opts *Options) *Dispatcher {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		mixNames: slices.Clone(opts.MixNames),
		logger:   logger,
		loaders: []loader{
			{kind: Zip, extensions: []string{".zip", ".oramap", ".oramod"}, sniff: archive.SniffZip, open: openZip},
			{kind: Ogg, extensions: []string{".ogg", ".opus"}, sniff: audio.SniffOgg, open: openSound(Ogg, audio.OpenOgg)},
			{kind: Wav, extensions: []string{".wav"}, sniff: audio.SniffWav, open: openSound(Wav, audio.OpenWav)},
			{kind: Gif, extensions: []string{".gif"}, sniff: sprite.SniffGif, open: openSprite(Gif, sprite.DecodeGif)},
			{kind: Pcx, extensions: []string{".pcx"}, sniff: sprite.SniffPcx, open: openSprite(Pcx, sprite.DecodePcx)},
			{kind: Mix, extensions: []string{".mix"}, structural: true, sniff: archive.SniffMix, open: openMix},
			{kind: Aud, extensions: []string{".aud"}, structural: true, sniff: audio.SniffAud, open: openSound(Aud, audio.OpenAud)},
			{kind: Font, extensions: []string{".fnt"}, structural: true, sniff: font.Sniff, open: openFont},
		},
	}
}

func openZip(_ *Dispatcher, src *binio.Source, name string) (*Asset, error) {
	z, err := archive.TryOpenZip(src, name)
	if err != nil {
		return nil, err
	}
	return &Asset{Kind: Zip, Name: name, Package: z}, nil
}

func openMix(d *Dispatcher, src *binio.Source, name string) (*Asset, error) {
	m, err := archive.TryOpenMix(src, name, d.mixNames)
	if err != nil {
		return nil, err
	}
	return &Asset{Kind: Mix, Name: name, Package: m}, nil
}

func openSound(kind Kind, open func(*binio.Source) (*audio.Sound, error)) func(*Dispatcher, *binio.Source, string) (*Asset, error) {
	return func(_ *Dispatcher, src *binio.Source, name string) (*Asset, error) {
		s, err := open(src)
		if err != nil {
			return nil, err
		}
		return &Asset{Kind: kind, Name: name, Sound: s}, nil
	}
}

func openSprite(kind Kind, decode func(*binio.Source) (*sprite.Sprite, error)) func(*Dispatcher, *binio.Source, string) (*Asset, error) {
	return func(_ *Dispatcher, src *binio.Source, name string) (*Asset, error) {
		s, err := decode(src)
		if err != nil {
			return nil, err
		}
		src.Close()
		return &Asset{Kind: kind, Name: name, Sprite: s}, nil
	}
}

func openFont(_ *Dispatcher, src *binio.Source, name string) (*Asset, error) {
	f, err := font.Decode(src)
	if err != nil {
		return nil, err
	}
	src.Close()
	return &Asset{Kind: Font, Name: name, Font: f}, nil
}

// order returns the loaders in the order they are tried for name: magic
// formats in registry order, then structural formats whose extension
// matches name, then the remaining structural formats.
func (d *Dispatcher) order(name string) []loader {
	ext := strings.ToLower(path.Ext(name))

	out := make([]loader, 0, len(d.loaders))
	var rest []loader
	for _, l := range d.loaders {
		switch {
		case !l.structural:
			out = append(out, l)
		case ext != "" && slices.Contains(l.extensions, ext):
			out = append(out, l)
		default:
			rest = append(rest, l)
		}
	}
	return append(out, rest...)
}

func sniffAt(c *binio.Cursor, l loader) bool {
	pos := c.Position()
	defer c.SeekTo(pos)
	return l.sniff(c)
}

// TrySniff returns the first format that accepts the bytes at c. The
// position of c is restored whatever the outcome.
func (d *Dispatcher) TrySniff(c *binio.Cursor) (Kind, bool) {
	return d.Sniff(c, "")
}

// Sniff is TrySniff with name as a tie-break hint for formats without a
// magic number.
func (d *Dispatcher) Sniff(c *binio.Cursor, name string) (Kind, bool) {
	for _, l := range d.order(name) {
		if sniffAt(c, l) {
			return l.kind, true
		}
	}
	return Unknown, false
}

// Open sniffs src and opens it with the first loader that accepts it. On
// success the asset owns src; on failure the caller keeps it. Bytes no
// loader recognises fail with binio.ErrNotThisFormat.
func (d *Dispatcher) Open(src *binio.Source, name string) (*Asset, error) {
	return d.open(src, name, func(loader) bool { return true })
}

// TryOpenPackage opens src as a container. It makes the dispatcher an
// archive.Opener for nested package resolution.
func (d *Dispatcher) TryOpenPackage(src *binio.Source, name string) (archive.Package, error) {
	a, err := d.open(src, name, func(l loader) bool { return l.kind.IsPackage() })
	if err != nil {
		return nil, err
	}
	return a.Package, nil
}

func (d *Dispatcher) open(src *binio.Source, name string, accept func(loader) bool) (*Asset, error) {
	c := binio.NewCursor(src)
	for _, l := range d.order(name) {
		if !accept(l) || !sniffAt(c, l) {
			continue
		}

		a, err := l.open(d, src, name)
		if errors.Is(err, binio.ErrNotThisFormat) {
			d.logger.Debug("sniff matched but open declined", "name", name, "kind", l.kind)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s as %s: %w", name, l.kind, err)
		}

		d.logger.Debug("opened asset", "name", name, "kind", l.kind)
		return a, nil
	}
	return nil, fmt.Errorf("%s: %w", name, binio.ErrNotThisFormat)
}

// OpenEntry opens the entry name of p. A missing entry is reported with
// ok == false.
func (d *Dispatcher) OpenEntry(p archive.Package, name string) (*Asset, bool, error) {
	src, ok, err := p.Open(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	a, err := d.Open(src, name)
	if err != nil {
		src.Close()
		return nil, true, err
	}
	return a, true, nil
}

// OpenSource opens filename on fsys as an owned source.
func OpenSource(fsys afero.Fs, filename string) (*binio.Source, error) {
	f, err := fsys.Open(filename)
	if err != nil {
		return nil, binio.IOFailure("opening "+filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, binio.IOFailure("stat "+filename, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", filename)
	}
	return binio.NewOwnedSource(f, info.Size(), f), nil
}

// OpenFile opens the file at filename on fsys as an asset.
func (d *Dispatcher) OpenFile(fsys afero.Fs, filename string) (*Asset, error) {
	src, err := OpenSource(fsys, filename)
	if err != nil {
		return nil, err
	}
	a, err := d.Open(src, filename)
	if err != nil {
		src.Close()
		return nil, err
	}
	return a, nil
}

// OpenPackageFile opens the container at filename on fsys.
func (d *Dispatcher) OpenPackageFile(fsys afero.Fs, filename string) (archive.Package, error) {
	src, err := OpenSource(fsys, filename)
	if err != nil {
		return nil, err
	}
	p, err := d.TryOpenPackage(src, filename)
	if err != nil {
		src.Close()
		return nil, err
	}
	return p, nil
}

// Resolve walks a chain of nested containers below p, one name per level.
// Each name may be a container entry or a folder.
func (d *Dispatcher) Resolve(p archive.Package, names ...string) (archive.Package, error) {
	for _, name := range names {
		child, ok, err := p.OpenPackage(name, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s in %s: %w", name, p.Name(), binio.ErrNotThisFormat)
		}
		p = child
	}
	return p, nil
}
