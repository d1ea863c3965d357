package export

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/Mailaender/OpenRA/internal/audio"
	"github.com/Mailaender/OpenRA/internal/format"
)

// atlasColumns is the glyph grid width of exported fonts
const atlasColumns = 16

// decodeError marks a failure to decode the asset itself, as opposed to a
// failure to write the output
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (e *Exporter) writeSound(name string, asset *format.Asset) ([]string, error) {
	var buf bytes.Buffer
	if err := audio.WriteWAV(&buf, asset.Sound); err != nil {
		return nil, &decodeError{err}
	}

	outputPath := e.outputPath(withExtension(name, ".wav"))
	if err := e.writeFile(outputPath, buf.Bytes()); err != nil {
		return nil, err
	}

	slog.Debug("Converted sound to WAV", "name", name, "output", outputPath)
	return []string{outputPath}, nil
}

// writeSprite writes every frame as a paletted PNG. Multi-frame sprites get
// a zero padded frame number suffix.
func (e *Exporter) writeSprite(name string, asset *format.Asset) ([]string, error) {
	frames := asset.Sprite.Frames
	written := make([]string, 0, len(frames))

	for i := range frames {
		var buf bytes.Buffer
		if err := png.Encode(&buf, frames[i].Image()); err != nil {
			return written, &decodeError{fmt.Errorf("encoding frame %d: %w", i, err)}
		}

		ext := ".png"
		if len(frames) > 1 {
			ext = fmt.Sprintf("-%03d.png", i)
		}

		outputPath := e.outputPath(withExtension(name, ext))
		if err := e.writeFile(outputPath, buf.Bytes()); err != nil {
			return written, err
		}
		written = append(written, outputPath)
	}

	slog.Debug("Converted sprite to PNG", "name", name, "frames", len(frames))
	return written, nil
}

func (e *Exporter) writeFont(name string, asset *format.Asset) ([]string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, asset.Font.Atlas(atlasColumns)); err != nil {
		return nil, &decodeError{fmt.Errorf("encoding atlas: %w", err)}
	}

	outputPath := e.outputPath(withExtension(name, ".png"))
	if err := e.writeFile(outputPath, buf.Bytes()); err != nil {
		return nil, err
	}

	slog.Debug("Rendered font atlas", "name", name, "glyphs", len(asset.Font.Glyphs))
	return []string{outputPath}, nil
}
