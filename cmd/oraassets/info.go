package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mailaender/OpenRA/internal/audio"
	"github.com/Mailaender/OpenRA/internal/binio"
	"github.com/Mailaender/OpenRA/internal/format"
)

type assetInfo struct {
	Name    string       `yaml:"name"`
	Kind    string       `yaml:"kind"`
	Size    int64        `yaml:"size"`
	Entries int          `yaml:"entries,omitempty"`
	Sound   *audio.Sound `yaml:"sound,omitempty"`
	Sprite  *spriteInfo  `yaml:"sprite,omitempty"`
	Font    *fontInfo    `yaml:"font,omitempty"`
}

type spriteInfo struct {
	Format string      `yaml:"format"`
	Width  int         `yaml:"width"`
	Height int         `yaml:"height"`
	Frames []frameInfo `yaml:"frames"`
}

type frameInfo struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	OffsetX     int `yaml:"offset_x"`
	OffsetY     int `yaml:"offset_y"`
	Colors      int `yaml:"colors"`
	Transparent int `yaml:"transparent"`
	Delay       int `yaml:"delay,omitempty"`
}

type fontInfo struct {
	Version int `yaml:"version"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Glyphs  int `yaml:"glyphs"`
}

var infoCmd = &cobra.Command{
	Use:   "info FILE [ENTRY]",
	Short: "Identify a file or container entry and print its metadata",
	Long: `Info sniffs a file, or an entry of a container when ENTRY is given, and
prints what it is as YAML: container entry counts, sound rate, depth,
channels and duration, image and frame geometry, or font metrics.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}

		var src *binio.Source
		name := args[0]
		if len(args) == 1 {
			src, err = format.OpenSource(osFs, name)
			if err != nil {
				return err
			}
		} else {
			p, closePackage, err := openPackage(d, args[0], nil)
			if err != nil {
				return err
			}
			defer closePackage()

			name = args[1]
			var ok bool
			src, ok, err = p.Open(name)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s not found in %s", name, args[0])
			}
		}

		info, err := describe(d, src, name)
		if err != nil {
			src.Close()
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(info)
	},
}

// describe opens src and summarises it. The asset is closed afterwards.
func describe(d *format.Dispatcher, src *binio.Source, name string) (*assetInfo, error) {
	size := src.Len()
	asset, err := d.Open(src, name)
	if err != nil {
		return nil, err
	}
	defer asset.Close()

	info := &assetInfo{Name: name, Kind: asset.Kind.String(), Size: size}
	switch {
	case asset.Package != nil:
		info.Entries = len(asset.Package.Contents())
	case asset.Sound != nil:
		info.Sound = asset.Sound
	case asset.Sprite != nil:
		s := asset.Sprite
		info.Sprite = &spriteInfo{Format: s.Format, Width: s.Width, Height: s.Height}
		for _, f := range s.Frames {
			info.Sprite.Frames = append(info.Sprite.Frames, frameInfo{
				Width:       f.Width,
				Height:      f.Height,
				OffsetX:     f.OffsetX,
				OffsetY:     f.OffsetY,
				Colors:      len(f.Palette),
				Transparent: f.Transparent,
				Delay:       f.Delay,
			})
		}
	case asset.Font != nil:
		f := asset.Font
		info.Font = &fontInfo{Version: f.Version, Width: f.Width, Height: f.Height, Glyphs: len(f.Glyphs)}
	}

	return info, nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
