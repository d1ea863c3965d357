package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/Mailaender/OpenRA/internal/archive"
	"github.com/Mailaender/OpenRA/internal/utils"
)

var (
	lsRecursive bool
	lsLong      bool
)

var lsCmd = &cobra.Command{
	Use:   "ls ARCHIVE [NESTED...]",
	Short: "List the entries of a container",
	Long: `Ls lists the entries of a mix, zip, oramap or oramod file. Further
arguments descend into nested containers or folders, one level each.

Mix entries whose filename cannot be resolved are listed by their id as
eight hex digits; pass candidate names with --mix-names or mix_names_file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDispatcher()
		if err != nil {
			return err
		}

		p, closePackage, err := openPackage(d, args[0], args[1:])
		if err != nil {
			return err
		}
		defer closePackage()

		if !lsRecursive {
			for _, name := range p.Contents() {
				printEntry(p, name)
			}
			return nil
		}

		return fs.WalkDir(archive.FS(p), ".", func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if !lsLong {
				fmt.Println(path)
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			fmt.Printf("%10s  %s\n", utils.Bytes(info.Size()), path)
			return nil
		})
	},
}

func printEntry(p archive.Package, name string) {
	if !lsLong {
		fmt.Println(name)
		return
	}

	var size int64
	if src, ok, err := p.Open(name); err == nil && ok {
		size = src.Len()
		src.Close()
	}
	fmt.Printf("%10s  %s\n", utils.Bytes(size), name)
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "walk folders below the container")
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show entry sizes")
}
