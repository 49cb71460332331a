// Command ssfs manages Simple Sequential File System images: creating and
// formatting them, and reading and writing the files inside.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ssfs-io/ssfs"
	"github.com/ssfs-io/ssfs/disks"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "ssfs",
		Usage: "Manage SSFS disk image files",
		Commands: []*cli.Command{
			{
				Name:      "image",
				Usage:     "Create a blank image file",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "profile",
						Usage: "named image profile (see `ssfs profiles`)",
					},
					&cli.UintFlag{
						Name:  "blocks",
						Usage: "image size in 1024-byte blocks",
					},
				},
				Action: createImage,
			},
			{
				Name:   "profiles",
				Usage:  "List the named image profiles",
				Action: listProfiles,
			},
			{
				Name:      "format",
				Usage:     "Write a fresh file system onto an image",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "inodes",
						Value: ssfs.InodesPerBlock,
						Usage: "requested inode count (rounded up to whole inode blocks)",
					},
				},
				Action: formatImage,
			},
			{
				Name:      "info",
				Usage:     "Show usage statistics for an image",
				ArgsUsage: "IMAGE",
				Action:    showInfo,
			},
			{
				Name:      "create",
				Usage:     "Create an empty file, printing its inode number",
				ArgsUsage: "IMAGE",
				Action:    createFile,
			},
			{
				Name:      "rm",
				Usage:     "Delete a file and release its blocks",
				ArgsUsage: "IMAGE INODE",
				Action:    deleteFile,
			},
			{
				Name:      "stat",
				Usage:     "Print the size of a file",
				ArgsUsage: "IMAGE INODE",
				Action:    statFile,
			},
			{
				Name:      "read",
				Usage:     "Copy bytes out of a file to stdout or a file",
				ArgsUsage: "IMAGE INODE",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "offset", Usage: "byte offset to read from"},
					&cli.IntFlag{
						Name:  "length",
						Value: -1,
						Usage: "bytes to read (default: to end of file)",
					},
					&cli.StringFlag{Name: "output", Usage: "write to this file instead of stdout"},
				},
				Action: readFile,
			},
			{
				Name:      "write",
				Usage:     "Copy bytes from a file or argument into a file",
				ArgsUsage: "IMAGE INODE [DATA]",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "offset", Usage: "byte offset to write at"},
					&cli.StringFlag{Name: "input", Usage: "read the payload from this file"},
				},
				Action: writeFile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func imageArg(ctx *cli.Context) (string, error) {
	if ctx.Args().Len() < 1 {
		return "", fmt.Errorf("missing IMAGE argument")
	}
	return ctx.Args().Get(0), nil
}

func inodeArg(ctx *cli.Context) (int, error) {
	if ctx.Args().Len() < 2 {
		return 0, fmt.Errorf("missing INODE argument")
	}
	var inodeNum int
	if _, err := fmt.Sscanf(ctx.Args().Get(1), "%d", &inodeNum); err != nil {
		return 0, fmt.Errorf("invalid inode number %q", ctx.Args().Get(1))
	}
	return inodeNum, nil
}

// withMount mounts the image, runs fn, and always unmounts. An unmount
// failure is only reported when fn itself succeeded.
func withMount(ctx *cli.Context, fn func(fs *ssfs.FileSystem) error) error {
	path, err := imageArg(ctx)
	if err != nil {
		return err
	}

	fs, err := ssfs.Mount(path)
	if err != nil {
		return err
	}

	fnErr := fn(fs)
	unmountErr := fs.Unmount()
	if fnErr != nil {
		return fnErr
	}
	return unmountErr
}

func createImage(ctx *cli.Context) error {
	path, err := imageArg(ctx)
	if err != nil {
		return err
	}

	totalBlocks := uint32(ctx.Uint("blocks"))
	if slug := ctx.String("profile"); slug != "" {
		profile, err := disks.GetProfile(slug)
		if err != nil {
			return err
		}
		totalBlocks = profile.TotalBlocks
	}
	if totalBlocks == 0 {
		return fmt.Errorf("one of --profile or --blocks is required")
	}

	return disks.CreateBlankImage(path, totalBlocks)
}

func listProfiles(ctx *cli.Context) error {
	profiles, err := disks.ListProfiles()
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		fmt.Printf(
			"%-10s %8d blocks  %6d inodes  %s\n",
			profile.Slug,
			profile.TotalBlocks,
			profile.Inodes,
			profile.Name,
		)
	}
	return nil
}

func formatImage(ctx *cli.Context) error {
	path, err := imageArg(ctx)
	if err != nil {
		return err
	}
	return ssfs.Format(path, ctx.Int("inodes"))
}

func showInfo(ctx *cli.Context) error {
	return withMount(ctx, func(fs *ssfs.FileSystem) error {
		stat, err := fs.FSStat()
		if err != nil {
			return err
		}
		fmt.Printf("block size:   %d\n", stat.BlockSize)
		fmt.Printf("total blocks: %d\n", stat.TotalBlocks)
		fmt.Printf("free blocks:  %d\n", stat.FreeBlocks)
		fmt.Printf("inodes:       %d/%d in use\n", stat.UsedInodes, stat.TotalInodes)
		return nil
	})
}

func createFile(ctx *cli.Context) error {
	return withMount(ctx, func(fs *ssfs.FileSystem) error {
		inodeNum, err := fs.Create()
		if err != nil {
			return err
		}
		fmt.Println(inodeNum)
		return nil
	})
}

func deleteFile(ctx *cli.Context) error {
	inodeNum, err := inodeArg(ctx)
	if err != nil {
		return err
	}
	return withMount(ctx, func(fs *ssfs.FileSystem) error {
		return fs.Delete(inodeNum)
	})
}

func statFile(ctx *cli.Context) error {
	inodeNum, err := inodeArg(ctx)
	if err != nil {
		return err
	}
	return withMount(ctx, func(fs *ssfs.FileSystem) error {
		size, err := fs.Stat(inodeNum)
		if err != nil {
			return err
		}
		fmt.Println(size)
		return nil
	})
}

func readFile(ctx *cli.Context) error {
	inodeNum, err := inodeArg(ctx)
	if err != nil {
		return err
	}

	return withMount(ctx, func(fs *ssfs.FileSystem) error {
		size, err := fs.Stat(inodeNum)
		if err != nil {
			return err
		}

		offset := ctx.Int64("offset")
		length := ctx.Int("length")
		if length < 0 {
			if offset >= int64(size) {
				length = 0
			} else {
				length = int(int64(size) - offset)
			}
		}

		buf := make([]byte, length)
		n, err := fs.Read(inodeNum, buf, offset)
		if err != nil {
			return err
		}

		out := os.Stdout
		if path := ctx.String("output"); path != "" {
			out, err = os.Create(path)
			if err != nil {
				return err
			}
			defer out.Close()
		}
		_, err = out.Write(buf[:n])
		return err
	})
}

func writeFile(ctx *cli.Context) error {
	inodeNum, err := inodeArg(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if path := ctx.String("input"); path != "" {
		payload, err = os.ReadFile(path)
		if err != nil {
			return err
		}
	} else if ctx.Args().Len() >= 3 {
		payload = []byte(ctx.Args().Get(2))
	} else {
		return fmt.Errorf("provide DATA or --input")
	}

	return withMount(ctx, func(fs *ssfs.FileSystem) error {
		n, err := fs.Write(inodeNum, payload, ctx.Int64("offset"))
		if err != nil {
			return err
		}
		if n < len(payload) {
			return fmt.Errorf("short write: %d of %d bytes", n, len(payload))
		}
		fmt.Println(n)
		return nil
	})
}
