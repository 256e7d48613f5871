package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/util"
	"github.com/mit-pdos/go-easyfs/vfs"
)

func usage() {
	fmt.Fprintf(os.Stderr, "easyfs - build and inspect easyfs volume images\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s [options] <command> [args]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  mkfs                     - Format the image\n")
	fmt.Fprintf(os.Stderr, "  pack <host_dir>          - Copy every regular file in host_dir into /\n")
	fmt.Fprintf(os.Stderr, "  ls [path]                - List a directory\n")
	fmt.Fprintf(os.Stderr, "  put <host_file> <path>   - Copy a host file into the image\n")
	fmt.Fprintf(os.Stderr, "  cat <path>               - Print a file\n")
	fmt.Fprintf(os.Stderr, "  mkdir <path>             - Create a directory\n")
	fmt.Fprintf(os.Stderr, "  ln <existing> <new>      - Hard-link within one directory\n")
	fmt.Fprintf(os.Stderr, "  rm <path>                - Remove a name\n")
	fmt.Fprintf(os.Stderr, "  stat <path>              - Show inode metadata\n")
	fmt.Fprintf(os.Stderr, "  df                       - Show free inodes and blocks\n")
}

func openImage(path string, n uint64, packed bool) (disk.Disk, error) {
	if packed {
		return disk.NewPackedFileDisk(path, n)
	}
	return disk.NewFileDisk(path, n)
}

func main() {
	var (
		img         = flag.String("img", "fs.img", "Path to the volume image")
		blocks      = flag.Uint64("blocks", 16384, "Volume size in blocks (mkfs)")
		inodeBitmap = flag.Uint64("inode-bitmap", 1, "Inode bitmap blocks (mkfs)")
		debug       = flag.Uint64("debug", 0, "Debug print level")
		packed      = flag.Bool("packed", false, "Access the image in 4KB host blocks")
	)
	flag.Usage = usage
	flag.Parse()
	util.Debug = *debug

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if args[0] == "mkfs" {
		d, err := openImage(*img, *blocks, *packed)
		if err != nil {
			log.Fatalf("mkfs: %v", err)
		}
		fs, err := vfs.Format(d, *blocks, *inodeBitmap)
		if err != nil {
			log.Fatalf("mkfs: %v", err)
		}
		fs.Unmount()
		return
	}

	n, err := disk.ImageBlocks(*img)
	if err != nil {
		log.Fatalf("%v", err)
	}
	d, err := openImage(*img, n, *packed)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fs, err := vfs.Mount(d)
	if err != nil {
		log.Fatalf("mount %s: %v", *img, err)
	}
	t := &tool{fs: fs, root: fs.Root(), out: os.Stdout}
	err = t.run(args[0], args[1:])
	fs.Unmount()
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}
