package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/mit-pdos/go-easyfs/vfs"
)

type tool struct {
	fs   *vfs.FileSystem
	root *vfs.Inode
	out  io.Writer
}

func (t *tool) run(cmd string, args []string) error {
	want := map[string]int{
		"pack": 1, "ls": -1, "put": 2, "cat": 1, "mkdir": 1,
		"ln": 2, "rm": 1, "stat": 1, "df": 0,
	}
	n, ok := want[cmd]
	if !ok {
		return fmt.Errorf("unknown command")
	}
	if n >= 0 && len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	switch cmd {
	case "pack":
		return t.pack(args[0])
	case "ls":
		p := "/"
		if len(args) > 0 {
			p = args[0]
		}
		return t.ls(p)
	case "put":
		return t.put(args[0], args[1])
	case "cat":
		return t.cat(args[0])
	case "mkdir":
		return t.mkdir(args[0])
	case "ln":
		return t.ln(args[0], args[1])
	case "rm":
		return t.rm(args[0])
	case "stat":
		return t.stat(args[0])
	case "df":
		return t.df()
	}
	return nil
}

func split(p string) []string {
	var names []string
	for _, n := range strings.Split(p, "/") {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// resolve walks p from the root one component at a time.
func (t *tool) resolve(p string) (*vfs.Inode, error) {
	ip := t.root
	for _, name := range split(p) {
		if !ip.IsDir() {
			return nil, fmt.Errorf("%s: not a directory", p)
		}
		ip = ip.Find(name)
		if ip == nil {
			return nil, fmt.Errorf("%s: not found", p)
		}
	}
	return ip, nil
}

// parent resolves everything but the last component of p.
func (t *tool) parent(p string) (*vfs.Inode, string, error) {
	names := split(p)
	if len(names) == 0 {
		return nil, "", fmt.Errorf("%s: no name", p)
	}
	dir, err := t.resolve(strings.Join(names[:len(names)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	if !dir.IsDir() {
		return nil, "", fmt.Errorf("%s: parent is not a directory", p)
	}
	return dir, names[len(names)-1], nil
}

func (t *tool) writeFile(dir *vfs.Inode, name string, data []byte) error {
	f := dir.Find(name)
	if f == nil {
		f = dir.Create(name)
		if f == nil {
			return fmt.Errorf("%s: cannot create", name)
		}
	} else if f.IsDir() {
		return fmt.Errorf("%s: is a directory", name)
	}
	f.Clear()
	if len(data) > 0 && f.WriteAt(0, data) != uint64(len(data)) {
		return fmt.Errorf("%s: volume full", name)
	}
	return nil
}

func (t *tool) pack(hostDir string) error {
	ents, err := os.ReadDir(hostDir)
	if err != nil {
		return err
	}
	for _, e := range ents {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := ioutil.ReadFile(filepath.Join(hostDir, e.Name()))
		if err != nil {
			return err
		}
		if err := t.writeFile(t.root, e.Name(), data); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "%s\t%d\n", e.Name(), len(data))
	}
	return nil
}

func (t *tool) ls(p string) error {
	ip, err := t.resolve(p)
	if err != nil {
		return err
	}
	if !ip.IsDir() {
		fmt.Fprintln(t.out, p)
		return nil
	}
	for _, name := range ip.Ls() {
		fmt.Fprintln(t.out, name)
	}
	return nil
}

func (t *tool) put(hostFile string, p string) error {
	data, err := ioutil.ReadFile(hostFile)
	if err != nil {
		return err
	}
	dir, name, err := t.parent(p)
	if err != nil {
		return err
	}
	return t.writeFile(dir, name, data)
}

func (t *tool) cat(p string) error {
	ip, err := t.resolve(p)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return fmt.Errorf("%s: is a directory", p)
	}
	_, err = t.out.Write(ip.ReadAll())
	return err
}

func (t *tool) mkdir(p string) error {
	dir, name, err := t.parent(p)
	if err != nil {
		return err
	}
	if dir.Mkdir(name) == nil {
		return fmt.Errorf("%s: cannot create", p)
	}
	return nil
}

func (t *tool) ln(existing string, newPath string) error {
	dir, oldName, err := t.parent(existing)
	if err != nil {
		return err
	}
	dir2, newName, err := t.parent(newPath)
	if err != nil {
		return err
	}
	if dir.Inum() != dir2.Inum() {
		return fmt.Errorf("links must stay within one directory")
	}
	if dir.Link(newName, oldName) == nil {
		return fmt.Errorf("%s -> %s: cannot link", newPath, existing)
	}
	return nil
}

func (t *tool) rm(p string) error {
	dir, name, err := t.parent(p)
	if err != nil {
		return err
	}
	if !dir.Unlink(name) {
		return fmt.Errorf("%s: not found or directory not empty", p)
	}
	return nil
}

func (t *tool) stat(p string) error {
	ip, err := t.resolve(p)
	if err != nil {
		return err
	}
	st := ip.Stat()
	fmt.Fprintf(t.out, "inode %d\n%v\nsize %d\nlinks %d\nblocks %d\n",
		st.Inum, st.Kind, st.Size, st.Nlink, st.Blocks)
	return nil
}

func (t *tool) df() error {
	st := t.fs.Stat()
	fmt.Fprintf(t.out, "inodes %d/%d free\nblocks %d/%d free\n",
		st.FreeInodes, st.Inodes, st.FreeBlocks, st.Blocks)
	return nil
}
