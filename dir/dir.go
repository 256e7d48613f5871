// Package dir defines directory entries. A directory's content is a flat
// array of fixed-size entries; an entry with an empty name is a vacant slot
// left behind by unlink.
package dir

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tchajed/goose/machine"

	"github.com/mit-pdos/go-easyfs/common"
)

type DirEnt struct {
	Name string
	Inum common.Inum
}

func MkDirEnt(name string, inum common.Inum) *DirEnt {
	if !ValidName(name) {
		panic(fmt.Errorf("MkDirEnt: bad name %q", name))
	}
	return &DirEnt{Name: name, Inum: inum}
}

// MkEmpty returns the vacant entry.
func MkEmpty() *DirEnt {
	return &DirEnt{}
}

func (de *DirEnt) IsEmpty() bool {
	return de.Name == ""
}

// ValidName reports whether name fits in an entry and can be looked up.
func ValidName(name string) bool {
	return name != "" && uint64(len(name)) <= common.NAMELEN &&
		!strings.ContainsAny(name, "/\x00")
}

func (de *DirEnt) Encode() []byte {
	b := make([]byte, common.DIRENTSZ)
	copy(b[:common.NAMELEN], de.Name)
	machine.UInt32Put(b[common.DIRENTSZ-4:], uint32(de.Inum))
	return b
}

func Decode(b []byte) *DirEnt {
	if uint64(len(b)) != common.DIRENTSZ {
		panic(fmt.Errorf("Decode: %d-byte directory entry", len(b)))
	}
	name := b[:common.NAMELEN+1]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return &DirEnt{
		Name: string(name),
		Inum: common.Inum(machine.UInt32Get(b[common.DIRENTSZ-4:])),
	}
}
