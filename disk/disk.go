package disk

// Block is a 512-byte buffer
type Block = []byte

const BlockSize uint64 = 512

// Disk provides access to a logical block-based disk
//
// Disks are assumed reliable: out-of-bounds accesses, wrongly sized buffers
// and host I/O failures panic rather than return an error.
type Disk interface {
	// Read reads a disk block by address
	//
	// Expects a < Size().
	Read(a uint64) Block

	// ReadTo reads the disk block at a and stores the result in b
	//
	// Expects a < Size().
	ReadTo(a uint64, b Block)

	// Write updates a disk block by address
	//
	// Expects a < Size().
	Write(a uint64, v Block)

	// Size reports how big the disk is, in blocks
	Size() uint64

	// Barrier ensures data is persisted.
	//
	// When it returns, all outstanding writes are guaranteed to be durably on
	// disk
	Barrier()

	// Close releases any resources used by the disk and makes it unusable.
	Close()
}
