package abi

import "fmt"

// DiskOp selects the filesystem operation a DiskRequest performs.
type DiskOp int

const (
	DiskCreate DiskOp = iota + 1
	DiskRead
	DiskWrite
	DiskDelete
	DiskList
	DiskFormat
	DiskRename
	DiskRecover
	DiskCheck
)

func (o DiskOp) String() string {
	switch o {
	case DiskCreate:
		return "create"
	case DiskRead:
		return "read"
	case DiskWrite:
		return "write"
	case DiskDelete:
		return "delete"
	case DiskList:
		return "list"
	case DiskFormat:
		return "format"
	case DiskRename:
		return "rename"
	case DiskRecover:
		return "recover"
	case DiskCheck:
		return "check"
	default:
		return fmt.Sprintf("disk-op(%d)", int(o))
	}
}

// DiskRequest is the Params of a Disk interrupt.
type DiskRequest struct {
	Op       DiskOp
	Filename string

	// NewName is the target of a rename.
	NewName string

	Data []byte

	// Long selects the unfiltered listing.
	Long bool

	// Quick selects the header-only format.
	Quick bool

	// Reply, if set, is called with the outcome once the interrupt has been
	// serviced.
	Reply func(DiskResult)
}

type DirEntry struct {
	Name    string
	Size    int
	Created string
	Track   int
	Sector  int
	Block   int
}

type DiskResult struct {
	Data    []byte
	Entries []DirEntry
	Report  []string
	Err     error
}
