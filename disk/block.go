package disk

// Block is a view over the raw bytes of one disk block.
//
//	byte 0      used flag
//	bytes 1..3  next location (track, sector, block); all zero ends a chain
//	bytes 4..   payload
type Block []byte

func (b Block) Used() bool {
	return b[0] != 0
}

func (b Block) SetUsed(used bool) {
	if used {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

func (b Block) Next() Location {
	return Location{Track: int(b[1]), Sector: int(b[2]), Block: int(b[3])}
}

func (b Block) SetNext(l Location) {
	b[1] = byte(l.Track)
	b[2] = byte(l.Sector)
	b[3] = byte(l.Block)
}

func (b Block) Payload() []byte {
	return b[HeaderSize:]
}

// SetPayload overwrites the payload with data, zero filling the remainder.
// It returns how many bytes of data were stored.
func (b Block) SetPayload(data []byte) int {
	p := b.Payload()
	n := copy(p, data)
	clear(p[n:])

	return n
}

// ClearHeader zeroes the reserved bytes and leaves the payload alone.
func (b Block) ClearHeader() {
	clear(b[:HeaderSize])
}
