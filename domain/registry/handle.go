package registry

import "strconv"

// Handle identifies an object slot. The low 32 bits hold the slot
// index plus one, the high 32 bits the slot version. The zero Handle
// never refers to an object.
type Handle uint64

func makeHandle(index, version uint32) Handle {
	return Handle(uint64(version)<<32 | uint64(index+1))
}

func (h Handle) index() int {
	return int(uint32(h)) - 1
}

func (h Handle) version() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// ParseHandle parses the decimal form produced by String.
func ParseHandle(s string) (Handle, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Handle(v), nil
}
