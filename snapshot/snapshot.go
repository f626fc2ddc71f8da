package snapshot

import (
	"time"

	"tiergc/domain/registry"
)

const fileName = "snapshot.bin"

type Snapshot struct {
	Seq        uint64
	Created    time.Time
	Checkpoint registry.Checkpoint
	// Values maps each live handle to its payload value.
	Values map[uint64]int64
}
