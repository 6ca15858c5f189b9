package readahead

import "github.com/marmos91/discread/pkg/media"

// prefetchState tracks the sequential read-ahead window.
//
// It is owned by the worker goroutine: restart and advance are only ever
// called from the worker loop, so no locking is needed. The consumer
// influences it indirectly, by arming the pending slot: fulfilling a
// request restarts the window right behind the served block.
type prefetchState struct {
	next uint32         // next block-aligned LSN to read ahead
	mode media.ReadMode // mode the window was opened with
	left int            // remaining budget, counts down to 0
	max  int            // budget granted on each restart
}

// restart re-opens the window behind a just-served block with a full budget.
func (p *prefetchState) restart(lsn uint32, mode media.ReadMode) {
	p.next = lsn + blockSectors
	p.mode = mode
	p.left = p.max
}

// advance moves the window forward one block and spends budget.
func (p *prefetchState) advance() {
	p.next += blockSectors
	p.left--
}

// active reports whether there is budget left to read ahead.
func (p *prefetchState) active() bool {
	return p.left > 0
}
