package guestmem

import (
	"context"
	"io"

	"github.com/bits-and-blooms/bitset"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hearthvm/hearth/internal/vmm/guestmem")

// WriteSnapshot streams the contents of guest memory to w, region by region
// in guest address order, and returns the number of bytes written.
//
// When dirty is non-nil only the pages whose bits are set are written; bit i
// covers page i of the backing object, so for the flat single-shm layout the
// index space is contiguous across regions. The caller supplies the dirty
// set, this layer does no tracking of its own.
//
// Snapshotting a running guest produces a torn image; pause vCPUs and
// devices first.
func (m *Memory) WriteSnapshot(ctx context.Context, w io.Writer, dirty *bitset.BitSet) (int64, error) {
	_, span := tracer.Start(ctx, "write-snapshot")
	defer span.End()

	var written int64

	for _, r := range m.regions {
		if dirty == nil {
			n, err := w.Write(r.mapping)
			written += int64(n)
			if err != nil {
				return written, err
			}

			continue
		}

		n, err := writeDirtyPages(w, r, dirty)
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// writeDirtyPages writes the runs of dirty pages that fall inside the
// region's window of its backing object.
func writeDirtyPages(w io.Writer, r *Region, dirty *bitset.BitSet) (int64, error) {
	firstPage := r.backingOff / pageSize
	pastPage := (r.backingOff + r.Size() + pageSize - 1) / pageSize

	var written int64

	start, ok := dirty.NextSet(uint(firstPage))
	for ok && uint64(start) < pastPage {
		end, endOk := dirty.NextClear(start)
		if !endOk || uint64(end) > pastPage {
			end = uint(pastPage)
		}

		from := (uint64(start) - firstPage) * pageSize
		to := min((uint64(end)-firstPage)*pageSize, r.Size())

		n, err := w.Write(r.mapping[from:to])
		written += int64(n)
		if err != nil {
			return written, err
		}

		start, ok = dirty.NextSet(end + 1)
	}

	return written, nil
}
