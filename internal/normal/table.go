package normal

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
)

const (
	// ZDecimals is the number of fractional digits carried by z.
	ZDecimals = 15

	// TableDecimals is the precision of stored probabilities.
	TableDecimals = 5

	// MinDecimals and MaxDecimals bound the precision of a query result.
	MinDecimals = 4
	MaxDecimals = 76

	// ChangeBufferSize is the capacity of the TableChange channel.
	ChangeBufferSize = 256

	// bucketDecimals is the resolution of a bucket key (thousandths).
	bucketDecimals = 3
)

// MaxProbability is 1.0 at TableDecimals.
const MaxProbability int64 = 100000

var (
	// ErrInvalidDecimals is returned for a result precision outside [4, 76].
	ErrInvalidDecimals = errors.New("normal: decimals must be between 4 and 76")

	// ErrEmptyTable is returned when querying a table with no data points.
	ErrEmptyTable = errors.New("normal: probability table is empty")

	// ErrInvalidDataPoint is returned for a data point that is out of range
	// or would make the table non-monotonic.
	ErrInvalidDataPoint = errors.New("normal: invalid data point")
)

// bucketWidth is one bucket expressed in z units (10^12).
var bucketWidth = fixedpoint.Pow10(ZDecimals - bucketDecimals)

// snapshot is an immutable view of the table.
type snapshot struct {
	version uint64
	buckets []int64
	probs   []int64
}

// Snapshot is a copy of the table at one version.
type Snapshot struct {
	Version uint64            `json:"version"`
	Points  []model.DataPoint `json:"points"`
}

// Table is a monotonically increasing cumulative probability table.
type Table struct {
	// mu serializes writers; readers only load snap.
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]

	changes chan model.TableChange
	now     func() time.Time
}

// NewTable builds a table from points in any order.
// Buckets must be unique and probabilities non-decreasing in bucket order.
func NewTable(points []model.DataPoint) (*Table, error) {
	sorted := make([]model.DataPoint, len(points))
	copy(sorted, points)
	sortPoints(sorted)

	s := &snapshot{
		buckets: make([]int64, 0, len(sorted)),
		probs:   make([]int64, 0, len(sorted)),
	}
	for i, p := range sorted {
		if err := validatePoint(p.Bucket, p.Probability); err != nil {
			return nil, err
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Bucket == p.Bucket {
				return nil, fmt.Errorf("%w: duplicate bucket %d", ErrInvalidDataPoint, p.Bucket)
			}
			if prev.Probability > p.Probability {
				return nil, fmt.Errorf("%w: probability decreases at bucket %d (%d < %d)",
					ErrInvalidDataPoint, p.Bucket, p.Probability, prev.Probability)
			}
		}
		s.buckets = append(s.buckets, p.Bucket)
		s.probs = append(s.probs, p.Probability)
	}

	t := &Table{
		changes: make(chan model.TableChange, ChangeBufferSize),
		now:     time.Now,
	}
	t.snap.Store(s)
	return t, nil
}

// Len returns the number of data points.
func (t *Table) Len() int {
	return len(t.snap.Load().buckets)
}

// Version returns the number of writes applied since construction.
func (t *Table) Version() uint64 {
	return t.snap.Load().version
}

// Snapshot returns a copy of the current data points.
func (t *Table) Snapshot() Snapshot {
	s := t.snap.Load()
	points := make([]model.DataPoint, len(s.buckets))
	for i := range s.buckets {
		points[i] = model.DataPoint{Bucket: s.buckets[i], Probability: s.probs[i]}
	}
	return Snapshot{Version: s.version, Points: points}
}

// Subscribe returns the channel of table changes.
// The channel is shared; when it is full the oldest change is dropped.
func (t *Table) Subscribe() <-chan model.TableChange {
	return t.changes
}

// SetDataPoint inserts or overwrites the probability for bucket.
//
// The table must stay monotonic: the new probability may not be below the
// preceding bucket's or above the following bucket's.
func (t *Table) SetDataPoint(bucket, probability int64) (model.TableChange, error) {
	if err := validatePoint(bucket, probability); err != nil {
		return model.TableChange{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.snap.Load()
	n := len(cur.buckets)
	idx := sort.Search(n, func(i int) bool { return cur.buckets[i] >= bucket })
	exists := idx < n && cur.buckets[idx] == bucket

	if idx > 0 && cur.probs[idx-1] > probability {
		return model.TableChange{}, fmt.Errorf("%w: probability %d below bucket %d (%d)",
			ErrInvalidDataPoint, probability, cur.buckets[idx-1], cur.probs[idx-1])
	}
	next := idx
	if exists {
		next = idx + 1
	}
	if next < n && cur.probs[next] < probability {
		return model.TableChange{}, fmt.Errorf("%w: probability %d above bucket %d (%d)",
			ErrInvalidDataPoint, probability, cur.buckets[next], cur.probs[next])
	}

	change := model.TableChange{
		ID:       uuid.New(),
		Bucket:   bucket,
		New:      probability,
		Inserted: !exists,
		Version:  cur.version + 1,
		At:       t.now(),
	}

	s := &snapshot{version: cur.version + 1}
	if exists {
		change.Old = cur.probs[idx]
		s.buckets = cur.buckets
		s.probs = make([]int64, n)
		copy(s.probs, cur.probs)
		s.probs[idx] = probability
	} else {
		s.buckets = make([]int64, 0, n+1)
		s.buckets = append(s.buckets, cur.buckets[:idx]...)
		s.buckets = append(s.buckets, bucket)
		s.buckets = append(s.buckets, cur.buckets[idx:]...)
		s.probs = make([]int64, 0, n+1)
		s.probs = append(s.probs, cur.probs[:idx]...)
		s.probs = append(s.probs, probability)
		s.probs = append(s.probs, cur.probs[idx:]...)
	}
	t.snap.Store(s)

	t.notifyChange(change)
	return change, nil
}

// notifyChange sends a change to the changes channel (non-blocking).
func (t *Table) notifyChange(change model.TableChange) {
	select {
	case t.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-t.changes:
		default:
		}
		select {
		case t.changes <- change:
		default:
		}
	}
}

func validatePoint(bucket, probability int64) error {
	if bucket < 0 {
		return fmt.Errorf("%w: bucket %d is negative", ErrInvalidDataPoint, bucket)
	}
	if probability < 0 || probability > MaxProbability {
		return fmt.Errorf("%w: probability %d outside [0, %d]", ErrInvalidDataPoint, probability, MaxProbability)
	}
	return nil
}

func sortPoints(points []model.DataPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket < points[j].Bucket })
}

// bucketOf returns the bucket containing |z| and the offset of |z| inside it.
func bucketOf(absZ *big.Int) (q, rem *big.Int) {
	return new(big.Int).QuoRem(absZ, bucketWidth, new(big.Int))
}
