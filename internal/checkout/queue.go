// Package checkout maintains the store's single waiting line at the till.
// The queue is a plain ordered collection: customers join at the tail, the
// head is the one being served, and every member owns its own state machine.
// Membership changes push fresh stand-in-line targets to all remaining
// members and notify the new head, so nobody polls for their turn.
package checkout

import (
	"sync"

	"store_sim/internal/geo"
	"store_sim/internal/pkg/logger"

	"go.uber.org/zap"
)

// NotInQueue is the index reported for customers that are not in line.
const NotInQueue = -1

// Member is a queue participant. UpdateTarget and Promote must be cheap and
// non-blocking; they are invoked whenever the line compacts and may fire
// repeatedly while the member is mid-walk.
type Member interface {
	// ID identifies the member; at most one member per ID is ever in line.
	ID() string
	// UpdateTarget hands the member a new stand-in-line position.
	UpdateTarget(pos geo.Vec3)
	// Promote tells the member it has reached the head of the line.
	Promote()
}

// Config is the spatial layout of the line: where it starts, which way it
// grows and how far apart customers stand.
type Config struct {
	// Start is the slot of the customer being served.
	Start geo.Vec3
	// DirectionAnchor, when set, aims the line from Start toward it.
	DirectionAnchor *geo.Vec3
	// DefaultDirection is used when no anchor is configured.
	DefaultDirection geo.Vec3
	// Spacing is the distance between adjacent customers.
	Spacing float64
}

func (c Config) direction() geo.Vec3 {
	if c.DirectionAnchor != nil {
		return c.DirectionAnchor.Sub(c.Start).Normalized()
	}
	dir := c.DefaultDirection.Normalized()
	if dir == (geo.Vec3{}) {
		dir = geo.Vec3{Z: -1}
	}
	return dir
}

// Queue is the FIFO waiting line. All operations are safe for concurrent
// use; customer sessions run as independent goroutines.
type Queue struct {
	mu      sync.Mutex
	cfg     Config
	members []Member
	log     *logger.Logger
}

// NewQueue creates an empty line with the given spatial layout.
func NewQueue(cfg Config, l *logger.Logger) *Queue {
	return &Queue{cfg: cfg, log: l}
}

// Join appends the member to the tail of the line and returns its target
// position. Joining while already in line is a no-op that returns the
// current target. A member joining an empty line is promoted immediately.
func (q *Queue) Join(m Member) geo.Vec3 {
	q.mu.Lock()
	idx := q.indexOfLocked(m.ID())
	if idx == NotInQueue {
		q.members = append(q.members, m)
		idx = len(q.members) - 1
		q.log.Info("customer joined queue", zap.String("customer", m.ID()), zap.Int("index", idx))
	}
	pos := q.positionAt(idx)
	promote := idx == 0
	q.mu.Unlock()

	if promote {
		m.Promote()
	}
	return pos
}

// Leave removes the member from the line. Everyone behind it shifts forward
// one slot: each remaining member receives its recomputed target and, when
// the head slot changed hands, the new head is promoted.
func (q *Queue) Leave(m Member) {
	q.mu.Lock()
	idx := q.indexOfLocked(m.ID())
	if idx == NotInQueue {
		q.mu.Unlock()
		return
	}
	q.members = append(q.members[:idx], q.members[idx+1:]...)
	q.log.Info("customer left queue", zap.String("customer", m.ID()), zap.Int("remaining", len(q.members)))

	type update struct {
		member  Member
		pos     geo.Vec3
		promote bool
	}
	updates := make([]update, 0, len(q.members))
	for i, member := range q.members {
		updates = append(updates, update{
			member:  member,
			pos:     q.positionAt(i),
			promote: i == 0 && idx == 0,
		})
	}
	q.mu.Unlock()

	// Callbacks run outside the lock so a member reacting to its new target
	// can immediately query the queue again.
	for _, u := range updates {
		u.member.UpdateTarget(u.pos)
		if u.promote {
			u.member.Promote()
		}
	}
}

// IndexOf returns the member's 0-based position in line, or NotInQueue.
func (q *Queue) IndexOf(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOfLocked(id)
}

// PositionFor returns the member's current stand-in-line target. Index 0
// resolves to exactly the start anchor. Non-members get the zero vector.
func (q *Queue) PositionFor(id string) geo.Vec3 {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexOfLocked(id)
	if idx == NotInQueue {
		return geo.Vec3{}
	}
	return q.positionAt(idx)
}

// Head returns the member currently eligible for service, or nil.
func (q *Queue) Head() Member {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.members) == 0 {
		return nil
	}
	return q.members[0]
}

// Members returns the line contents in order, head first.
func (q *Queue) Members() []Member {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Member, len(q.members))
	copy(out, q.members)
	return out
}

// Len returns the number of customers in line.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.members)
}

func (q *Queue) indexOfLocked(id string) int {
	for i, m := range q.members {
		if m.ID() == id {
			return i
		}
	}
	return NotInQueue
}

func (q *Queue) positionAt(index int) geo.Vec3 {
	return q.cfg.Start.Add(q.cfg.direction().Scale(float64(index) * q.cfg.Spacing))
}
