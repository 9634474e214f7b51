package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"studyrooms/domain"
	"studyrooms/errors"
)

// LastSequenceFunc rehydrates a room's sequence counter from durable
// history when the room is re-created after a purge, so a recreated room
// never reissues sequence numbers.
type LastSequenceFunc func(key domain.RoomKey) (uint64, error)

// RoomDirectory maps room keys to their membership and per-room sequence
// counter. Each room is the unit of serialization: the directory-level
// lock only guards the rooms map (create/purge), while every mutation of
// one room's state happens under that room's own mutex. Lock order is
// always directory then room.
type RoomDirectory struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomKey]*room
	lastSequence LastSequenceFunc
	log          *slog.Logger
}

// room state. members holds live sessions; roster holds the user ids that
// joined and did not explicitly leave, so that a user whose session dropped
// still receives pending copies until they leave for good.
type room struct {
	mu              sync.Mutex
	establishmentID string
	members         map[string]string   // sessionID -> userID
	roster          map[string]struct{} // userIDs
	sequence        uint64
}

func NewRoomDirectory(log *slog.Logger, lastSequence LastSequenceFunc) *RoomDirectory {
	return &RoomDirectory{
		rooms:        make(map[domain.RoomKey]*room),
		lastSequence: lastSequence,
		log:          log,
	}
}

// Join adds the session to the room, creating the room on first join and
// binding its establishment to the session's. Re-joining is idempotent and
// returns current state without error.
func (d *RoomDirectory) Join(session domain.Session, key domain.RoomKey) (domain.JoinState, error) {
	for {
		d.mu.RLock()
		rm, ok := d.rooms[key]
		if !ok {
			d.mu.RUnlock()
			if _, err := d.create(session.EstablishmentID, key); err != nil {
				return domain.JoinState{}, err
			}
			// Retake the read lock and look the room up again: it may
			// have been purged between create and here.
			continue
		}

		rm.mu.Lock()
		if rm.establishmentID != session.EstablishmentID {
			rm.mu.Unlock()
			d.mu.RUnlock()
			return domain.JoinState{}, errors.ErrTenantMismatch
		}
		rm.members[session.ID] = session.UserID
		rm.roster[session.UserID] = struct{}{}
		state := domain.JoinState{Sequence: rm.sequence, MemberCount: len(rm.members)}
		rm.mu.Unlock()
		d.mu.RUnlock()
		return state, nil
	}
}

// create inserts the room under the directory write lock. The sequence
// counter is seeded from history so recreation preserves monotonicity.
func (d *RoomDirectory) create(establishmentID string, key domain.RoomKey) (*room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rm, ok := d.rooms[key]; ok {
		return rm, nil
	}

	var seq uint64
	if d.lastSequence != nil {
		var err error
		if seq, err = d.lastSequence(key); err != nil {
			return nil, fmt.Errorf("%w: rehydrating sequence for %s: %v", errors.ErrPersistence, key, err)
		}
	}

	rm := &room{
		establishmentID: establishmentID,
		members:         make(map[string]string),
		roster:          make(map[string]struct{}),
		sequence:        seq,
	}
	d.rooms[key] = rm
	d.log.Debug("Room created", "room", key.String(), "establishment_id", establishmentID, "sequence", seq)
	return rm, nil
}

// Leave removes the session's membership. The user also drops off the
// roster unless another of their sessions is still a member. An empty room
// is purged; its sequence survives through history rehydration.
func (d *RoomDirectory) Leave(sessionID string, key domain.RoomKey) error {
	d.mu.RLock()
	rm, ok := d.rooms[key]
	if !ok {
		d.mu.RUnlock()
		return errors.ErrNotFound
	}

	rm.mu.Lock()
	userID, isMember := rm.members[sessionID]
	if isMember {
		delete(rm.members, sessionID)
		if !hasUser(rm.members, userID) {
			delete(rm.roster, userID)
		}
	}
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	d.mu.RUnlock()

	if empty {
		d.purgeIfEmpty(key)
	}
	return nil
}

// DropSession cascades a session close: the session leaves every room it
// was a member of, but its user stays on each roster so later messages
// queue as pending deliveries until the user explicitly leaves.
func (d *RoomDirectory) DropSession(sessionID string) {
	d.mu.RLock()
	var emptied []domain.RoomKey
	for key, rm := range d.rooms {
		rm.mu.Lock()
		if _, ok := rm.members[sessionID]; ok {
			delete(rm.members, sessionID)
			if len(rm.members) == 0 {
				emptied = append(emptied, key)
			}
		}
		rm.mu.Unlock()
	}
	d.mu.RUnlock()

	for _, key := range emptied {
		d.purgeIfEmpty(key)
	}
}

// purgeIfEmpty re-checks emptiness under the write lock: a concurrent join
// may have revived the room between the release and this call.
func (d *RoomDirectory) purgeIfEmpty(key domain.RoomKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rm, ok := d.rooms[key]
	if !ok {
		return
	}
	rm.mu.Lock()
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty {
		delete(d.rooms, key)
		d.log.Debug("Room purged", "room", key.String())
	}
}

// Members returns a snapshot of the session ids currently in the room.
func (d *RoomDirectory) Members(key domain.RoomKey) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rm, ok := d.rooms[key]
	if !ok {
		return nil, errors.ErrNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	members := make([]string, 0, len(rm.members))
	for sessionID := range rm.members {
		members = append(members, sessionID)
	}
	return members, nil
}

// NextSequence atomically increments and returns the room's counter.
func (d *RoomDirectory) NextSequence(key domain.RoomKey) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rm, ok := d.rooms[key]
	if !ok {
		return 0, errors.ErrNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.sequence++
	return rm.sequence, nil
}

// Reserve runs fn with the next sequence number and a consistent snapshot
// of the room's members and roster, all under the room's serialization
// point. Two sends to the same room can therefore never race on sequence
// assignment or observe each other's half-applied membership. fn failing
// does not rewind the counter: the resulting gap is accepted rather than
// risking renumbering races.
func (d *RoomDirectory) Reserve(key domain.RoomKey, senderSessionID string, fn func(seq uint64, members map[string]string, roster []string) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rm, ok := d.rooms[key]
	if !ok {
		return errors.ErrNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, isMember := rm.members[senderSessionID]; !isMember {
		return errors.ErrNotAMember
	}

	rm.sequence++

	members := make(map[string]string, len(rm.members))
	for sessionID, userID := range rm.members {
		members[sessionID] = userID
	}
	roster := make([]string, 0, len(rm.roster))
	for userID := range rm.roster {
		roster = append(roster, userID)
	}

	return fn(rm.sequence, members, roster)
}

// Summaries lists the active rooms bound to one establishment.
func (d *RoomDirectory) Summaries(establishmentID string) []domain.RoomSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var res []domain.RoomSummary
	for key, rm := range d.rooms {
		rm.mu.Lock()
		if rm.establishmentID == establishmentID {
			res = append(res, domain.RoomSummary{
				Key:             key,
				EstablishmentID: rm.establishmentID,
				MemberCount:     len(rm.members),
			})
		}
		rm.mu.Unlock()
	}
	return res
}

func hasUser(members map[string]string, userID string) bool {
	for _, uid := range members {
		if uid == userID {
			return true
		}
	}
	return false
}

// EstablishmentOf resolves the establishment a room is bound to.
func (d *RoomDirectory) EstablishmentOf(key domain.RoomKey) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rm, ok := d.rooms[key]
	if !ok {
		return "", errors.ErrNotFound
	}
	return rm.establishmentID, nil
}
