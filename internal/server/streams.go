package server

import (
	"sort"
	"sync"
	"time"

	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/utils"
	"github.com/oklog/ulid/v2"
)

// StreamInfo is a snapshot of one stream as seen by the receiver
type StreamInfo struct {
	ID         ulid.ULID // assigned on the first packet of the stream
	Source     string    // sender IP
	Name       string
	SampleRate protocol.SampleRate
	Channels   uint16
	Codec      protocol.Codec
	FirstSeen  time.Time
	LastSeen   time.Time
	LastFrame  uint32
	Packets    uint64
	LostFrames uint64
	Reordered  uint64 // duplicate or late frames
}

type streamKey struct {
	source string
	name   protocol.StreamName
}

// Result of feeding one header to the tracker
type observation struct {
	info      StreamInfo
	isNew     bool
	lost      uint32
	reordered bool
	evicted   []StreamInfo // streams removed to make room for a new one
	freed     []string     // names of evicted streams no longer held by any source
}

const DEFAULT_MAX_STREAMS = 256

// Tracks the advisory frame counter of every (source, name) pair.
// Frame numbers are compared with serial number arithmetic so the counter may wrap.
// At most maxStreams pairs are kept. Before a new pair is added, pairs idle for
// longer than idleTimeout are expired, then the least recently seen pair is
// evicted if the tracker is still full.
type streamTracker struct {
	mu          sync.Mutex
	streams     map[streamKey]*StreamInfo
	maxStreams  int
	idleTimeout time.Duration // 0 disables idle expiry
}

func newStreamTracker(maxStreams int, idleTimeout time.Duration) *streamTracker {
	if maxStreams <= 0 {
		maxStreams = DEFAULT_MAX_STREAMS
	}
	return &streamTracker{
		streams:     make(map[streamKey]*StreamInfo),
		maxStreams:  maxStreams,
		idleTimeout: idleTimeout,
	}
}

// makeRoom must be called with t.mu held
func (t *streamTracker) makeRoom(now time.Time) []StreamInfo {
	var evicted []StreamInfo
	if t.idleTimeout > 0 {
		for key, st := range t.streams {
			if now.Sub(st.LastSeen) > t.idleTimeout {
				evicted = append(evicted, *st)
				delete(t.streams, key)
			}
		}
	}

	for len(t.streams) >= t.maxStreams {
		var oldestKey streamKey
		var oldest *StreamInfo
		for key, st := range t.streams {
			if oldest == nil || st.LastSeen.Before(oldest.LastSeen) ||
				(st.LastSeen.Equal(oldest.LastSeen) && st.ID.Compare(oldest.ID) < 0) {
				oldestKey, oldest = key, st
			}
		}
		evicted = append(evicted, *oldest)
		delete(t.streams, oldestKey)
	}
	return evicted
}

// freedNames must be called with t.mu held
func (t *streamTracker) freedNames(evicted []StreamInfo) []string {
	if len(evicted) == 0 {
		return nil
	}
	inUse := make(map[string]struct{}, len(t.streams))
	for _, st := range t.streams {
		inUse[st.Name] = struct{}{}
	}
	var freed []string
	for _, st := range evicted {
		if _, ok := inUse[st.Name]; ok {
			continue
		}
		inUse[st.Name] = struct{}{}
		freed = append(freed, st.Name)
	}
	return freed
}

func (t *streamTracker) observe(source string, h *protocol.Header, now time.Time) (observation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var obs observation
	key := streamKey{source: source, name: h.StreamName}
	st, ok := t.streams[key]
	if !ok {
		id, err := utils.NewULIDAt(now)
		if err != nil {
			return observation{}, err
		}
		obs.evicted = t.makeRoom(now)
		st = &StreamInfo{
			ID:        id,
			Source:    source,
			Name:      h.StreamName.String(),
			FirstSeen: now,
			LastFrame: h.FrameNumber,
		}
		t.streams[key] = st
		obs.freed = t.freedNames(obs.evicted)
	}

	obs.isNew = !ok
	if ok {
		gap := h.FrameNumber - (st.LastFrame + 1)
		switch {
		case gap == 0:
		case gap < 1<<31:
			obs.lost = gap
			st.LostFrames += uint64(gap)
		default:
			obs.reordered = true
			st.Reordered++
		}
	}

	if !obs.reordered {
		st.LastFrame = h.FrameNumber
	}
	st.SampleRate = h.SampleRate
	st.Channels = h.NumChannels
	st.Codec = h.Codec
	st.LastSeen = now
	st.Packets++

	obs.info = *st
	return obs, nil
}

func (t *streamTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}

// snapshot returns every stream ordered by first appearance
func (t *streamTracker) snapshot() []StreamInfo {
	t.mu.Lock()
	infos := make([]StreamInfo, 0, len(t.streams))
	for _, st := range t.streams {
		infos = append(infos, *st)
	}
	t.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID.Compare(infos[j].ID) < 0
	})
	return infos
}
