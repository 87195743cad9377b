package timing

import (
	"sync"
	"time"

	"github.com/adwski/lysn/backend/model"
)

const (
	defaultStaleAfter = 5 * time.Second
)

// Due is an anchor that needs to be re-broadcast.
type Due struct {
	RoomCode string
	// StartTime is the anchor's start time extrapolated to the scan time.
	StartTime float64
}

// Coordinator keeps one playback anchor per room with active audio.
type Coordinator struct {
	mx         *sync.Mutex
	anchors    map[string]model.Anchor
	staleAfter time.Duration
}

func NewCoordinator(staleAfter time.Duration) *Coordinator {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Coordinator{
		mx:         &sync.Mutex{},
		anchors:    make(map[string]model.Anchor),
		staleAfter: staleAfter,
	}
}

// Record creates or replaces the room's anchor captured at now.
func (c *Coordinator) Record(roomCode string, startTime float64, now time.Time) model.Anchor {
	c.mx.Lock()
	defer c.mx.Unlock()

	ms := now.UnixMilli()
	a := model.Anchor{
		StartTime:           startTime,
		ServerTimeAtCapture: ms,
		LastUpdate:          ms,
	}
	c.anchors[roomCode] = a
	return a
}

// Touch marks the anchor as observed by clients at now.
func (c *Coordinator) Touch(roomCode string, now time.Time) {
	c.mx.Lock()
	defer c.mx.Unlock()

	a, ok := c.anchors[roomCode]
	if !ok {
		return
	}
	a.ServerTimeAtCapture = now.UnixMilli()
	a.LastUpdate = a.ServerTimeAtCapture
	c.anchors[roomCode] = a
}

func (c *Coordinator) Get(roomCode string) (model.Anchor, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()

	a, ok := c.anchors[roomCode]
	return a, ok
}

func (c *Coordinator) Delete(roomCode string) {
	c.mx.Lock()
	defer c.mx.Unlock()

	delete(c.anchors, roomCode)
}

func (c *Coordinator) Len() int {
	c.mx.Lock()
	defer c.mx.Unlock()

	return len(c.anchors)
}

// Current returns the anchor together with the time elapsed since it was
// last updated, as handed to late joiners.
func (c *Coordinator) Current(roomCode string, now time.Time) (model.CurrentTiming, bool) {
	a, ok := c.Get(roomCode)
	if !ok {
		return model.CurrentTiming{}, false
	}
	return model.CurrentTiming{
		Anchor: a,
		Offset: now.UnixMilli() - a.LastUpdate,
	}, true
}

// Due returns anchors that were last updated strictly more than staleAfter ago.
func (c *Coordinator) Due(now time.Time) []Due {
	c.mx.Lock()
	defer c.mx.Unlock()

	var (
		ms   = now.UnixMilli()
		due  []Due
		gate = c.staleAfter.Milliseconds()
	)
	for code, a := range c.anchors {
		if ms-a.LastUpdate > gate {
			due = append(due, Due{
				RoomCode:  code,
				StartTime: Extrapolate(a, now),
			})
		}
	}
	return due
}

// Extrapolate shifts the anchor's start time by the server time elapsed
// since it was captured.
func Extrapolate(a model.Anchor, now time.Time) float64 {
	return a.StartTime + float64(now.UnixMilli()-a.ServerTimeAtCapture)
}
