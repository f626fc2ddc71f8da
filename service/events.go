package service

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"tiergc/domain/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventMessage is the journaled and published form of a registry event.
type EventMessage struct {
	V          int    `json:"v"`
	Kind       string `json:"kind"`
	Handle     uint64 `json:"handle,omitempty"`
	Generation string `json:"generation,omitempty"`
	RefCount   int    `json:"ref_count"`
	Reason     string `json:"reason,omitempty"`
	Count      int    `json:"count,omitempty"`
	Seq        uint64 `json:"seq"`
	Time       int64  `json:"time"`
}

// DecodeEvent parses a journal payload.
func DecodeEvent(b []byte) (EventMessage, error) {
	var m EventMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// observe runs inside registry calls, with s.mu held.
func (s *RegistryService) observe(e registry.Event) {
	if e.Kind == registry.EventDestroyed {
		s.destroyed++
	}
	if s.replaying {
		return
	}

	switch e.Kind {
	case registry.EventRegistered:
		s.log.Printf("[registry] registering object %v in generation %v", e.Handle, e.Generation)
	case registry.EventRemoved:
		s.log.Printf("[registry] removing object %v from %v", e.Handle, e.Generation)
	case registry.EventDestroyed:
		if e.Reason == registry.ReasonSwept {
			s.log.Printf("[registry] collecting garbage object %v from %v", e.Handle, e.Generation)
		}
	case registry.EventCollected:
		s.log.Printf("[registry] garbage collection complete (swept %d)", e.Count)
	case registry.EventCleanedUp:
		s.log.Printf("[registry] cleanup complete (destroyed %d)", e.Count)
	}

	if s.journal == nil || e.Kind == registry.EventPromoted || e.Kind == registry.EventRemoved {
		return
	}
	msg := EventMessage{
		V:        1,
		Kind:     e.Kind.String(),
		Handle:   uint64(e.Handle),
		RefCount: e.RefCount,
		Reason:   e.Reason.String(),
		Count:    e.Count,
		Seq:      s.currentSeq,
		Time:     time.Now().UnixNano(),
	}
	if e.Handle != 0 {
		msg.Generation = e.Generation.String()
	}
	b, err := json.Marshal(msg)
	if err == nil {
		_, err = s.journal.Append(b)
	}
	if err != nil {
		s.journalErrs++
		s.log.Printf("[registry] journal append failed: %v", err)
	}
}
