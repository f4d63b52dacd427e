package mem

import (
	"github.com/DrmagicE/coremqtt/persistence/unack"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

var _ unack.Store = (*Store)(nil)

type Store struct {
	clientID     string
	unackpublish map[packets.PacketID]unack.Record
}

func New(clientID string) *Store {
	return &Store{
		clientID:     clientID,
		unackpublish: make(map[packets.PacketID]unack.Record),
	}
}

func (s *Store) Init(cleanStart bool) error {
	if cleanStart {
		s.unackpublish = make(map[packets.PacketID]unack.Record)
	}
	return nil
}

func (s *Store) Reserve(id packets.PacketID, qos uint8) (bool, error) {
	if _, ok := s.unackpublish[id]; ok {
		return true, nil
	}
	s.unackpublish[id] = unack.Record{QoS: qos, State: unack.StateReserved}
	return false, nil
}

func (s *Store) Update(id packets.PacketID, state unack.State) error {
	r, ok := s.unackpublish[id]
	if !ok {
		return unack.ErrNotFound
	}
	r.State = state
	s.unackpublish[id] = r
	return nil
}

func (s *Store) Get(id packets.PacketID) (unack.Record, bool, error) {
	r, ok := s.unackpublish[id]
	return r, ok, nil
}

func (s *Store) Remove(id packets.PacketID) error {
	delete(s.unackpublish, id)
	return nil
}

func (s *Store) Len() int {
	return len(s.unackpublish)
}
