package risk

import "github.com/tradsys/clob/internal/types"

// MemoryPositionStore is an in-memory PositionStore, used by tests and
// by cmd/engine in its no-persistence dev mode.
type MemoryPositionStore struct {
	positions map[string]types.UserPosition
}

// NewMemoryPositionStore returns an empty store.
func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{positions: make(map[string]types.UserPosition)}
}

func key(userID, pair string) string { return userID + "|" + pair }

// Get implements PositionStore.
func (s *MemoryPositionStore) Get(userID, pair string) (types.UserPosition, bool) {
	pos, ok := s.positions[key(userID, pair)]
	return pos, ok
}

// Put implements PositionStore.
func (s *MemoryPositionStore) Put(pos types.UserPosition) {
	s.positions[key(pos.UserID, pos.TradingPair)] = pos
}

// Seed directly installs a position, for test setup (e.g. granting a
// user starting balances before exercising Gate.Check/Lock).
func (s *MemoryPositionStore) Seed(pos types.UserPosition) {
	s.Put(pos)
}
