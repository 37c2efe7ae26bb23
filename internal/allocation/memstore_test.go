package allocation

import (
	"context"
	"sync"

	"github.com/unfoldmono/realza/internal/model"
	"github.com/unfoldmono/realza/internal/repository"
)

// memStore is an in-memory Store used by the engine tests.  It honors
// the two contracts the SQL store provides: assignment is conditional
// on assigned_agent_id still being unset and is atomic under the
// mutex, and a second claim by the same agent fails with
// repository.ErrDuplicateClaim.
type memStore struct {
	mu       sync.Mutex
	nextID   uint64
	listings map[uint64]*model.Listing
	showings map[uint64]*model.Showing
	bids     map[uint64]*model.ShowingBid
	claims   map[uint64]map[uint64]*model.ShowingRequest // showingID -> agentID -> claim
}

func newMemStore() *memStore {
	return &memStore{
		listings: make(map[uint64]*model.Listing),
		showings: make(map[uint64]*model.Showing),
		bids:     make(map[uint64]*model.ShowingBid),
		claims:   make(map[uint64]map[uint64]*model.ShowingRequest),
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addListing(l model.Listing) *model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.id()
	m.listings[l.ID] = &l
	return &l
}

func (m *memStore) addShowing(s model.Showing) *model.Showing {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.showings[s.ID] = &s
	return &s
}

func (m *memStore) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) GetShowing(ctx context.Context, id uint64) (*model.Showing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.showings[id]
	if !ok {
		return nil, repository.ErrShowingNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetBid(ctx context.Context, id uint64) (*model.ShowingBid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, repository.ErrBidNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) CreateShowingWithBid(ctx context.Context, s *model.Showing, b *model.ShowingBid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	cpS := *s
	m.showings[s.ID] = &cpS
	b.ShowingID = s.ID
	b.ID = m.id()
	cpB := *b
	m.bids[b.ID] = &cpB
	return nil
}

func (m *memStore) CreateShowing(ctx context.Context, s *model.Showing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	cp := *s
	m.showings[s.ID] = &cp
	return nil
}

func (m *memStore) CreateBid(ctx context.Context, b *model.ShowingBid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *memStore) AcceptBidAndAssign(ctx context.Context, bid *model.ShowingBid) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.showings[bid.ShowingID]
	if !ok {
		return false, repository.ErrShowingNotFound
	}
	if s.AssignedAgentID != nil {
		return false, nil
	}
	if s.Status != model.ShowingPending && s.Status != model.ShowingBidding {
		return false, nil
	}
	agentID := bid.AgentID
	payout := bid.BidCents
	s.Status = model.ShowingAssigned
	s.AssignedAgentID = &agentID
	s.PayoutCents = &payout
	s.LockCodeRevealed = true
	if stored, ok := m.bids[bid.ID]; ok {
		stored.Status = model.BidAccepted
	}
	for _, other := range m.bids {
		if other.ShowingID == bid.ShowingID && other.ID != bid.ID && other.Status == model.BidPending {
			other.Status = model.BidRejected
		}
	}
	return true, nil
}

func (m *memStore) RejectBid(ctx context.Context, bidID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bids[bidID]; ok {
		b.Status = model.BidRejected
	}
	return nil
}

func (m *memStore) CountPendingBids(ctx context.Context, showingID uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bids {
		if b.ShowingID == showingID && b.Status == model.BidPending {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CancelIfPending(ctx context.Context, showingID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.showings[showingID]; ok && s.Status == model.ShowingPending {
		s.Status = model.ShowingCancelled
	}
	return nil
}

func (m *memStore) CreateClaim(ctx context.Context, req *model.ShowingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAgent, ok := m.claims[req.ShowingID]
	if !ok {
		byAgent = make(map[uint64]*model.ShowingRequest)
		m.claims[req.ShowingID] = byAgent
	}
	if _, exists := byAgent[req.AgentID]; exists {
		return repository.ErrDuplicateClaim
	}
	req.ID = m.id()
	cp := *req
	byAgent[req.AgentID] = &cp
	return nil
}

func (m *memStore) AssignIfUnassigned(ctx context.Context, showingID, agentID uint64, payoutCents uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.showings[showingID]
	if !ok {
		return false, repository.ErrShowingNotFound
	}
	if s.AssignedAgentID != nil {
		return false, nil
	}
	if s.Status != model.ShowingPending && s.Status != model.ShowingBidding {
		return false, nil
	}
	s.Status = model.ShowingAssigned
	s.AssignedAgentID = &agentID
	s.PayoutCents = &payoutCents
	s.LockCodeRevealed = true
	return true, nil
}

func (m *memStore) RejectClaim(ctx context.Context, showingID, agentID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byAgent, ok := m.claims[showingID]; ok {
		if req, ok := byAgent[agentID]; ok {
			req.Status = model.RequestRejected
		}
	}
	return nil
}

func (m *memStore) MarkLockCodeRevealed(ctx context.Context, showingID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.showings[showingID]; ok {
		s.LockCodeRevealed = true
	}
	return nil
}

func (m *memStore) CompleteShowing(ctx context.Context, showingID, agentID uint64, feedback *string, rating *uint8) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.showings[showingID]
	if !ok {
		return false, nil
	}
	if s.AssignedAgentID == nil || *s.AssignedAgentID != agentID || s.Status != model.ShowingAssigned {
		return false, nil
	}
	s.Status = model.ShowingCompleted
	s.Feedback = feedback
	s.Rating = rating
	return true, nil
}

// claimStatus returns the stored claim status for an agent, or "".
func (m *memStore) claimStatus(showingID, agentID uint64) model.RequestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byAgent, ok := m.claims[showingID]; ok {
		if req, ok := byAgent[agentID]; ok {
			return req.Status
		}
	}
	return ""
}

// bid returns the stored bid, or nil.
func (m *memStore) bid(id uint64) *model.ShowingBid {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bids[id]; ok {
		cp := *b
		return &cp
	}
	return nil
}

// showing returns the stored showing, or nil.
func (m *memStore) showing(id uint64) *model.Showing {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.showings[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}
