// Package pipeline manages the ordered, negotiable chain of data
// transforms applied to every application payload of a session.
package pipeline

import (
	"fmt"
	"slices"
)

// Processor is one bidirectional transform stage. Forward wraps data on
// egress and Backward unwraps it on ingress. After FinishNegotiate returns,
// both transforms depend only on the negotiated state.
type Processor interface {
	ID() string
	// Negotiate returns this side's negotiation parameter. Repeated calls
	// return the same value.
	Negotiate() ([]byte, error)
	// FinishNegotiate completes negotiation with the peer's parameter.
	FinishNegotiate(peer []byte) error
	Forward(data []byte) ([]byte, error)
	Backward(data []byte) ([]byte, error)
}

// Negotiation is one advertised processor and its parameter.
type Negotiation struct {
	ID        string `json:"id"`
	Parameter []byte `json:"parameter,omitempty"`
}

// Direction selects the fold order of Apply.
type Direction uint8

const (
	Outbound Direction = iota // P1 → Pn
	Inbound                   // Pn → P1
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Advertise produces one Negotiation per candidate, in declaration order.
func Advertise(candidates []Processor) ([]Negotiation, error) {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Negotiation, 0, len(candidates))
	for _, p := range candidates {
		id := p.ID()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("pipeline: duplicate processor %q", id)
		}
		seen[id] = struct{}{}

		param, err := p.Negotiate()
		if err != nil {
			return nil, fmt.Errorf("pipeline: negotiate %s: %w", id, err)
		}
		out = append(out, Negotiation{ID: id, Parameter: param})
	}
	return out, nil
}

// Reconcile intersects two advertisements by processor id. The result keeps
// the local declaration order and carries the peer's parameter for each
// match, so Reconcile(a, b) and Reconcile(b, a) agree on the set of ids.
func Reconcile(local, peer []Negotiation) []Negotiation {
	byID := make(map[string][]byte, len(peer))
	for _, n := range peer {
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n.Parameter
		}
	}

	agreed := make([]Negotiation, 0, len(local))
	for _, n := range local {
		param, ok := byID[n.ID]
		if !ok {
			continue
		}
		agreed = append(agreed, Negotiation{ID: n.ID, Parameter: param})
		delete(byID, n.ID)
	}
	return agreed
}

// Pipeline is an immutable pair of ordered views over the agreed
// processors. A nil *Pipeline is disabled and passes data through.
type Pipeline struct {
	forward []Processor
	reverse []Processor
}

// Build finishes negotiation of every candidate named in agreed, feeding it
// the peer's parameter, and returns the pipeline in agreed order.
func Build(candidates []Processor, agreed []Negotiation) (*Pipeline, error) {
	byID := make(map[string]Processor, len(candidates))
	for _, p := range candidates {
		byID[p.ID()] = p
	}

	forward := make([]Processor, 0, len(agreed))
	for _, n := range agreed {
		p, ok := byID[n.ID]
		if !ok {
			return nil, fmt.Errorf("pipeline: agreed processor %q is not a local candidate", n.ID)
		}
		if err := p.FinishNegotiate(n.Parameter); err != nil {
			return nil, fmt.Errorf("pipeline: finish negotiate %s: %w", n.ID, err)
		}
		forward = append(forward, p)
	}

	reverse := slices.Clone(forward)
	slices.Reverse(reverse)
	return &Pipeline{forward: forward, reverse: reverse}, nil
}

// Apply folds data through the pipeline in the order given by dir.
func (p *Pipeline) Apply(dir Direction, data []byte) ([]byte, error) {
	if p == nil {
		return data, nil
	}

	var err error
	if dir == Outbound {
		for _, proc := range p.forward {
			if data, err = proc.Forward(data); err != nil {
				return nil, fmt.Errorf("pipeline: %s %s: %w", dir, proc.ID(), err)
			}
		}
		return data, nil
	}

	for _, proc := range p.reverse {
		if data, err = proc.Backward(data); err != nil {
			return nil, fmt.Errorf("pipeline: %s %s: %w", dir, proc.ID(), err)
		}
	}
	return data, nil
}

// IDs lists the agreed processors in outbound order.
func (p *Pipeline) IDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, len(p.forward))
	for i, proc := range p.forward {
		ids[i] = proc.ID()
	}
	return ids
}

// Len reports the number of agreed processors.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.forward)
}
