package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sort"
	"testing"
)

// tagProcessor appends its tag on Forward and insists on finding it last on
// Backward, so any ordering mistake surfaces as an error.
type tagProcessor struct {
	id       string
	param    []byte
	peer     []byte
	finished bool
}

func newTag(id string) *tagProcessor {
	return &tagProcessor{id: id, param: []byte("param-" + id)}
}

func (p *tagProcessor) ID() string                 { return p.id }
func (p *tagProcessor) Negotiate() ([]byte, error) { return p.param, nil }

func (p *tagProcessor) FinishNegotiate(peer []byte) error {
	p.peer = peer
	p.finished = true
	return nil
}

func (p *tagProcessor) Forward(data []byte) ([]byte, error) {
	out := slices.Clone(data)
	return append(out, []byte("|"+p.id)...), nil
}

func (p *tagProcessor) Backward(data []byte) ([]byte, error) {
	suffix := []byte("|" + p.id)
	if !bytes.HasSuffix(data, suffix) {
		return nil, fmt.Errorf("%s: tag not last in %q", p.id, data)
	}
	return slices.Clone(data[:len(data)-len(suffix)]), nil
}

// failingProcessor errors at a configurable step.
type failingProcessor struct {
	tagProcessor
	failNegotiate bool
	failFinish    bool
}

var errBoom = errors.New("boom")

func (p *failingProcessor) Negotiate() ([]byte, error) {
	if p.failNegotiate {
		return nil, errBoom
	}
	return p.tagProcessor.Negotiate()
}

func (p *failingProcessor) FinishNegotiate(peer []byte) error {
	if p.failFinish {
		return errBoom
	}
	return p.tagProcessor.FinishNegotiate(peer)
}

func ids(ns []Negotiation) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestAdvertise(t *testing.T) {
	adv, err := Advertise([]Processor{newTag("a"), newTag("b")})
	if err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	if got := ids(adv); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("ids = %v, want [a b]", got)
	}
	if !bytes.Equal(adv[1].Parameter, []byte("param-b")) {
		t.Errorf("parameter = %q, want %q", adv[1].Parameter, "param-b")
	}
}

func TestAdvertiseRejectsDuplicates(t *testing.T) {
	if _, err := Advertise([]Processor{newTag("a"), newTag("a")}); err == nil {
		t.Fatal("expected error for duplicate processor ids")
	}
}

func TestAdvertiseNegotiateError(t *testing.T) {
	p := &failingProcessor{tagProcessor: *newTag("x"), failNegotiate: true}
	if _, err := Advertise([]Processor{p}); !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped errBoom, got %v", err)
	}
}

func TestReconcileKeepsPeerParameter(t *testing.T) {
	local := []Negotiation{{ID: "a", Parameter: []byte("la")}, {ID: "b", Parameter: []byte("lb")}}
	peer := []Negotiation{{ID: "b", Parameter: []byte("pb")}, {ID: "c", Parameter: []byte("pc")}}

	agreed := Reconcile(local, peer)
	if len(agreed) != 1 || agreed[0].ID != "b" {
		t.Fatalf("agreed = %v, want [b]", ids(agreed))
	}
	if !bytes.Equal(agreed[0].Parameter, []byte("pb")) {
		t.Errorf("parameter = %q, want peer's %q", agreed[0].Parameter, "pb")
	}
}

// TestReconcileCommutative checks that both sides agree on the same set of
// processor ids whichever list is treated as local.
func TestReconcileCommutative(t *testing.T) {
	testCases := []struct {
		name  string
		left  []string
		right []string
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}},
		{"different order", []string{"a", "b", "c"}, []string{"c", "a"}},
		{"disjoint", []string{"a"}, []string{"b"}},
		{"empty side", nil, []string{"a"}},
		{"partial overlap", []string{"x", "y", "z"}, []string{"w", "y", "z"}},
	}

	mk := func(names []string, side string) []Negotiation {
		out := make([]Negotiation, len(names))
		for i, n := range names {
			out[i] = Negotiation{ID: n, Parameter: []byte(side + n)}
		}
		return out
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, r := mk(tc.left, "l"), mk(tc.right, "r")
			ab := ids(Reconcile(l, r))
			ba := ids(Reconcile(r, l))
			sort.Strings(ab)
			sort.Strings(ba)
			if !slices.Equal(ab, ba) {
				t.Fatalf("intersect(L,R) = %v, intersect(R,L) = %v", ab, ba)
			}
		})
	}
}

func TestBuildFinishesNegotiation(t *testing.T) {
	a, b, c := newTag("a"), newTag("b"), newTag("c")
	agreed := []Negotiation{{ID: "a", Parameter: []byte("peer-a")}, {ID: "c", Parameter: []byte("peer-c")}}

	p, err := Build([]Processor{a, b, c}, agreed)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !slices.Equal(p.IDs(), []string{"a", "c"}) {
		t.Fatalf("IDs = %v, want [a c]", p.IDs())
	}
	if !a.finished || !c.finished || b.finished {
		t.Errorf("finished flags a=%v b=%v c=%v, want true false true", a.finished, b.finished, c.finished)
	}
	if !bytes.Equal(a.peer, []byte("peer-a")) {
		t.Errorf("a.peer = %q, want %q", a.peer, "peer-a")
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("unknown processor", func(t *testing.T) {
		if _, err := Build([]Processor{newTag("a")}, []Negotiation{{ID: "z"}}); err == nil {
			t.Fatal("expected error for agreed processor without local candidate")
		}
	})

	t.Run("finish fails", func(t *testing.T) {
		p := &failingProcessor{tagProcessor: *newTag("x"), failFinish: true}
		if _, err := Build([]Processor{p}, []Negotiation{{ID: "x"}}); !errors.Is(err, errBoom) {
			t.Fatalf("expected wrapped errBoom, got %v", err)
		}
	})
}

// TestApplyOrder checks outbound P1→Pn and inbound Pn→P1, and the inverse
// property for a range of payloads.
func TestApplyOrder(t *testing.T) {
	candidates := []Processor{newTag("p1"), newTag("p2"), newTag("p3")}
	adv, _ := Advertise(candidates)
	p, err := Build(candidates, adv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wrapped, err := p.Apply(Outbound, []byte("data"))
	if err != nil {
		t.Fatalf("Outbound: %v", err)
	}
	if want := "data|p1|p2|p3"; string(wrapped) != want {
		t.Fatalf("outbound = %q, want %q", wrapped, want)
	}

	payloads := [][]byte{nil, {}, []byte("x"), bytes.Repeat([]byte{0xAB}, 4096)}
	for i, payload := range payloads {
		out, err := p.Apply(Outbound, payload)
		if err != nil {
			t.Fatalf("[%d] Outbound: %v", i, err)
		}
		back, err := p.Apply(Inbound, out)
		if err != nil {
			t.Fatalf("[%d] Inbound: %v", i, err)
		}
		if !bytes.Equal(back, payload) {
			t.Errorf("[%d] round trip = %q, want %q", i, back, payload)
		}
	}
}

func TestApplyInboundWrongOrderFails(t *testing.T) {
	p, _ := Build([]Processor{newTag("p1"), newTag("p2")}, []Negotiation{{ID: "p1"}, {ID: "p2"}})
	if _, err := p.Apply(Inbound, []byte("data|p2|p1")); err == nil {
		t.Fatal("expected error for data wrapped in the wrong order")
	}
}

func TestNilPipelinePassesThrough(t *testing.T) {
	var p *Pipeline
	out, err := p.Apply(Outbound, []byte("raw"))
	if err != nil || string(out) != "raw" {
		t.Fatalf("Apply = %q, %v; want raw, nil", out, err)
	}
	if p.Len() != 0 || p.IDs() != nil {
		t.Errorf("nil pipeline Len=%d IDs=%v", p.Len(), p.IDs())
	}
}
