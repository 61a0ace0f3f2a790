// Package workflow orchestrates the normalize -> resolve -> intersect
// sequence behind the interactive UI, tracking session state through an
// explicit phase machine.
package workflow

import (
	"context"
	_ "embed"
	"encoding/json"
	"log"
	"sync"

	"lotplan-export/internal/export"
	"lotplan-export/internal/geo"
	"lotplan-export/internal/lotplan"
	"lotplan-export/internal/models"
)

// Phase is the session's position in the resolve/intersect sequence
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseResolving    Phase = "resolving"
	PhaseResolved     Phase = "resolved"
	PhaseIntersecting Phase = "intersecting"
	PhasePreviewed    Phase = "previewed"
	PhaseFailed       Phase = "failed"
)

// OutcomeKind tags how the last network step concluded. Every
// collaborator reports through this one taxonomy so the shell has a
// single dispatch point.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeFallback OutcomeKind = "fallback"
	OutcomeFailure  OutcomeKind = "failure"
)

// State is the serialisable session snapshot rendered by the UI
type State struct {
	Phase       Phase                `json:"phase"`
	Seq         uint64               `json:"seq"`
	Input       string               `json:"input"`
	Identifiers []string             `json:"identifiers"`
	Parcel      *geo.Geometry        `json:"parcel,omitempty"`
	Matched     []models.MatchedLot  `json:"matched,omitempty"`
	Layers      []models.LayerResult `json:"layers,omitempty"`
	Outcome     OutcomeKind          `json:"outcome,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// Resolver resolves canonical identifiers to parcel geometry
type Resolver interface {
	Resolve(ctx context.Context, lotplans []string) (*models.ResolveResult, error)
}

// Intersector intersects a parcel with a set of layers
type Intersector interface {
	Run(ctx context.Context, parcel *geo.Geometry, layerIDs []string) ([]models.LayerResult, error)
}

//go:embed sample_parcel.json
var sampleParcelJSON []byte

// sampleParcel is the static fallback dataset used when the cadastre is
// unreachable, so the interface stays interactive
type sampleParcel struct {
	Lotplan  string        `json:"lotplan"`
	Lot      string        `json:"lot"`
	Plan     string        `json:"plan"`
	Geometry *geo.Geometry `json:"geometry"`
}

func loadSample() *models.ResolveResult {
	var s sampleParcel
	if err := json.Unmarshal(sampleParcelJSON, &s); err != nil || s.Geometry == nil {
		log.Printf("Fallback parcel dataset unavailable: %v", err)
		return nil
	}
	return &models.ResolveResult{
		Parcel: s.Geometry,
		Matched: []models.MatchedLot{
			{Lot: s.Lot, Plan: s.Plan, Lotplan: s.Lotplan},
		},
	}
}

// Session owns one user's workflow state. A new Run supersedes any
// in-flight one: each run is stamped with a sequence number, and results
// arriving for an older run are discarded instead of clobbering state.
type Session struct {
	mu          sync.Mutex
	seq         uint64
	state       State
	resolver    Resolver
	intersector Intersector
	fallback    *models.ResolveResult
}

// NewSession creates an idle session over the given collaborators
func NewSession(resolver Resolver, intersector Intersector) *Session {
	return &Session{
		state:       State{Phase: PhaseIdle},
		resolver:    resolver,
		intersector: intersector,
		fallback:    loadSample(),
	}
}

// State returns a snapshot of the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes one resolve-and-intersect sequence: normalize locally,
// resolve against the cadastre, then intersect the requested layers if
// any were selected. It returns the state as this run left it; if a
// newer run superseded this one mid-flight, the newer state is returned
// untouched.
func (s *Session) Run(ctx context.Context, input string, layerIDs []string) State {
	identifiers := lotplan.Normalize(input)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state = State{
		Phase:       PhaseResolving,
		Seq:         seq,
		Input:       input,
		Identifiers: identifiers,
	}
	if len(identifiers) == 0 {
		s.state.Phase = PhaseFailed
		s.state.Outcome = OutcomeFailure
		s.state.Message = "Could not parse lot/plan input"
		st := s.state
		s.mu.Unlock()
		return st
	}
	s.mu.Unlock()

	result, err := s.resolver.Resolve(ctx, identifiers)

	s.mu.Lock()
	if s.seq != seq {
		// A newer run took over while this one was in flight.
		st := s.state
		s.mu.Unlock()
		return st
	}

	switch {
	case err != nil && s.fallback != nil:
		s.state.Phase = PhaseResolved
		s.state.Outcome = OutcomeFallback
		s.state.Message = "Cadastre unreachable, showing sample parcel: " + err.Error()
		s.state.Parcel = s.fallback.Parcel
		s.state.Matched = s.fallback.Matched
		st := s.state
		s.mu.Unlock()
		return st
	case err != nil:
		s.state.Phase = PhaseFailed
		s.state.Outcome = OutcomeFailure
		s.state.Message = err.Error()
		st := s.state
		s.mu.Unlock()
		return st
	case result.Parcel == nil:
		s.state.Phase = PhaseFailed
		s.state.Outcome = OutcomeFailure
		s.state.Message = "No parcels matched"
		st := s.state
		s.mu.Unlock()
		return st
	}

	s.state.Phase = PhaseResolved
	s.state.Outcome = OutcomeSuccess
	s.state.Parcel = result.Parcel
	s.state.Matched = result.Matched

	if len(layerIDs) == 0 || s.intersector == nil {
		st := s.state
		s.mu.Unlock()
		return st
	}

	s.state.Phase = PhaseIntersecting
	parcel := s.state.Parcel
	s.mu.Unlock()

	layerResults, err := s.intersector.Run(ctx, parcel, layerIDs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return s.state
	}

	if err != nil {
		s.state.Phase = PhaseFailed
		s.state.Outcome = OutcomeFailure
		s.state.Message = err.Error()
		return s.state
	}

	s.state.Phase = PhasePreviewed
	s.state.Outcome = OutcomeSuccess
	s.state.Layers = layerResults
	return s.state
}

// ExportGeoJSON serialises the session's parcel and layer features.
// A resolved parcel is required; intersection results are optional.
func (s *Session) ExportGeoJSON() (*geo.FeatureCollection, error) {
	s.mu.Lock()
	parcel, layers := s.state.Parcel, s.state.Layers
	s.mu.Unlock()
	return export.GeoJSON(parcel, layers)
}

// ExportKMZ serialises the session's parcel and layer features as KMZ
func (s *Session) ExportKMZ() ([]byte, error) {
	s.mu.Lock()
	parcel, layers := s.state.Parcel, s.state.Layers
	s.mu.Unlock()
	return export.KMZ(parcel, layers)
}
