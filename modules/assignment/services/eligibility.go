package services

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/entities/staff"
)

// Score component weights. Skill fit dominates, then free capacity, then
// availability, then unit affinity.
const (
	skillWeight        = 40.0
	capacityWeight     = 30.0
	availabilityWeight = 20.0

	unitScoreSame    = 10.0
	unitScoreSubtree = 5.0
)

// Candidate is a scored staff profile considered for an assignment.
type Candidate struct {
	Profile staff.Profile
	Score   float64
}

type scoreInput struct {
	RequiredSkills []string
	UnitID         uuid.UUID
	SubtreeIDs     []uuid.UUID
	Now            time.Time
}

func skillScore(p staff.Profile, required []string) float64 {
	if len(required) == 0 {
		return skillWeight
	}
	matched := 0
	for _, s := range required {
		if p.HasSkill(s) {
			matched++
		}
	}
	return skillWeight * float64(matched) / float64(len(required))
}

func capacityScore(p staff.Profile) float64 {
	if p.AssignmentLimit <= 0 {
		return 0
	}
	free := p.AssignmentLimit - p.CurrentAssignmentCount
	if free < 0 {
		free = 0
	}
	return capacityWeight * float64(free) / float64(p.AssignmentLimit)
}

func availabilityScore(p staff.Profile, now time.Time) float64 {
	if !p.Available {
		return 0
	}
	if p.UnavailableUntil != nil && p.UnavailableUntil.After(now) {
		return 0
	}
	return availabilityWeight
}

func unitScore(p staff.Profile, in scoreInput) float64 {
	if p.UnitID == in.UnitID {
		return unitScoreSame
	}
	for _, id := range in.SubtreeIDs {
		if p.UnitID == id {
			return unitScoreSubtree
		}
	}
	return 0
}

func scoreProfile(p staff.Profile, in scoreInput) float64 {
	return skillScore(p, in.RequiredSkills) +
		capacityScore(p) +
		availabilityScore(p, in.Now) +
		unitScore(p, in)
}

// rankCandidates scores the profiles and orders them best-first. Ties break
// toward the lighter current load, then the lexicographically smaller user id
// so the ordering is deterministic.
func rankCandidates(profiles []staff.Profile, in scoreInput) []Candidate {
	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, Candidate{Profile: p, Score: scoreProfile(p, in)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Profile.CurrentAssignmentCount != b.Profile.CurrentAssignmentCount {
			return a.Profile.CurrentAssignmentCount < b.Profile.CurrentAssignmentCount
		}
		return a.Profile.UserID.String() < b.Profile.UserID.String()
	})
	return out
}
