package packing

import (
	"fmt"

	"github.com/eugenenazirov/zetafill/internal/geometry"
)

// State is the caller-visible lifecycle of a run.
type State uint8

const (
	Idle State = iota
	Running
	Paused
	Jammed
	Exhausted
)

var stateNames = [...]string{"idle", "running", "paused", "jammed", "exhausted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether the run can only be left by a reset.
func (s State) Terminal() bool { return s == Jammed || s == Exhausted }

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Kind tags the result of one Advance.
type Kind uint8

const (
	// Placed means a disk was committed.
	Placed Kind = iota
	// KindJammed means no position was found within the attempt budget.
	KindJammed
	// KindExhausted means a count or area limit stopped the run.
	KindExhausted
)

var kindNames = [...]string{"placed", "jammed", "exhausted"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", b)
}

// Outcome is the inspectable result of one Advance. Disk is only set when
// Kind is Placed.
type Outcome struct {
	Kind           Kind           `json:"kind"`
	Disk           *geometry.Disk `json:"disk,omitempty"`
	K              int            `json:"k"`
	DiskCount      int            `json:"diskCount"`
	CoveredArea    float64        `json:"coveredArea"`
	PercentCovered float64        `json:"percentCovered"`
	Attempts       int            `json:"attempts"`
}

// Snapshot is a point-in-time view of a run. Disks is a copy and is only
// populated by Engine.Snapshot.
type Snapshot struct {
	Params         Params          `json:"params"`
	Formula        string          `json:"formula"`
	State          State           `json:"state"`
	K              int             `json:"k"`
	DiskCount      int             `json:"diskCount"`
	CoveredArea    float64         `json:"coveredArea"`
	PercentCovered float64         `json:"percentCovered"`
	NextArea       float64         `json:"nextArea"`
	NextRadius     float64         `json:"nextRadius"`
	LastArea       float64         `json:"lastArea"`
	Container      Box             `json:"container"`
	TotalAttempts  int64           `json:"totalAttempts"`
	Disks          []geometry.Disk `json:"disks,omitempty"`
}

// Box describes the container of a snapshot.
type Box struct {
	Dimension  int     `json:"dimension"`
	Side       float64 `json:"side"`
	Area       float64 `json:"area"`
	Convergent bool    `json:"convergent"`
}

