package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageFetchDone Stage = "FETCH_DONE"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
)

// Outcome classifies what happened to one identifier.
type Outcome string

// Per-identifier outcomes.
const (
	OutcomeStored Outcome = "stored"
	OutcomeGap    Outcome = "gap"
	OutcomeFailed Outcome = "failed"
)

// Event captures a single step of harvest progress.
type Event struct {
	// RunID identifies one Backfill or Update run (UUID bytes).
	RunID [16]byte
	TS    time.Time
	Stage Stage
	// QuoteID is set on FETCH_DONE events.
	QuoteID int64
	Outcome Outcome
	Bytes   int64
	// Total is the size of the harvest range on RUN_START and the size net of
	// gaps on RUN_DONE and RUN_ERROR.
	Total int64
	// Processed and Skipped are the run's final counters on RUN_DONE and RUN_ERROR.
	Processed int64
	Skipped   int64
	Dur       time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageFetchDone:
		if e.QuoteID <= 0 {
			return errors.New("fetch done requires quote id")
		}
		switch e.Outcome {
		case OutcomeStored, OutcomeGap, OutcomeFailed:
		default:
			return fmt.Errorf("unknown outcome %q", e.Outcome)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
