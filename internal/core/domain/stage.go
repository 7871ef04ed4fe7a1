package domain

import "fmt"

type Stage string

const (
	StageIntake          Stage = "intake"
	StageKYCVerification Stage = "kyc_verification"
	StageCreditScoring   Stage = "credit_scoring"
	StageDecision        Stage = "decision"
	StageCompleted       Stage = "completed"
)

// stageTransitions lists every permitted edge. The pipeline only moves
// forward; completed -> decision exists for admin overrides.
var stageTransitions = map[Stage][]Stage{
	StageIntake:          {StageKYCVerification},
	StageKYCVerification: {StageCreditScoring},
	StageCreditScoring:   {StageDecision},
	StageDecision:        {StageCompleted},
	StageCompleted:       {StageDecision},
}

func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns ErrInvalidTransition for edges missing from the table.
func Transition(from, to Stage) error {
	if !CanTransition(from, to) {
		return WrapError(ErrInvalidTransition, "stage transition", fmt.Errorf("%s -> %s", from, to))
	}
	return nil
}
