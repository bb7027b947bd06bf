package conversation

// State is a step of the guided submission flow.
type State string

const (
	StateInit            State = "INIT"
	StateDeptSelect      State = "DEPT_SELECT"
	StateTypeSelect      State = "TYPE_SELECT"
	StateDeadlineCheck   State = "DEADLINE_CHECK"
	StateUploadPrompt    State = "UPLOAD_PROMPT"
	StateUploading       State = "UPLOADING"
	StateResultDisplayed State = "RESULT_DISPLAYED"
	StateEnded           State = "ENDED"
)

// Department and doc-type selection stay reachable from every live state
// because their options remain visible in the transcript.
var allowedTransitions = map[State][]State{
	StateInit:            {StateDeptSelect, StateTypeSelect, StateEnded},
	StateDeptSelect:      {StateDeptSelect, StateTypeSelect, StateEnded},
	StateTypeSelect:      {StateDeptSelect, StateTypeSelect, StateDeadlineCheck, StateEnded},
	StateDeadlineCheck:   {StateDeptSelect, StateTypeSelect, StateDeadlineCheck, StateUploadPrompt, StateEnded},
	StateUploadPrompt:    {StateDeptSelect, StateTypeSelect, StateDeadlineCheck, StateUploading, StateEnded},
	StateUploading:       {StateDeptSelect, StateTypeSelect, StateDeadlineCheck, StateUploadPrompt, StateUploading, StateResultDisplayed, StateEnded},
	StateResultDisplayed: {StateDeptSelect, StateTypeSelect, StateDeadlineCheck, StateUploadPrompt, StateUploading, StateEnded},
	StateEnded:           {},
}

func isValidTransition(current, next State) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
