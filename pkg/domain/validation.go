package domain

// MultipleRootsMessage is shown to the user when a flow has more than one entry point.
const MultipleRootsMessage = "Cannot save Flow: More than one node has empty target handles"

// ValidationResult is the verdict on whether a flow may be saved.
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error,omitempty"`
}
