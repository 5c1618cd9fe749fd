package dto

// SyncSequenceRequest raises a counter after numbers were issued elsewhere.
type SyncSequenceRequest struct {
	Minimum int64 `json:"minimum" binding:"min=0"`
	// WithYear and PadWidth default to the document numbering format.
	WithYear *bool `json:"withYear"`
	PadWidth *int  `json:"padWidth" binding:"omitempty,min=1,max=12"`
}

// SyncSequenceResponse reports the stored counter value.
type SyncSequenceResponse struct {
	Prefix  string `json:"prefix"`
	Current int64  `json:"current"`
}
