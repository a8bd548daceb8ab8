package domain

// RecordStatus enumerates the externally visible lifecycle states written to
// the record store. Failed and both Completed variants are terminal: once one
// of them is written, no further writes occur for that job.
type RecordStatus string

const (
	StatusGenerating       RecordStatus = "Generating"
	StatusCompleted        RecordStatus = "Completed"
	StatusCompletedURLOnly RecordStatus = "Completed (URL only)"
	StatusFailed           RecordStatus = "Failed"
)

// Terminal reports whether the status ends the lifecycle.
func (s RecordStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedURLOnly, StatusFailed:
		return true
	}
	return false
}

// Record store field keys shared by every RecordStore implementation.
const (
	FieldStatus       = "status"
	FieldJobID        = "job_id"
	FieldErrorLog     = "error_log"
	FieldOutputVideo  = "output_video"
	FieldVideoURL     = "video_url"
	FieldInputImage   = "input_image"
	FieldCustomPrompt = "custom_prompt"
	FieldPresetPrompt = "preset_prompt"
	FieldDuration     = "duration"
	FieldAspectRatio  = "aspect_ratio"
)

// Attachment is one attachment-like object in a record's input_image or
// output_video field.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// RecordFields is the subset of a record the lifecycle reads at fetch time.
type RecordFields struct {
	InputImage   []Attachment
	CustomPrompt string
	PresetPrompt string
	Duration     int
	AspectRatio  string
}

// Prompt resolves the effective prompt: custom when present, else preset.
// An empty result means neither was set.
func (f RecordFields) Prompt() string {
	if f.CustomPrompt != "" {
		return f.CustomPrompt
	}
	return f.PresetPrompt
}

// RecordPatch is a partial update merged into a record; absent keys keep
// their stored values.
type RecordPatch map[string]any
